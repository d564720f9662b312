// Package output renders waypoint and country listings.
package output

import (
	"fmt"
	"io"

	"github.com/spiffcs/staticmap/internal/viewport"
)

// Format represents the output format
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter defines the interface for output formatters
type Formatter interface {
	FormatWaypoints(list []viewport.Waypoint, w io.Writer) error
	FormatCountries(list []viewport.Country, w io.Writer) error
}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatMarkdown:
		return Format(s), nil
	}
	return "", fmt.Errorf("invalid format: %s (must be table, json or markdown)", s)
}

// NewFormatter creates a formatter for the specified format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}
