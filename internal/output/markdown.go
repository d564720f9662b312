package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/spiffcs/staticmap/internal/viewport"
)

// MarkdownFormatter formats output as Markdown tables
type MarkdownFormatter struct{}

// FormatWaypoints writes waypoints as a Markdown table.
func (f *MarkdownFormatter) FormatWaypoints(list []viewport.Waypoint, w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("| Name | Lat | Lon |\n")
	sb.WriteString("|------|-----|-----|\n")
	for _, wp := range list {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", escapeMarkdown(wp.Name), wp.Lat, wp.Lon))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatCountries writes countries as a Markdown table.
func (f *MarkdownFormatter) FormatCountries(list []viewport.Country, w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("| Country | Lat | Lon |\n")
	sb.WriteString("|---------|-----|-----|\n")
	for _, c := range list {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeMarkdown(c.Name), viewport.FormatCoordinate(c.Lat), viewport.FormatCoordinate(c.Lon)))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// escapeMarkdown escapes characters that would break a table cell
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
