package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/spiffcs/staticmap/internal/format"
	"github.com/spiffcs/staticmap/internal/viewport"
)

// TableFormatter formats output as a terminal table
type TableFormatter struct{}

// column widths are computed from the content; these are the minimums
const (
	colName = 4
	colText = 3
)

// FormatWaypoints writes one row per waypoint.
func (f *TableFormatter) FormatWaypoints(list []viewport.Waypoint, w io.Writer) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No saved waypoints.")
		return err
	}

	nameW, latW, lonW := colName, colText, colText
	for _, wp := range list {
		nameW = max(nameW, format.DisplayWidth(wp.Name))
		latW = max(latW, format.DisplayWidth(wp.Lat))
		lonW = max(lonW, format.DisplayWidth(wp.Lon))
	}

	header := color.New(color.Bold)
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		header.Sprint(format.PadRight("NAME", nameW)),
		header.Sprint(format.PadRight("LAT", latW)),
		header.Sprint(format.PadRight("LON", lonW)),
		header.Sprint("POSITION"),
	)
	fmt.Fprintln(w, strings.Repeat("─", nameW+latW+lonW+6+len("POSITION")))

	for _, wp := range list {
		pos := color.RedString("invalid")
		if lat, lon, err := wp.Coordinates(); err == nil {
			pos = format.Coordinates(lat, lon)
		}
		if _, err := fmt.Fprintf(w, "%s  %s  %s  %s\n",
			format.PadRight(wp.Name, nameW),
			format.PadRight(wp.Lat, latW),
			format.PadRight(wp.Lon, lonW),
			pos,
		); err != nil {
			return err
		}
	}
	return nil
}

// FormatCountries writes one aligned line per country.
func (f *TableFormatter) FormatCountries(list []viewport.Country, w io.Writer) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No matching countries.")
		return err
	}

	width := 0
	for _, c := range list {
		width = max(width, format.DisplayWidth(c.Name))
	}
	for _, c := range list {
		if _, err := fmt.Fprintf(w, "%s  %s\n", format.PadRight(c.Name, width), format.Coordinates(c.Lat, c.Lon)); err != nil {
			return err
		}
	}
	return nil
}
