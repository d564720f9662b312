package output

import (
	"encoding/json"
	"io"

	"github.com/spiffcs/staticmap/internal/viewport"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

// waypointJSON adds the parsed position next to the stored text.
type waypointJSON struct {
	viewport.Waypoint
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type countryJSON struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// FormatWaypoints outputs waypoints as a JSON array. Waypoints whose text
// does not parse are emitted without latitude and longitude.
func (f *JSONFormatter) FormatWaypoints(list []viewport.Waypoint, w io.Writer) error {
	out := make([]waypointJSON, 0, len(list))
	for _, wp := range list {
		item := waypointJSON{Waypoint: wp}
		if lat, lon, err := wp.Coordinates(); err == nil {
			item.Latitude, item.Longitude = &lat, &lon
		}
		out = append(out, item)
	}
	return f.encode(out, w)
}

// FormatCountries outputs countries as a JSON array.
func (f *JSONFormatter) FormatCountries(list []viewport.Country, w io.Writer) error {
	out := make([]countryJSON, 0, len(list))
	for _, c := range list {
		out = append(out, countryJSON(c))
	}
	return f.encode(out, w)
}

func (f *JSONFormatter) encode(v any, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
