package viewport

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownCountry is returned when a country name is not in the table.
var ErrUnknownCountry = errors.New("unknown country")

// Waypoint is a named position. Coordinates are kept as text exactly as the
// user entered them; equality is structural.
type Waypoint struct {
	Name string `json:"name"`
	Lat  string `json:"lat"`
	Lon  string `json:"lon"`
}

// NewWaypoint creates a waypoint from numeric coordinates.
func NewWaypoint(name string, lat, lon float64) Waypoint {
	return Waypoint{
		Name: name,
		Lat:  FormatCoordinate(lat),
		Lon:  FormatCoordinate(lon),
	}
}

// Coordinates parses the waypoint's latitude and longitude.
func (w Waypoint) Coordinates() (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(strings.TrimSpace(w.Lat), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("waypoint %q has invalid latitude %q: %w", w.Name, w.Lat, err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(w.Lon), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("waypoint %q has invalid longitude %q: %w", w.Name, w.Lon, err)
	}
	return lat, lon, nil
}

// Country is a named country center.
type Country struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// CountryTable is a static name→position table. It is built once and passed
// to whoever needs it.
type CountryTable struct {
	countries []Country
	byName    map[string]int
}

// NewCountryTable indexes countries by exact name. Later duplicates win.
func NewCountryTable(countries []Country) CountryTable {
	t := CountryTable{
		countries: make([]Country, len(countries)),
		byName:    make(map[string]int, len(countries)),
	}
	copy(t.countries, countries)
	for i, c := range t.countries {
		t.byName[c.Name] = i
	}
	return t
}

// Lookup returns the country with exactly the given name.
func (t CountryTable) Lookup(name string) (Country, error) {
	i, ok := t.byName[name]
	if !ok {
		return Country{}, fmt.Errorf("%w: %q", ErrUnknownCountry, name)
	}
	return t.countries[i], nil
}

// Names returns all country names sorted alphabetically.
func (t CountryTable) Names() []string {
	names := make([]string, 0, len(t.countries))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of countries.
func (t CountryTable) Len() int {
	return len(t.byName)
}

// Filter returns countries whose name contains substr (case-insensitive),
// in table order.
func (t CountryTable) Filter(substr string) []Country {
	substr = strings.ToLower(substr)
	var out []Country
	for i, c := range t.countries {
		if t.byName[c.Name] != i {
			continue
		}
		if strings.Contains(strings.ToLower(c.Name), substr) {
			out = append(out, c)
		}
	}
	return out
}
