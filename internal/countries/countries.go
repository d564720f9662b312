// Package countries provides the country center table used for country
// jumps. A table is built from the embedded default list or a user file.
package countries

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spiffcs/staticmap/internal/viewport"
)

//go:embed countries.yaml
var defaultTable []byte

// Default returns the built-in table.
func Default() (viewport.CountryTable, error) {
	return Parse(defaultTable)
}

// Load reads a YAML table from path: a list of {name, lat, lon} entries.
func Load(path string) (viewport.CountryTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return viewport.CountryTable{}, fmt.Errorf("failed to read country table: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML table.
func Parse(data []byte) (viewport.CountryTable, error) {
	var list []viewport.Country
	if err := yaml.Unmarshal(data, &list); err != nil {
		return viewport.CountryTable{}, fmt.Errorf("failed to parse country table: %w", err)
	}
	for i, c := range list {
		if c.Name == "" {
			return viewport.CountryTable{}, fmt.Errorf("country table entry %d has no name", i)
		}
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return viewport.CountryTable{}, fmt.Errorf("country %q has out of range position (%v, %v)", c.Name, c.Lat, c.Lon)
		}
	}
	return viewport.NewCountryTable(list), nil
}

// Resolve returns the table at path, or the default table when path is empty.
func Resolve(path string) (viewport.CountryTable, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}
