// Package viewport holds the geographic position of the map view and the
// arithmetic for panning and zooming it. Nothing in here performs I/O.
package viewport

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// MinZoom and MaxZoom bound the zoom slider.
	MinZoom = 0
	MaxZoom = 19

	// MaxLatitude is the latitude at which vertical panning wraps around.
	MaxLatitude = 85.0
	// MaxLongitude is the antimeridian.
	MaxLongitude = 180.0

	latitudeWrap  = 2 * MaxLatitude
	longitudeWrap = 2 * MaxLongitude

	// stepBase is the span in degrees covered by one pan at zoom -1.
	stepBase = 131.072
)

// Direction is a pan direction.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection parses "up", "down", "left" or "right" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u", "north", "n":
		return Up, nil
	case "down", "d", "south", "s":
		return Down, nil
	case "left", "l", "west", "w":
		return Left, nil
	case "right", "r", "east", "e":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown direction %q (use up, down, left, right)", s)
}

// StepSize returns the pan granularity in degrees at the given zoom level.
func StepSize(zoom int) float64 {
	return stepBase / math.Pow(2, float64(zoom+1))
}

// MoveLatitude adds delta to current. A result past ±85 is reflected back by
// 170 degrees rather than clamped.
func MoveLatitude(current, delta float64) float64 {
	result := current + delta
	switch {
	case result > MaxLatitude:
		return result - latitudeWrap
	case result < -MaxLatitude:
		return result + latitudeWrap
	}
	return result
}

// MoveLongitude adds delta to current and wraps across the antimeridian.
func MoveLongitude(current, delta float64) float64 {
	result := current + delta
	switch {
	case result > MaxLongitude:
		return result - longitudeWrap
	case result < -MaxLongitude:
		return result + longitudeWrap
	}
	return result
}

// ClampZoom bounds z to [MinZoom, MaxZoom].
func ClampZoom(z int) int {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// Params is a by-value snapshot of the viewport handed to a fetch.
type Params struct {
	Lat    float64 `json:"lat" yaml:"lat"`
	Lon    float64 `json:"lon" yaml:"lon"`
	Zoom   int     `json:"zoom" yaml:"zoom"`
	Width  int     `json:"width" yaml:"width"`
	Height int     `json:"height" yaml:"height"`
}

// String formats the snapshot for status lines.
func (p Params) String() string {
	return fmt.Sprintf("%.6f,%.6f z%d %dx%d", p.Lat, p.Lon, p.Zoom, p.Width, p.Height)
}

// Validate checks the pixel size, which the URL builder cannot repair.
func (p Params) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid map size %dx%d: width and height must be positive", p.Width, p.Height)
	}
	return nil
}

// Viewport is the current map position. It is owned by a single goroutine
// (the interactive loop); callers share it only through Snapshot.
type Viewport struct {
	Lat    float64
	Lon    float64
	Zoom   int
	Width  int
	Height int
}

// New creates a viewport from initial parameters.
func New(p Params) *Viewport {
	return &Viewport{
		Lat:    p.Lat,
		Lon:    p.Lon,
		Zoom:   p.Zoom,
		Width:  p.Width,
		Height: p.Height,
	}
}

// Snapshot returns the current position by value.
func (v *Viewport) Snapshot() Params {
	return Params{
		Lat:    v.Lat,
		Lon:    v.Lon,
		Zoom:   v.Zoom,
		Width:  v.Width,
		Height: v.Height,
	}
}

// Step returns the pan granularity at the current zoom.
func (v *Viewport) Step() float64 {
	return StepSize(v.Zoom)
}

// Move pans one step in the given direction.
func (v *Viewport) Move(d Direction) {
	step := v.Step()
	switch d {
	case Up:
		v.Lat = MoveLatitude(v.Lat, step)
	case Down:
		v.Lat = MoveLatitude(v.Lat, -step)
	case Left:
		v.Lon = MoveLongitude(v.Lon, -step)
	case Right:
		v.Lon = MoveLongitude(v.Lon, step)
	}
}

func (v *Viewport) Up()    { v.Move(Up) }
func (v *Viewport) Down()  { v.Move(Down) }
func (v *Viewport) Left()  { v.Move(Left) }
func (v *Viewport) Right() { v.Move(Right) }

// JumpTo sets an absolute position. Inputs are assumed canonical.
func (v *Viewport) JumpTo(lat, lon float64) {
	v.Lat = lat
	v.Lon = lon
}

// SetZoom stores z as given. Bounding it is the caller's job (see ClampZoom).
func (v *Viewport) SetZoom(z int) {
	v.Zoom = z
}

// ZoomIn increases the zoom by one, stopping at MaxZoom.
func (v *Viewport) ZoomIn() {
	v.Zoom = ClampZoom(v.Zoom + 1)
}

// ZoomOut decreases the zoom by one, stopping at MinZoom.
func (v *Viewport) ZoomOut() {
	v.Zoom = ClampZoom(v.Zoom - 1)
}

// JumpToWaypoint parses the waypoint's coordinates and jumps to them.
func (v *Viewport) JumpToWaypoint(w Waypoint) error {
	lat, lon, err := w.Coordinates()
	if err != nil {
		return err
	}
	v.JumpTo(lat, lon)
	return nil
}

// JumpToCountry looks name up in table and jumps to it.
func (v *Viewport) JumpToCountry(table CountryTable, name string) error {
	c, err := table.Lookup(name)
	if err != nil {
		return err
	}
	v.JumpTo(c.Lat, c.Lon)
	return nil
}

// FormatCoordinate renders a coordinate without trailing zeros, the way it is
// stored in waypoints.
func FormatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
