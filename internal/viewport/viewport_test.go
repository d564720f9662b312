package viewport

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestStepSize(t *testing.T) {
	prev := math.Inf(1)
	for z := MinZoom; z <= MaxZoom; z++ {
		step := StepSize(z)
		if step <= 0 {
			t.Errorf("StepSize(%d) = %v, want > 0", z, step)
		}
		if step >= prev {
			t.Errorf("StepSize(%d) = %v, not less than StepSize(%d) = %v", z, step, z-1, prev)
		}
		prev = step
	}

	if got := StepSize(14); !approxEqual(got, 0.004) {
		t.Errorf("StepSize(14) = %v, want 0.004", got)
	}
	if got := StepSize(0); !approxEqual(got, 65.536) {
		t.Errorf("StepSize(0) = %v, want 65.536", got)
	}
}

func TestMoveLatitude(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		delta   float64
		want    float64
	}{
		{"inside range", 10, 5, 15},
		{"exactly at bound does not wrap", 80, 5, 85},
		{"wraps past north", 84.9, 1.0, -84.1},
		{"wraps past south", -84.9, -1.0, 84.1},
		{"exactly at south bound does not wrap", -80, -5, -85},
		{"negative delta inside range", 0, -3.5, -3.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MoveLatitude(tt.current, tt.delta)
			if !approxEqual(got, tt.want) {
				t.Errorf("MoveLatitude(%v, %v) = %v, want %v", tt.current, tt.delta, got, tt.want)
			}
			if got > MaxLatitude || got < -MaxLatitude {
				t.Errorf("MoveLatitude(%v, %v) = %v, outside [-85, 85]", tt.current, tt.delta, got)
			}
		})
	}
}

func TestMoveLongitude(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		delta   float64
		want    float64
	}{
		{"inside range", 0, 10, 10},
		{"wraps east", 179, 5, -176},
		{"wraps west", -179, -5, 176},
		{"antimeridian exactly", 175, 5, 180},
		{"west bound exactly", -175, -5, -180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MoveLongitude(tt.current, tt.delta)
			if !approxEqual(got, tt.want) {
				t.Errorf("MoveLongitude(%v, %v) = %v, want %v", tt.current, tt.delta, got, tt.want)
			}
		})
	}
}

func TestViewportMoves(t *testing.T) {
	start := Params{Lat: 38.931099, Lon: -77.3489, Zoom: 14, Width: 512, Height: 512}
	step := StepSize(14)

	tests := []struct {
		dir     Direction
		wantLat float64
		wantLon float64
	}{
		{Up, start.Lat + step, start.Lon},
		{Down, start.Lat - step, start.Lon},
		{Left, start.Lat, start.Lon - step},
		{Right, start.Lat, start.Lon + step},
	}

	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			v := New(start)
			v.Move(tt.dir)
			if !approxEqual(v.Lat, tt.wantLat) || !approxEqual(v.Lon, tt.wantLon) {
				t.Errorf("after %s got (%v, %v), want (%v, %v)", tt.dir, v.Lat, v.Lon, tt.wantLat, tt.wantLon)
			}
			if v.Zoom != start.Zoom || v.Width != start.Width || v.Height != start.Height {
				t.Errorf("move changed zoom or size: %+v", v.Snapshot())
			}
		})
	}
}

func TestRepeatedMovesAreAdditive(t *testing.T) {
	v := New(Params{Lat: 38.931099, Lon: -77.3489, Zoom: 14, Width: 512, Height: 512})
	for i := 0; i < 4; i++ {
		v.Up()
	}

	want := MoveLatitude(38.931099, 4*StepSize(14))
	if !approxEqual(v.Lat, want) {
		t.Errorf("four ups = %v, one move of 4 steps = %v", v.Lat, want)
	}
}

func TestJumpToDoesNotWrap(t *testing.T) {
	v := New(Params{Zoom: 3, Width: 100, Height: 100})
	v.JumpTo(89.5, -180)
	if v.Lat != 89.5 || v.Lon != -180 {
		t.Errorf("JumpTo() = (%v, %v), want (89.5, -180)", v.Lat, v.Lon)
	}
}

func TestZoom(t *testing.T) {
	v := New(Params{Zoom: MaxZoom})
	v.ZoomIn()
	if v.Zoom != MaxZoom {
		t.Errorf("ZoomIn() at max = %d, want %d", v.Zoom, MaxZoom)
	}

	v.SetZoom(MinZoom)
	v.ZoomOut()
	if v.Zoom != MinZoom {
		t.Errorf("ZoomOut() at min = %d, want %d", v.Zoom, MinZoom)
	}

	// SetZoom stores as given; bounding is the caller's job.
	v.SetZoom(25)
	if v.Zoom != 25 {
		t.Errorf("SetZoom(25) = %d, want 25", v.Zoom)
	}
	if got := ClampZoom(25); got != MaxZoom {
		t.Errorf("ClampZoom(25) = %d, want %d", got, MaxZoom)
	}
	if got := ClampZoom(-1); got != MinZoom {
		t.Errorf("ClampZoom(-1) = %d, want %d", got, MinZoom)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input   string
		want    Direction
		wantErr bool
	}{
		{"up", Up, false},
		{"DOWN", Down, false},
		{" left ", Left, false},
		{"e", Right, false},
		{"sideways", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDirection(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDirection(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParamsValidate(t *testing.T) {
	if err := (Params{Width: 512, Height: 512}).Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	if err := (Params{Width: 0, Height: 512}).Validate(); err == nil {
		t.Error("Validate() expected error for zero width")
	}
}

func TestWaypoint(t *testing.T) {
	a := NewWaypoint("home", 38.931099, -77.3489)
	b := Waypoint{Name: "home", Lat: "38.931099", Lon: "-77.3489"}
	if a != b {
		t.Errorf("expected structural equality, got %+v vs %+v", a, b)
	}

	v := New(Params{Zoom: 14})
	if err := v.JumpToWaypoint(a); err != nil {
		t.Fatalf("JumpToWaypoint() error: %v", err)
	}
	if v.Lat != 38.931099 || v.Lon != -77.3489 {
		t.Errorf("JumpToWaypoint() = (%v, %v)", v.Lat, v.Lon)
	}

	bad := Waypoint{Name: "bad", Lat: "north", Lon: "0"}
	if err := v.JumpToWaypoint(bad); err == nil {
		t.Error("expected error for unparsable latitude")
	}
}

func TestCountryTable(t *testing.T) {
	table := NewCountryTable([]Country{
		{Name: "Canada", Lat: 60, Lon: -95},
		{Name: "France", Lat: 46, Lon: 2},
		{Name: "Cameroon", Lat: 6, Lon: 12},
	})

	c, err := table.Lookup("France")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if c.Lat != 46 || c.Lon != 2 {
		t.Errorf("Lookup(France) = %+v", c)
	}

	if _, err := table.Lookup("france"); !errors.Is(err, ErrUnknownCountry) {
		t.Errorf("Lookup is exact-match; expected ErrUnknownCountry, got %v", err)
	}

	names := table.Names()
	if len(names) != 3 || names[0] != "Cameroon" {
		t.Errorf("Names() = %v", names)
	}

	if got := table.Filter("ca"); len(got) != 2 || got[0].Name != "Canada" || got[1].Name != "Cameroon" {
		t.Errorf("Filter(ca) = %v, want [Canada Cameroon]", got)
	}

	v := New(Params{})
	if err := v.JumpToCountry(table, "Canada"); err != nil {
		t.Fatalf("JumpToCountry() error: %v", err)
	}
	if v.Lat != 60 || v.Lon != -95 {
		t.Errorf("JumpToCountry() = (%v, %v)", v.Lat, v.Lon)
	}
}
