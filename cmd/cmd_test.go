package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/spiffcs/staticmap/internal/constants"
	"github.com/spiffcs/staticmap/internal/notify"
	"github.com/spiffcs/staticmap/internal/staticmap"
	"github.com/spiffcs/staticmap/internal/task"
	"github.com/spiffcs/staticmap/internal/viewport"
)

func init() {
	color.NoColor = true
}

// isolate points the config and cache directories at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := New()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNew(t *testing.T) {
	cmd := New()
	if cmd == nil {
		t.Fatal("New() returned nil")
	}
	if cmd.Use != "staticmap" {
		t.Errorf("expected Use to be 'staticmap', got %q", cmd.Use)
	}

	want := []string{"browse", "fetch", "waypoint", "countries", "config", "cache", "version"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootAndBrowseShareFlags(t *testing.T) {
	root := New()
	browse := NewCmdBrowse(NewOptions())
	for _, name := range []string{"lat", "lon", "zoom", "country", "waypoint", "tui", "name", "output"} {
		if root.Flags().Lookup(name) == nil {
			t.Errorf("root is missing --%s", name)
		}
		if browse.Flags().Lookup(name) == nil {
			t.Errorf("browse is missing --%s", name)
		}
	}
}

func TestNewCmdVersion(t *testing.T) {
	SetVersionInfo("1.0.0", "abc123", "2024-01-01")
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "staticmap 1.0.0") || !strings.Contains(out, "abc123") {
		t.Errorf("unexpected version output:\n%s", out)
	}
}

func TestParsePan(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []viewport.Direction
		wantErr bool
	}{
		{"empty", nil, []viewport.Direction{}, false},
		{"moves", []string{"up", " left", "RIGHT", "down"}, []viewport.Direction{viewport.Up, viewport.Left, viewport.Right, viewport.Down}, false},
		{"blank entries skipped", []string{"", "up"}, []viewport.Direction{viewport.Up}, false},
		{"unknown", []string{"sideways"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePan(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("move %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTUIFlag(t *testing.T) {
	opts := NewOptions()
	f := newTUIFlag(opts)
	if f.String() != "auto" {
		t.Errorf("default = %q", f.String())
	}
	if err := f.Set("false"); err != nil {
		t.Fatal(err)
	}
	if opts.TUI == nil || *opts.TUI || shouldUseTUI(opts) {
		t.Error("--tui=false should disable the browser")
	}
	if err := f.Set("yes"); err != nil {
		t.Fatal(err)
	}
	if !shouldUseTUI(opts) {
		t.Error("--tui=yes should force the browser")
	}
	if err := f.Set("auto"); err != nil {
		t.Fatal(err)
	}
	if opts.TUI != nil {
		t.Error("auto should reset to nil")
	}
	if err := f.Set("maybe"); err == nil {
		t.Error("expected error for invalid value")
	}

	opts.Verbosity = 1
	if shouldUseTUI(opts) {
		t.Error("verbose output should disable auto-detected browser")
	}
}

func TestApplyViewportFlags(t *testing.T) {
	fetchOpts := NewOptions()
	cmd := NewCmdBrowse(fetchOpts)
	if err := cmd.ParseFlags([]string{"--lat", "10.5", "--zoom", "30"}); err != nil {
		t.Fatal(err)
	}

	base := viewport.Params{Lat: 1, Lon: 2, Zoom: 3, Width: 512, Height: 256}
	got := applyViewportFlags(cmd, fetchOpts, base)

	want := viewport.Params{Lat: 10.5, Lon: 2, Zoom: viewport.MaxZoom, Width: 512, Height: 256}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReportOutcome(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	params := viewport.Params{Lat: 1, Lon: 2, Zoom: 3, Width: 4, Height: 2}

	t.Run("ok with image saves png", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "map.png")
		var buf bytes.Buffer
		out := fetchOutcome{
			state:   task.OK,
			result:  &staticmap.Result{Params: params, Image: img, Format: "png"},
			elapsed: 1500 * time.Millisecond,
		}
		if err := reportOutcome(&buf, out, path); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "Map loaded") || !strings.Contains(buf.String(), "Saved map to") {
			t.Errorf("output:\n%s", buf.String())
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("png not written: %v", err)
		}
	})

	t.Run("ok without image refuses to save", func(t *testing.T) {
		var buf bytes.Buffer
		out := fetchOutcome{
			state:  task.OK,
			result: &staticmap.Result{Params: params, Text: "<html>", Reason: "not an image"},
		}
		err := reportOutcome(&buf, out, filepath.Join(t.TempDir(), "map.png"))
		if !errors.Is(err, staticmap.ErrNoImage) {
			t.Fatalf("err = %v, want ErrNoImage", err)
		}
		if !strings.Contains(buf.String(), "not an image") {
			t.Errorf("output:\n%s", buf.String())
		}
	})

	t.Run("error is returned", func(t *testing.T) {
		var buf bytes.Buffer
		boom := errors.New("connection refused")
		err := reportOutcome(&buf, fetchOutcome{state: task.Error, err: boom}, "")
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if !strings.Contains(buf.String(), "connection refused") {
			t.Errorf("output:\n%s", buf.String())
		}
	})

	t.Run("cancelled is not an error", func(t *testing.T) {
		var buf bytes.Buffer
		if err := reportOutcome(&buf, fetchOutcome{state: task.Cancelled}, "map.png"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "cancelled") {
			t.Errorf("output:\n%s", buf.String())
		}
	})
}

func TestProgressListenerHandlesEveryCategory(t *testing.T) {
	l := progressListener("")
	for _, e := range []notify.Event{
		{Category: notify.Progress, Direction: notify.Receive, Percent: 50},
		{Category: notify.Progress, Direction: notify.Send, Percent: 100},
		{Category: notify.Status, Direction: notify.Send, Message: "fetching"},
		{Category: notify.StreamClosed, Direction: notify.Receive},
	} {
		l(e)
	}
}

func TestWaypointCommands(t *testing.T) {
	isolate(t)

	out, err := execute(t, "waypoint", "add", "home", "38.931099", "-77.3489")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `Saved waypoint "home"`) {
		t.Errorf("add output:\n%s", out)
	}

	out, err = execute(t, "waypoint", "list", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"name": "home"`) {
		t.Errorf("list output:\n%s", out)
	}

	if _, err := execute(t, "waypoint", "rm", "home"); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "waypoint", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No saved waypoints.") {
		t.Errorf("list after rm:\n%s", out)
	}

	if _, err := execute(t, "waypoint", "rm", "missing"); err == nil {
		t.Error("removing a missing waypoint should fail")
	}
}

func TestCountriesCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "countries", "fran")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "France") {
		t.Errorf("output:\n%s", out)
	}

	if _, err := execute(t, "countries", "--format", "yaml"); err == nil {
		t.Error("expected invalid format error")
	}
}

func TestCacheCommands(t *testing.T) {
	isolate(t)

	out, err := execute(t, "cache", "stats")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Total: 0") {
		t.Errorf("stats output:\n%s", out)
	}

	out, err = execute(t, "cache", "clear")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Cache cleared.") {
		t.Errorf("clear output:\n%s", out)
	}
}

func TestConfigSet(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "set", "notifications.send", "true")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Set notifications.send to true") {
		t.Errorf("output:\n%s", out)
	}

	if _, err := execute(t, "config", "set", "api.key", "secret"); err == nil {
		t.Error("api.key must not be settable")
	}
	if _, err := execute(t, "config", "set", "notifications.send", "often"); err == nil {
		t.Error("expected invalid bool error")
	}
}

func TestConfigShow(t *testing.T) {
	dir := isolate(t)
	t.Chdir(dir)

	tests := []struct {
		name string
		env  string
		args []string
		want []string
	}{
		{
			name: "key from environment is masked",
			env:  "abcdefgh1234",
			args: []string{"config", "show"},
			want: []string{"********1234 [env]", "Send leg:          off", "Receive leg:       on", "Countries:         built in"},
		},
		{
			name: "missing key names the variable",
			args: []string{"config"},
			want: []string{"(not set, export " + constants.APIKeyEnv + ") [none]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(constants.APIKeyEnv, tt.env)
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			if tt.env != "" && strings.Contains(out, tt.env) {
				t.Errorf("output leaks the API key:\n%s", out)
			}
		})
	}
}

func TestConfigShowReflectsSet(t *testing.T) {
	dir := isolate(t)
	t.Chdir(dir)
	t.Setenv(constants.APIKeyEnv, "")

	if _, err := execute(t, "config", "set", "notifications.send", "true"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "config", "show", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		API struct {
			KeySource string `json:"key_source"`
		} `json:"api"`
		Notifications struct {
			Send bool `json:"send"`
		} `json:"notifications"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if !got.Notifications.Send {
		t.Error("notifications.send set to true is not shown")
	}
	if got.API.KeySource != "none" {
		t.Errorf("key_source = %q, want none", got.API.KeySource)
	}

	if _, err := execute(t, "config", "show", "-o", "xml"); err == nil {
		t.Error("expected invalid format error")
	}
}

func TestConfigPath(t *testing.T) {
	dir := isolate(t)
	t.Chdir(dir)

	out, err := execute(t, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "config", "staticmap", "config.yaml") + " (not found)",
		filepath.Join(dir, "config", "staticmap", "waypoints.json"),
		filepath.Join(dir, "cache", "staticmap", "maps"),
		"Countries: built in",
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)
	t.Chdir(dir)

	out, err := execute(t, "config", "init", "--global")
	if err != nil {
		t.Fatal(err)
	}
	global := filepath.Join(dir, "config", "staticmap", "config.yaml")
	if !strings.Contains(out, "Created global config file: "+global) {
		t.Errorf("output:\n%s", out)
	}
	if _, err := os.Stat(global); err != nil {
		t.Fatalf("global config not written: %v", err)
	}
	if _, err := execute(t, "config", "init", "--global"); err == nil {
		t.Error("expected an error for an existing file")
	}
	if _, err := execute(t, "config", "init", "--global", "--local"); err == nil {
		t.Error("expected an error for both flags")
	}

	// the prompt reads from the command's input
	root := New()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader("2\n"))
	root.SetArgs([]string{"config", "init"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".staticmap.yaml")); err != nil {
		t.Errorf("local config not written: %v\n%s", err, buf.String())
	}
}
