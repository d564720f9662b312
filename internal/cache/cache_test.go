package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStripKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/map?center=1,2&key=secret&zoom=3", "https://example.com/map?center=1,2&zoom=3"},
		{"https://example.com/map?key=secret", "https://example.com/map"},
		{"https://example.com/map", "https://example.com/map"},
		{"https://example.com/map?zoom=3", "https://example.com/map?zoom=3"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := StripKey(tt.input); got != tt.want {
				t.Errorf("StripKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyIgnoresAPIKey(t *testing.T) {
	a := Key("https://example.com/map?center=1,2&key=one")
	b := Key("https://example.com/map?center=1,2&key=two")
	if a != b {
		t.Errorf("keys differ by API key: %s vs %s", a, b)
	}
	if a == Key("https://example.com/map?center=1,3") {
		t.Error("different positions share a key")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	url := "https://example.com/map?center=1,2&key=secret"
	if _, ok := c.Get(url); ok {
		t.Fatal("Get() hit on empty cache")
	}

	if err := c.Set(&MapEntry{URL: url, ContentType: "image/png", Data: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	entry, ok := c.Get(url)
	if !ok {
		t.Fatal("Get() missed after Set()")
	}
	if string(entry.Data) != "\x01\x02\x03" || entry.ContentType != "image/png" {
		t.Errorf("Get() = %+v", entry)
	}
	if entry.URL != "https://example.com/map?center=1,2" {
		t.Errorf("stored URL %q still carries the API key", entry.URL)
	}
}

func TestCacheTTL(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c, err := New(t.TempDir(), WithTTL(time.Hour), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	url := "https://example.com/map?center=1,2"
	if err := c.Set(&MapEntry{URL: url, Data: []byte("x")}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	now = now.Add(30 * time.Minute)
	if _, ok := c.Get(url); !ok {
		t.Error("Get() missed a fresh entry")
	}

	now = now.Add(time.Hour)
	if _, ok := c.Get(url); ok {
		t.Error("Get() hit an expired entry")
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Total != 1 || stats.Valid != 0 {
		t.Errorf("Stats() = %+v, want 1 total, 0 valid", stats)
	}
}

func TestCacheVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	url := "https://example.com/map?center=5,5"
	data, _ := json.Marshal(MapEntry{URL: url, Data: []byte("old"), CachedAt: time.Now(), Version: Version + 1})
	if err := os.WriteFile(filepath.Join(dir, Key(url)), data, 0600); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(url); ok {
		t.Error("Get() returned an entry with a different version")
	}
}

func TestCacheClear(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	for _, u := range []string{"https://a/?x=1", "https://a/?x=2"} {
		if err := c.Set(&MapEntry{URL: u, Data: []byte(u)}); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}

	stats, _ := c.Stats()
	if stats.Total != 2 || stats.Valid != 2 {
		t.Fatalf("Stats() = %+v, want 2/2", stats)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	stats, _ = c.Stats()
	if stats.Total != 0 {
		t.Errorf("Stats() after Clear() = %+v", stats)
	}
}
