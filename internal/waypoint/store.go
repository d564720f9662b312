// Package waypoint persists named map positions.
package waypoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spiffcs/staticmap/internal/log"
	"github.com/spiffcs/staticmap/internal/viewport"
)

var (
	// ErrEmptyName is returned when adding a waypoint without a name.
	ErrEmptyName = errors.New("waypoint name is empty")

	// ErrNotFound is returned when no waypoint has the requested name.
	ErrNotFound = errors.New("waypoint not found")
)

// Store manages persistence of waypoints in a JSON file
type Store struct {
	path      string
	waypoints []viewport.Waypoint
	mu        sync.RWMutex
}

// DefaultPath returns the waypoints file under the user config dir.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "staticmap", "waypoints.json"), nil
}

// NewStore opens the store at path, or DefaultPath when path is empty. A
// missing file is an empty store.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load waypoints from %s: %w", path, err)
	}

	log.Debug("loaded waypoints", "path", path, "count", len(s.waypoints))
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// load reads the waypoints from disk
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	return json.Unmarshal(data, &s.waypoints)
}

// save writes list to disk. Callers commit list to memory only after save
// succeeds.
func (s *Store) save(list []viewport.Waypoint) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create waypoint directory: %w", err)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write waypoints: %w", err)
	}
	return nil
}

// Add stores w. A waypoint with the same name is replaced in place. On a
// write failure the store is left unchanged.
func (s *Store) Add(w viewport.Waypoint) error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return ErrEmptyName
	}
	if _, _, err := w.Coordinates(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]viewport.Waypoint, len(s.waypoints), len(s.waypoints)+1)
	copy(next, s.waypoints)
	replaced := false
	for i, existing := range next {
		if existing.Name == w.Name {
			next[i] = w
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, w)
	}

	if err := s.save(next); err != nil {
		return err
	}
	s.waypoints = next
	return nil
}

// Remove deletes the waypoint with the given name. On a write failure the
// store is left unchanged.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.waypoints {
		if w.Name != name {
			continue
		}
		next := make([]viewport.Waypoint, 0, len(s.waypoints)-1)
		next = append(next, s.waypoints[:i]...)
		next = append(next, s.waypoints[i+1:]...)
		if err := s.save(next); err != nil {
			return err
		}
		s.waypoints = next
		return nil
	}
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Get returns the waypoint with the given name.
func (s *Store) Get(name string) (viewport.Waypoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.waypoints {
		if w.Name == name {
			return w, nil
		}
	}
	return viewport.Waypoint{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// List returns all waypoints in insertion order.
func (s *Store) List() []viewport.Waypoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]viewport.Waypoint, len(s.waypoints))
	copy(out, s.waypoints)
	return out
}

// Count returns the number of waypoints
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.waypoints)
}
