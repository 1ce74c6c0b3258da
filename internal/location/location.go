// Package location holds the process-wide simulated receiver position.
package location

import (
	"errors"
	"fmt"
	"sync"

	"github.com/radiolab/gnss-simulator/internal/geodesy"
)

// DefaultAltitudeM is applied when a caller sets a location without an
// altitude.
const DefaultAltitudeM = 100.0

// ErrNotConfigured is returned by Get before any location has been set.
var ErrNotConfigured = errors.New("no location configured")

// State is the single current simulated location. Updates are validated and
// atomic: a failed Set leaves the previous value untouched, and Get never
// observes a partially written location.
type State struct {
	mu  sync.RWMutex
	loc geodesy.Geodetic
	set bool
}

// NewState creates an empty State.
func NewState() *State {
	return &State{}
}

// Set validates and atomically replaces the current location.
func (s *State) Set(loc geodesy.Geodetic) error {
	if err := geodesy.Validate(loc); err != nil {
		return fmt.Errorf("setting location: %w", err)
	}

	s.mu.Lock()
	s.loc = loc
	s.set = true
	s.mu.Unlock()
	return nil
}

// Get returns the current location, or ErrNotConfigured when none has been
// set yet.
func (s *State) Get() (geodesy.Geodetic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.set {
		return geodesy.Geodetic{}, ErrNotConfigured
	}
	return s.loc, nil
}

// Configured reports whether a location has been set.
func (s *State) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}
