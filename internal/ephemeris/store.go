package ephemeris

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// navPatterns match the RINEX navigation file names gps-sdr-sim consumes:
// brdc2120.25n, site1230.24n, auto.nav and similar.
var navPatterns = []string{"*.nav", "*.[0-9][0-9]n", "*.n"}

// Store provides lock-free read access to the current ephemeris snapshot.
// Loads are serialized; readers never block on a reload in progress.
type Store struct {
	current atomic.Pointer[Set]
	mu      sync.Mutex // serializes load operations
	logger  *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// Current returns the latest snapshot, or ErrDataUnavailable when no load
// has ever succeeded.
func (s *Store) Current() (*Set, error) {
	set := s.current.Load()
	if set == nil {
		return nil, ErrDataUnavailable
	}
	return set, nil
}

// Swap atomically replaces the current snapshot.
func (s *Store) Swap(set *Set) {
	s.current.Store(set)
}

// LoadFile parses a navigation file and swaps it in as the current snapshot.
// The previous snapshot stays visible until the new one is fully built, so a
// failed load never leaves readers without data.
func (s *Store) LoadFile(path string) (*Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening navigation file: %w", err)
	}
	defer f.Close()

	entries, err := Parse(f, s.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	set := NewSet(entries, path)
	s.current.Store(set)

	s.logger.Info("ephemeris loaded",
		slog.String("path", path),
		slog.Int("satellites", set.Len()),
	)
	return set, nil
}

// LatestFile returns the most recently modified navigation file in dir, or
// ErrDataUnavailable when none is present.
func LatestFile(dir string) (string, error) {
	var newest string
	var newestMod int64

	for _, pattern := range navPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", fmt.Errorf("scanning %s: %w", dir, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
				newest, newestMod = m, mod
			}
		}
	}

	if newest == "" {
		return "", fmt.Errorf("%w: no navigation files in %s", ErrDataUnavailable, dir)
	}
	return newest, nil
}
