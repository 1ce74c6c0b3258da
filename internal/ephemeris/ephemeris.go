// Package ephemeris loads GPS broadcast ephemerides from RINEX navigation
// files and serves them as immutable, atomically swapped snapshots.
package ephemeris

import (
	"errors"
	"slices"
	"time"
)

var (
	// ErrDataFormat is returned when a navigation file yields no usable records.
	ErrDataFormat = errors.New("navigation data format error")

	// ErrDataUnavailable is returned when no ephemeris has ever been loaded.
	ErrDataUnavailable = errors.New("ephemeris data unavailable")
)

// gpsEpoch is the start of GPS system time (1980-01-06 00:00:00 UTC).
var gpsEpoch = time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)

const secondsPerWeek = 604800.0

// Entry holds the broadcast orbital elements and clock terms for one
// satellite. Fields follow the RINEX 2 navigation record layout; angles are
// in radians, times in seconds of GPS week unless noted.
type Entry struct {
	PRN int
	Toc time.Time // reference epoch of the clock terms

	// Clock correction polynomial.
	Af0, Af1, Af2 float64

	// Orbit.
	Iode     int
	Crs      float64 // radius sine harmonic (m)
	DeltaN   float64 // mean motion correction (rad/s)
	M0       float64 // mean anomaly at reference time
	Cuc      float64 // latitude argument cosine harmonic
	Ecc      float64 // eccentricity
	Cus      float64 // latitude argument sine harmonic
	SqrtA    float64 // sqrt of semi-major axis (sqrt(m))
	Toe      float64 // time of ephemeris, seconds of week
	Cic      float64 // inclination cosine harmonic
	Omega0   float64 // longitude of ascending node at weekly epoch
	Cis      float64 // inclination sine harmonic
	I0       float64 // inclination at reference time
	Crc      float64 // radius cosine harmonic (m)
	Omega    float64 // argument of perigee
	OmegaDot float64 // rate of right ascension (rad/s)
	Idot     float64 // rate of inclination (rad/s)
	Week     int     // GPS week of Toe

	// Status.
	Accuracy float64 // user range accuracy (m)
	Health   int     // 0 = healthy
	Tgd      float64 // group delay (s)
	Iodc     int
}

// ToeTime returns the absolute time of ephemeris. GPS-UTC leap seconds are
// ignored, which is well below the accuracy needed for visibility work.
func (e *Entry) ToeTime() time.Time {
	sec := float64(e.Week)*secondsPerWeek + e.Toe
	return gpsEpoch.Add(time.Duration(sec * float64(time.Second)))
}

// Healthy reports whether the broadcast health word marks the satellite usable.
func (e *Entry) Healthy() bool { return e.Health == 0 }

// Set is an immutable collection of ephemeris entries keyed by PRN. A Set is
// never mutated after construction; reloads build a fresh Set and swap it in.
type Set struct {
	entries  map[int]*Entry
	loadedAt time.Time
	source   string
}

// NewSet builds a Set from parsed entries. When the same PRN appears more
// than once the later record wins, matching receiver behaviour for daily
// broadcast files.
func NewSet(entries []*Entry, source string) *Set {
	m := make(map[int]*Entry, len(entries))
	for _, e := range entries {
		m[e.PRN] = e
	}
	return &Set{entries: m, loadedAt: time.Now().UTC(), source: source}
}

// Len returns the number of satellites in the set.
func (s *Set) Len() int { return len(s.entries) }

// Source returns the file or URL the set was loaded from.
func (s *Set) Source() string { return s.source }

// LoadedAt returns when the set was loaded.
func (s *Set) LoadedAt() time.Time { return s.loadedAt }

// Entry returns the ephemeris for a PRN, or nil when absent.
func (s *Set) Entry(prn int) *Entry { return s.entries[prn] }

// PRNs returns all satellite identifiers in ascending order.
func (s *Set) PRNs() []int {
	prns := make([]int, 0, len(s.entries))
	for prn := range s.entries {
		prns = append(prns, prn)
	}
	slices.Sort(prns)
	return prns
}

// Freshness buckets the age of the loaded data the way operators reason
// about broadcast ephemerides.
func (s *Set) Freshness(now time.Time) string {
	switch age := now.Sub(s.loadedAt); {
	case age < time.Hour:
		return "fresh"
	case age < 4*time.Hour:
		return "recent"
	case age < 24*time.Hour:
		return "stale"
	default:
		return "old"
	}
}

// HealthSummary counts healthy satellites in the set.
func (s *Set) HealthSummary() (healthy, total int) {
	for _, e := range s.entries {
		total++
		if e.Healthy() {
			healthy++
		}
	}
	return healthy, total
}
