package constellation

import (
	"errors"
	"slices"
	"time"

	"github.com/radiolab/gnss-simulator/internal/ephemeris"
	"github.com/radiolab/gnss-simulator/internal/geodesy"
)

// State is a complete constellation picture for one observer and time.
type State struct {
	Time         time.Time        `json:"timestamp"`
	Observer     geodesy.Geodetic `json:"observer"`
	Observations []Observation    `json:"satellites"`
	VisibleCount int              `json:"visibleCount"`
	PDOP         float64          `json:"pdop,omitempty"`
	PDOPValid    bool             `json:"pdopValid"`
	Quality      string           `json:"quality"`
}

// Compute evaluates the full constellation state. A geometry failure is
// reported through PDOPValid=false and the quality tier, never as an error;
// only missing ephemeris data fails.
func Compute(observer geodesy.Geodetic, set *ephemeris.Set, at time.Time, maskDeg float64, minSats int) (*State, error) {
	seq, err := Observations(observer, set, at, maskDeg)
	if err != nil {
		return nil, err
	}

	observations := slices.Collect(seq)
	visible := len(Visible(observations))

	state := State{
		Time:         at,
		Observer:     observer,
		Observations: observations,
		VisibleCount: visible,
	}

	pdop, err := PDOP(observations, geodesy.ToECEF(observer), minSats)
	switch {
	case err == nil:
		state.PDOP = pdop
		state.PDOPValid = true
	case errors.Is(err, ErrInsufficientGeometry):
		// degraded, reflected in the quality tier
	default:
		return nil, err
	}

	state.Quality = Quality(visible, state.PDOP, state.PDOPValid)
	return &state, nil
}
