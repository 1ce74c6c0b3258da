package constellation

import (
	"iter"
	"time"

	"github.com/radiolab/gnss-simulator/internal/ephemeris"
	"github.com/radiolab/gnss-simulator/internal/geodesy"
)

// DefaultElevationMaskDeg is the minimum elevation for a satellite to count
// as visible. Operational default, overridable through configuration.
const DefaultElevationMaskDeg = 5.0

// Observation is the observer-relative state of one satellite at a point in
// time. Derived per query, never stored.
type Observation struct {
	PRN          int          `json:"prn"`
	Position     geodesy.ECEF `json:"ecefPosition"`
	AzimuthDeg   float64      `json:"azimuth"`
	ElevationDeg float64      `json:"elevation"`
	RangeM       float64      `json:"range"`
	Visible      bool         `json:"visible"`
	Healthy      bool         `json:"healthy"`
}

// Observations returns a restartable sequence of satellite observations for
// the given observer and time, ordered by PRN ascending. Satellites below
// maskDeg are yielded with Visible=false rather than dropped, so callers can
// report the whole constellation. Fails with ephemeris.ErrDataUnavailable
// when the snapshot is empty.
func Observations(observer geodesy.Geodetic, set *ephemeris.Set, at time.Time, maskDeg float64) (iter.Seq[Observation], error) {
	if set == nil || set.Len() == 0 {
		return nil, ephemeris.ErrDataUnavailable
	}

	observerECEF := geodesy.ToECEF(observer)
	prns := set.PRNs()

	return func(yield func(Observation) bool) {
		for _, prn := range prns {
			e := set.Entry(prn)
			pos := SatellitePosition(e, at)
			look := geodesy.Look(observer, observerECEF, pos)

			obs := Observation{
				PRN:          prn,
				Position:     pos,
				AzimuthDeg:   look.AzimuthDeg,
				ElevationDeg: look.ElevationDeg,
				RangeM:       look.RangeM,
				Visible:      look.ElevationDeg >= maskDeg,
				Healthy:      e.Healthy(),
			}
			if !yield(obs) {
				return
			}
		}
	}, nil
}

// Visible filters a collected observation slice down to satellites above the
// elevation mask.
func Visible(observations []Observation) []Observation {
	var out []Observation
	for _, o := range observations {
		if o.Visible {
			out = append(out, o)
		}
	}
	return out
}
