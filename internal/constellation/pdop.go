package constellation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/radiolab/gnss-simulator/internal/geodesy"
)

// DefaultMinPDOPSatellites is the minimum number of visible satellites
// required for a geometry solution.
const DefaultMinPDOPSatellites = 4

// condLimit rejects near-singular geometry before inversion produces
// meaningless numbers.
const condLimit = 1e8

// ErrInsufficientGeometry is returned when too few satellites are visible or
// their geometry is too degenerate for a position solution.
var ErrInsufficientGeometry = errors.New("insufficient satellite geometry")

// PDOP computes the Position Dilution of Precision from the visible
// satellites in observations. The design matrix holds the unit line-of-sight
// vectors plus a unity clock-bias column; PDOP is the root of the trace of
// the position sub-block of (A^T A)^-1. Requires at least minSats visible
// satellites, otherwise ErrInsufficientGeometry.
func PDOP(observations []Observation, observerECEF geodesy.ECEF, minSats int) (float64, error) {
	if minSats < 4 {
		minSats = DefaultMinPDOPSatellites
	}

	visible := Visible(observations)
	if len(visible) < minSats {
		return 0, fmt.Errorf("%w: %d visible satellites, need %d", ErrInsufficientGeometry, len(visible), minSats)
	}

	a := mat.NewDense(len(visible), 4, nil)
	for i, o := range visible {
		dx := o.Position.X - observerECEF.X
		dy := o.Position.Y - observerECEF.Y
		dz := o.Position.Z - observerECEF.Z
		r := math.Sqrt(dx*dx + dy*dy + dz*dz)

		a.Set(i, 0, dx/r)
		a.Set(i, 1, dy/r)
		a.Set(i, 2, dz/r)
		a.Set(i, 3, 1)
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)

	if cond := mat.Cond(&ata, 2); math.IsNaN(cond) || cond > condLimit {
		return 0, fmt.Errorf("%w: near-singular geometry (condition number %.3g)", ErrInsufficientGeometry, cond)
	}

	var cov mat.Dense
	if err := cov.Inverse(&ata); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInsufficientGeometry, err)
	}

	pdop := math.Sqrt(cov.At(0, 0) + cov.At(1, 1) + cov.At(2, 2))
	if math.IsNaN(pdop) || math.IsInf(pdop, 0) {
		return 0, fmt.Errorf("%w: non-finite PDOP", ErrInsufficientGeometry)
	}
	return pdop, nil
}

// Quality buckets a constellation into the acceptance tiers used on the
// bench: excellent, good, adequate or poor.
func Quality(visibleCount int, pdop float64, pdopOK bool) string {
	switch {
	case pdopOK && visibleCount >= 8 && pdop < 2.0:
		return "excellent"
	case pdopOK && visibleCount >= 6 && pdop < 3.0:
		return "good"
	case pdopOK && visibleCount >= 4 && pdop < 6.0:
		return "adequate"
	default:
		return "poor"
	}
}
