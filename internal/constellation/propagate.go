// Package constellation computes GPS satellite positions from broadcast
// ephemerides and derives observer-relative visibility and geometry quality.
// Everything here is a pure function over immutable snapshots.
package constellation

import (
	"math"
	"time"

	"github.com/radiolab/gnss-simulator/internal/ephemeris"
	"github.com/radiolab/gnss-simulator/internal/geodesy"
)

const (
	earthMu       = 3.986005e14     // WGS-84 gravitational constant (m^3/s^2)
	earthRotRate  = 7.2921151467e-5 // earth rotation rate (rad/s)
	halfWeekSec   = 302400.0
	keplerTol     = 1e-10 // eccentric anomaly convergence (rad)
	keplerMaxIter = 30
)

// SatellitePosition propagates broadcast orbital elements to the given time
// and returns the satellite's ECEF position. Standard IS-GPS-200 algorithm:
// mean anomaly advance, Newton solution of Kepler's equation, harmonic
// corrections and earth-rotation-corrected longitude of the ascending node.
func SatellitePosition(e *ephemeris.Entry, at time.Time) geodesy.ECEF {
	tk := at.Sub(e.ToeTime()).Seconds()
	// Account for week crossovers.
	if tk > halfWeekSec {
		tk -= 2 * halfWeekSec
	} else if tk < -halfWeekSec {
		tk += 2 * halfWeekSec
	}

	a := e.SqrtA * e.SqrtA
	n := math.Sqrt(earthMu/(a*a*a)) + e.DeltaN
	mk := e.M0 + n*tk

	ek := solveKepler(mk, e.Ecc)

	sinEk := math.Sin(ek)
	cosEk := math.Cos(ek)

	// True anomaly and argument of latitude.
	vk := math.Atan2(math.Sqrt(1-e.Ecc*e.Ecc)*sinEk, cosEk-e.Ecc)
	phi := vk + e.Omega

	sin2phi := math.Sin(2 * phi)
	cos2phi := math.Cos(2 * phi)

	uk := phi + e.Cus*sin2phi + e.Cuc*cos2phi
	rk := a*(1-e.Ecc*cosEk) + e.Crs*sin2phi + e.Crc*cos2phi
	ik := e.I0 + e.Cis*sin2phi + e.Cic*cos2phi + e.Idot*tk

	// Position in the orbital plane.
	xp := rk * math.Cos(uk)
	yp := rk * math.Sin(uk)

	// Corrected longitude of ascending node, rotated into ECEF.
	omk := e.Omega0 + (e.OmegaDot-earthRotRate)*tk - earthRotRate*e.Toe

	sinOmk := math.Sin(omk)
	cosOmk := math.Cos(omk)
	sinIk := math.Sin(ik)
	cosIk := math.Cos(ik)

	return geodesy.ECEF{
		X: xp*cosOmk - yp*sinOmk*cosIk,
		Y: xp*sinOmk + yp*cosOmk*cosIk,
		Z: yp * sinIk,
	}
}

// solveKepler finds the eccentric anomaly by Newton iteration.
func solveKepler(m, ecc float64) float64 {
	ek := m
	for i := 0; i < keplerMaxIter; i++ {
		delta := (ek - ecc*math.Sin(ek) - m) / (1 - ecc*math.Cos(ek))
		ek -= delta
		if math.Abs(delta) <= keplerTol {
			break
		}
	}
	return ek
}

// ClockCorrection evaluates the broadcast clock polynomial at the given
// time, in seconds. Relativistic and group delay terms are not applied;
// visibility work does not need them.
func ClockCorrection(e *ephemeris.Entry, at time.Time) float64 {
	dt := at.Sub(e.Toc).Seconds()
	return e.Af0 + e.Af1*dt + e.Af2*dt*dt
}
