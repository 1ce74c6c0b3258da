// Package geodesy implements WGS-84 coordinate conversions between the
// geodetic, ECEF and local East-North-Up frames. All functions are pure and
// safe for concurrent use.
package geodesy

import (
	"errors"
	"fmt"
	"math"
)

// WGS-84 ellipsoid parameters.
const (
	WGS84A  = 6378137.0             // semi-major axis (meters)
	WGS84F  = 1.0 / 298.257223563   // flattening
	WGS84E2 = WGS84F * (2 - WGS84F) // first eccentricity squared
)

// Altitude bounds accepted for a simulated receiver position.
const (
	MinAltitudeM = -1000.0
	MaxAltitudeM = 100000.0
)

// ErrInvalidCoordinate is returned when a geodetic coordinate is outside the
// valid WGS-84 ranges.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Geodetic is a position on the WGS-84 ellipsoid.
type Geodetic struct {
	LatDeg float64 `json:"latitude"`
	LonDeg float64 `json:"longitude"`
	AltM   float64 `json:"altitude"`
}

// ECEF is an Earth-Centered Earth-Fixed Cartesian position in meters.
type ECEF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LookAngles describes a target as seen from an observer.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeM       float64
}

// Validate checks that g is a usable WGS-84 position.
func Validate(g Geodetic) error {
	if g.LatDeg < -90 || g.LatDeg > 90 {
		return fmt.Errorf("%w: latitude %.6f outside [-90, 90]", ErrInvalidCoordinate, g.LatDeg)
	}
	if g.LonDeg < -180 || g.LonDeg > 180 {
		return fmt.Errorf("%w: longitude %.6f outside [-180, 180]", ErrInvalidCoordinate, g.LonDeg)
	}
	if g.AltM < MinAltitudeM || g.AltM > MaxAltitudeM {
		return fmt.Errorf("%w: altitude %.1f outside [%.0f, %.0f]", ErrInvalidCoordinate, g.AltM, MinAltitudeM, MaxAltitudeM)
	}
	return nil
}

// ToECEF converts a geodetic position to ECEF. The input is not validated;
// call Validate first when the coordinate comes from an external caller.
func ToECEF(g Geodetic) ECEF {
	lat := g.LatDeg * math.Pi / 180
	lon := g.LonDeg * math.Pi / 180

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	n := WGS84A / math.Sqrt(1-WGS84E2*sinLat*sinLat)

	return ECEF{
		X: (n + g.AltM) * cosLat * math.Cos(lon),
		Y: (n + g.AltM) * cosLat * math.Sin(lon),
		Z: (n*(1-WGS84E2) + g.AltM) * sinLat,
	}
}

// ToGeodetic converts an ECEF position back to geodetic coordinates using the
// iterative Bowring method. Round-trips ToECEF to within 1e-6 degrees and
// 0.01 m for any valid input.
func ToGeodetic(p ECEF) Geodetic {
	lon := math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, rho*(1-WGS84E2))
	var n, alt float64
	for i := 0; i < 10; i++ {
		sinLat := math.Sin(lat)
		n = WGS84A / math.Sqrt(1-WGS84E2*sinLat*sinLat)
		alt = rho/math.Cos(lat) - n
		next := math.Atan2(p.Z, rho*(1-WGS84E2*n/(n+alt)))
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n = WGS84A / math.Sqrt(1-WGS84E2*sinLat*sinLat)
	if math.Abs(cosLat) > 1e-10 {
		alt = rho/cosLat - n
	} else {
		alt = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-WGS84E2)
	}

	return Geodetic{
		LatDeg: lat * 180 / math.Pi,
		LonDeg: lon * 180 / math.Pi,
		AltM:   alt,
	}
}

// Look computes azimuth, elevation and range from an observer to a target,
// both given in ECEF meters. The observer's geodetic latitude and longitude
// define the local East-North-Up frame.
func Look(observer Geodetic, observerECEF, target ECEF) LookAngles {
	dx := target.X - observerECEF.X
	dy := target.Y - observerECEF.Y
	dz := target.Z - observerECEF.Z

	lat := observer.LatDeg * math.Pi / 180
	lon := observer.LonDeg * math.Pi / 180

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	sinLon := math.Sin(lon)
	cosLon := math.Cos(lon)

	east := -sinLon*dx + cosLon*dy
	north := -sinLat*cosLon*dx - sinLat*sinLon*dy + cosLat*dz
	up := cosLat*cosLon*dx + cosLat*sinLon*dy + sinLat*dz

	rng := math.Sqrt(dx*dx + dy*dy + dz*dz)

	az := math.Atan2(east, north) * 180 / math.Pi
	if az < 0 {
		az += 360
	}

	return LookAngles{
		AzimuthDeg:   az,
		ElevationDeg: math.Asin(up/rng) * 180 / math.Pi,
		RangeM:       rng,
	}
}

// DistanceBearing returns the great-circle distance in meters and initial
// bearing in degrees from a to b.
func DistanceBearing(a, b Geodetic) (distanceM, bearingDeg float64) {
	const earthRadiusM = 6371000.0

	lat1 := a.LatDeg * math.Pi / 180
	lon1 := a.LonDeg * math.Pi / 180
	lat2 := b.LatDeg * math.Pi / 180
	lon2 := b.LonDeg * math.Pi / 180

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	distanceM = earthRadiusM * 2 * math.Asin(math.Sqrt(h))

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearingDeg = math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)

	return distanceM, bearingDeg
}
