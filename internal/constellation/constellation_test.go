package constellation

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/radiolab/gnss-simulator/internal/ephemeris"
	"github.com/radiolab/gnss-simulator/internal/geodesy"
)

// Reference epoch: two hours into GPS week 2377 (2025-07-27 02:00:00 UTC).
var (
	testWeek = 2377
	testToe  = 7200.0
	testTime = time.Date(2025, 7, 27, 2, 0, 0, 0, time.UTC)
)

// syntheticEntry builds a broadcast entry for a circular-ish GPS orbit with
// the nominal 26,560 km radius and 55 degree inclination.
func syntheticEntry(prn int, raanDeg, m0Deg float64) *ephemeris.Entry {
	return &ephemeris.Entry{
		PRN:    prn,
		Toc:    testTime,
		SqrtA:  math.Sqrt(26560000.0),
		Ecc:    0.01,
		I0:     55 * math.Pi / 180,
		Omega0: raanDeg * math.Pi / 180,
		M0:     m0Deg * math.Pi / 180,
		Week:   testWeek,
		Toe:    testToe,
	}
}

// syntheticSet mirrors the nominal six-plane, four-slot GPS constellation.
func syntheticSet() *ephemeris.Set {
	var entries []*ephemeris.Entry
	for plane := 0; plane < 6; plane++ {
		for slot := 0; slot < 4; slot++ {
			prn := plane*4 + slot + 1
			entries = append(entries, syntheticEntry(prn, float64(plane)*60, float64(slot)*90+float64(plane)*15))
		}
	}
	return ephemeris.NewSet(entries, "synthetic")
}

func TestSolveKepler(t *testing.T) {
	for _, ecc := range []float64{0, 0.01, 0.1, 0.5, 0.9} {
		for m := -3.0; m <= 3.0; m += 0.37 {
			ek := solveKepler(m, ecc)
			if residual := math.Abs(ek - ecc*math.Sin(ek) - m); residual > 1e-10 {
				t.Errorf("kepler residual %g for M=%.2f e=%.2f", residual, m, ecc)
			}
		}
	}
}

func TestSatellitePositionOrbitRadius(t *testing.T) {
	for _, e := range []*ephemeris.Entry{
		syntheticEntry(1, 0, 0),
		syntheticEntry(2, 120, 45),
		syntheticEntry(3, 240, 200),
	} {
		pos := SatellitePosition(e, testTime)
		r := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
		a := e.SqrtA * e.SqrtA
		// Radius stays within a*(1 +- ecc) for a Keplerian orbit.
		if r < a*(1-e.Ecc)-1 || r > a*(1+e.Ecc)+1 {
			t.Errorf("PRN %d orbit radius %.0f outside [%g, %g]", e.PRN, r, a*(1-e.Ecc), a*(1+e.Ecc))
		}
	}
}

func TestSatellitePositionEquatorial(t *testing.T) {
	// Circular equatorial orbit with all angles zero and Toe at the week
	// boundary: the satellite sits on the +X axis at Toe.
	e := &ephemeris.Entry{
		PRN:   1,
		Toc:   testTime,
		SqrtA: math.Sqrt(26560000.0),
		Week:  testWeek,
	}
	at := time.Date(2025, 7, 27, 0, 0, 0, 0, time.UTC) // week 2377 start

	pos := SatellitePosition(e, at)
	if math.Abs(pos.X-26560000.0) > 1e-3 || math.Abs(pos.Y) > 1e-3 || math.Abs(pos.Z) > 1e-3 {
		t.Errorf("position = %+v, want (26560000, 0, 0)", pos)
	}
}

func TestSatellitePositionAdvances(t *testing.T) {
	e := syntheticEntry(1, 0, 0)
	p1 := SatellitePosition(e, testTime)
	p2 := SatellitePosition(e, testTime.Add(time.Minute))

	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	dz := p2.Z - p1.Z
	moved := math.Sqrt(dx*dx + dy*dy + dz*dz)

	// GPS orbital speed is ~3.9 km/s; in one minute the ECEF position should
	// move on the order of 200 km (orbital motion minus earth rotation).
	if moved < 100000 || moved > 400000 {
		t.Errorf("satellite moved %.0f m in one minute", moved)
	}
}

func TestObservationsOrderingAndRestart(t *testing.T) {
	london := geodesy.Geodetic{LatDeg: 51.5074, LonDeg: -0.1278, AltM: 100}
	set := syntheticSet()

	seq, err := Observations(london, set, testTime, DefaultElevationMaskDeg)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}

	first := slices.Collect(seq)
	if len(first) != set.Len() {
		t.Fatalf("got %d observations, want %d", len(first), set.Len())
	}
	for i := 1; i < len(first); i++ {
		if first[i].PRN <= first[i-1].PRN {
			t.Fatalf("observations not in ascending PRN order: %d after %d", first[i].PRN, first[i-1].PRN)
		}
	}

	// The sequence must be restartable and deterministic.
	second := slices.Collect(seq)
	if len(second) != len(first) {
		t.Fatalf("second pass yielded %d observations, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("observation %d differs between passes", i)
		}
	}
}

func TestObservationsEarlyBreak(t *testing.T) {
	london := geodesy.Geodetic{LatDeg: 51.5074, LonDeg: -0.1278, AltM: 100}
	seq, err := Observations(london, syntheticSet(), testTime, DefaultElevationMaskDeg)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}

	count := 0
	for range seq {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Errorf("consumed %d observations, want 3", count)
	}
}

func TestObservationsEmptySet(t *testing.T) {
	london := geodesy.Geodetic{LatDeg: 51.5074, LonDeg: -0.1278, AltM: 100}

	if _, err := Observations(london, nil, testTime, 5); !errors.Is(err, ephemeris.ErrDataUnavailable) {
		t.Errorf("nil set: err = %v, want ErrDataUnavailable", err)
	}
	if _, err := Observations(london, ephemeris.NewSet(nil, "empty"), testTime, 5); !errors.Is(err, ephemeris.ErrDataUnavailable) {
		t.Errorf("empty set: err = %v, want ErrDataUnavailable", err)
	}
}

func TestVisibilityMask(t *testing.T) {
	// Observer on the equator at the prime meridian; one satellite straight
	// overhead, one on the far side of the planet.
	observer := geodesy.Geodetic{LatDeg: 0, LonDeg: 0, AltM: 0}
	at := time.Date(2025, 7, 27, 0, 0, 0, 0, time.UTC)

	overhead := &ephemeris.Entry{PRN: 1, Toc: at, SqrtA: math.Sqrt(26560000.0), Week: testWeek}
	antipodal := &ephemeris.Entry{PRN: 2, Toc: at, SqrtA: math.Sqrt(26560000.0), Week: testWeek, Omega0: math.Pi}
	set := ephemeris.NewSet([]*ephemeris.Entry{overhead, antipodal}, "test")

	seq, err := Observations(observer, set, at, DefaultElevationMaskDeg)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	obs := slices.Collect(seq)

	if !obs[0].Visible || math.Abs(obs[0].ElevationDeg-90) > 0.1 {
		t.Errorf("overhead satellite: visible=%v elevation=%.2f, want visible at ~90", obs[0].Visible, obs[0].ElevationDeg)
	}
	if obs[1].Visible || obs[1].ElevationDeg > 0 {
		t.Errorf("antipodal satellite: visible=%v elevation=%.2f, want hidden below horizon", obs[1].Visible, obs[1].ElevationDeg)
	}
}

func TestPDOPLondon(t *testing.T) {
	london := geodesy.Geodetic{LatDeg: 51.5074, LonDeg: -0.1278, AltM: 100}
	seq, err := Observations(london, syntheticSet(), testTime, DefaultElevationMaskDeg)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	obs := slices.Collect(seq)

	visible := len(Visible(obs))
	if visible < 4 {
		t.Fatalf("only %d visible satellites, scenario needs at least 4", visible)
	}

	pdop, err := PDOP(obs, geodesy.ToECEF(london), 4)
	if err != nil {
		t.Fatalf("PDOP: %v", err)
	}
	if pdop <= 1.0 || pdop > 20 {
		t.Errorf("PDOP = %.3f, want a finite value in (1, 20]", pdop)
	}
}

func TestPDOPTooFewSatellites(t *testing.T) {
	london := geodesy.Geodetic{LatDeg: 51.5074, LonDeg: -0.1278, AltM: 100}
	set := ephemeris.NewSet([]*ephemeris.Entry{
		syntheticEntry(1, 0, 0),
		syntheticEntry(2, 0, 30),
	}, "sparse")

	seq, err := Observations(london, set, testTime, DefaultElevationMaskDeg)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}

	_, err = PDOP(slices.Collect(seq), geodesy.ToECEF(london), 4)
	if !errors.Is(err, ErrInsufficientGeometry) {
		t.Errorf("err = %v, want ErrInsufficientGeometry", err)
	}
}

func TestPDOPDegenerateGeometry(t *testing.T) {
	// Four satellites stacked at the same point: the design matrix is rank
	// deficient and must be rejected, not inverted into garbage.
	observer := geodesy.ECEF{X: 6378137, Y: 0, Z: 0}
	obs := make([]Observation, 4)
	for i := range obs {
		obs[i] = Observation{
			PRN:      i + 1,
			Position: geodesy.ECEF{X: 26560000, Y: 0, Z: 0},
			Visible:  true,
		}
	}

	if _, err := PDOP(obs, observer, 4); !errors.Is(err, ErrInsufficientGeometry) {
		t.Errorf("err = %v, want ErrInsufficientGeometry", err)
	}
}

func TestQualityTiers(t *testing.T) {
	tests := []struct {
		visible int
		pdop    float64
		valid   bool
		want    string
	}{
		{10, 1.5, true, "excellent"},
		{7, 2.5, true, "good"},
		{5, 4.0, true, "adequate"},
		{3, 0, false, "poor"},
		{8, 7.0, true, "poor"},
	}
	for _, tt := range tests {
		if got := Quality(tt.visible, tt.pdop, tt.valid); got != tt.want {
			t.Errorf("Quality(%d, %.1f, %v) = %q, want %q", tt.visible, tt.pdop, tt.valid, got, tt.want)
		}
	}
}

func TestCompute(t *testing.T) {
	london := geodesy.Geodetic{LatDeg: 51.5074, LonDeg: -0.1278, AltM: 100}

	state, err := Compute(london, syntheticSet(), testTime, DefaultElevationMaskDeg, 4)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if state.VisibleCount < 4 {
		t.Errorf("VisibleCount = %d, want >= 4", state.VisibleCount)
	}
	if !state.PDOPValid || state.PDOP <= 1 {
		t.Errorf("PDOP = %.3f (valid=%v), want finite > 1", state.PDOP, state.PDOPValid)
	}
	if state.Quality == "poor" {
		t.Errorf("Quality = %q for %d visible satellites, PDOP %.2f", state.Quality, state.VisibleCount, state.PDOP)
	}
	if len(state.Observations) != 24 {
		t.Errorf("got %d observations, want 24", len(state.Observations))
	}
}
