package geodesy

import (
	"errors"
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		g       Geodetic
		wantErr bool
	}{
		{"London", Geodetic{51.5074, -0.1278, 100}, false},
		{"north pole", Geodetic{90, 0, 0}, false},
		{"date line", Geodetic{0, 180, 0}, false},
		{"dead sea", Geodetic{31.5, 35.5, -430}, false},
		{"latitude too high", Geodetic{90.1, 0, 0}, true},
		{"latitude too low", Geodetic{-91, 0, 0}, true},
		{"longitude too high", Geodetic{0, 180.5, 0}, true},
		{"longitude too low", Geodetic{0, -181, 0}, true},
		{"altitude too low", Geodetic{0, 10, -1500}, true},
		{"altitude too high", Geodetic{0, 10, 200000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.g)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%+v) error = %v, wantErr %v", tt.g, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCoordinate) {
				t.Errorf("error %v is not ErrInvalidCoordinate", err)
			}
		})
	}
}

func TestToECEFKnownValues(t *testing.T) {
	// Greenwich observatory at sea level: X ~ a, Y ~ 0 on the equator only,
	// so use well-known reference points computed with an independent tool.
	tests := []struct {
		name    string
		g       Geodetic
		want    ECEF
		tolM    float64
	}{
		{
			name: "equator prime meridian",
			g:    Geodetic{0, 0, 0},
			want: ECEF{WGS84A, 0, 0},
			tolM: 1e-6,
		},
		{
			name: "north pole",
			g:    Geodetic{90, 0, 0},
			want: ECEF{0, 0, 6356752.3142},
			tolM: 1e-3,
		},
		{
			name: "London",
			g:    Geodetic{51.5074, -0.1278, 100},
			want: ECEF{3978056.52, -8873.19, 4968953.21},
			tolM: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToECEF(tt.g)
			if math.Abs(got.X-tt.want.X) > tt.tolM ||
				math.Abs(got.Y-tt.want.Y) > tt.tolM ||
				math.Abs(got.Z-tt.want.Z) > tt.tolM {
				t.Errorf("ToECEF(%+v) = %+v, want %+v", tt.g, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	// Grid over the valid range, plus a few awkward spots near the poles and
	// the antimeridian.
	var points []Geodetic
	for lat := -85.0; lat <= 85.0; lat += 17.0 {
		for lon := -175.0; lon <= 175.0; lon += 35.0 {
			for _, alt := range []float64{-400, 0, 100, 10000, 90000} {
				points = append(points, Geodetic{lat, lon, alt})
			}
		}
	}
	points = append(points,
		Geodetic{89.999, 45, 100},
		Geodetic{-89.999, -45, 100},
		Geodetic{0.001, 179.999, 0},
	)

	for _, p := range points {
		got := ToGeodetic(ToECEF(p))
		if math.Abs(got.LatDeg-p.LatDeg) > 1e-6 {
			t.Errorf("lat round trip %+v: got %.9f", p, got.LatDeg)
		}
		if math.Abs(got.LonDeg-p.LonDeg) > 1e-6 {
			t.Errorf("lon round trip %+v: got %.9f", p, got.LonDeg)
		}
		if math.Abs(got.AltM-p.AltM) > 0.01 {
			t.Errorf("alt round trip %+v: got %.4f", p, got.AltM)
		}
	}
}

func TestLookAngles(t *testing.T) {
	obs := Geodetic{0, 0, 0}
	obsECEF := ToECEF(obs)

	// A target straight above the observer on the equator/prime meridian is
	// along +X in ECEF.
	zenith := ECEF{obsECEF.X + 20200000, 0, 0}
	la := Look(obs, obsECEF, zenith)
	if math.Abs(la.ElevationDeg-90) > 1e-6 {
		t.Errorf("zenith elevation = %.6f, want 90", la.ElevationDeg)
	}

	// A target due north at the same radius sits on the horizon plane.
	north := ECEF{obsECEF.X, 0, 1000000}
	la = Look(obs, obsECEF, north)
	if math.Abs(la.AzimuthDeg) > 1e-6 {
		t.Errorf("north azimuth = %.6f, want 0", la.AzimuthDeg)
	}
	if math.Abs(la.ElevationDeg) > 1e-6 {
		t.Errorf("north elevation = %.6f, want 0", la.ElevationDeg)
	}

	// Due east.
	east := ECEF{obsECEF.X, 1000000, 0}
	la = Look(obs, obsECEF, east)
	if math.Abs(la.AzimuthDeg-90) > 1e-6 {
		t.Errorf("east azimuth = %.6f, want 90", la.AzimuthDeg)
	}
	if math.Abs(la.RangeM-1000000) > 1e-3 {
		t.Errorf("east range = %.3f, want 1000000", la.RangeM)
	}
}

func TestDistanceBearing(t *testing.T) {
	london := Geodetic{51.5074, -0.1278, 0}
	paris := Geodetic{48.8566, 2.3522, 0}

	d, b := DistanceBearing(london, paris)
	if d < 330000 || d > 360000 {
		t.Errorf("London-Paris distance = %.0f m, want ~344 km", d)
	}
	if b < 140 || b > 160 {
		t.Errorf("London-Paris bearing = %.1f deg, want ~148", b)
	}

	// Bearing due east along the equator.
	_, b = DistanceBearing(Geodetic{0, 0, 0}, Geodetic{0, 1, 0})
	if math.Abs(b-90) > 1e-6 {
		t.Errorf("equator eastward bearing = %.6f, want 90", b)
	}
}
