package skyplot

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/radiolab/gnss-simulator/internal/constellation"
	"github.com/radiolab/gnss-simulator/internal/geodesy"
)

func testState() *constellation.State {
	return &constellation.State{
		Time:     time.Date(2025, 7, 27, 2, 0, 0, 0, time.UTC),
		Observer: geodesy.Geodetic{LatDeg: 51.5, LonDeg: -0.1, AltM: 100},
		Observations: []constellation.Observation{
			{PRN: 3, AzimuthDeg: 45, ElevationDeg: 72, Visible: true, Healthy: true},
			{PRN: 7, AzimuthDeg: 180, ElevationDeg: 30, Visible: true, Healthy: false},
			{PRN: 12, AzimuthDeg: 300, ElevationDeg: 2, Visible: false, Healthy: true},
			{PRN: 19, AzimuthDeg: 90, ElevationDeg: -15, Visible: false, Healthy: true},
		},
		VisibleCount: 2,
		PDOP:         2.4,
		PDOPValid:    true,
		Quality:      "adequate",
	}
}

func TestRenderWithoutFont(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, testState()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != DefaultSize || bounds.Dy() != DefaultSize {
		t.Errorf("image size = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), DefaultSize, DefaultSize)
	}
}

func TestRenderCustomSize(t *testing.T) {
	r, err := NewRenderer("", WithSize(256))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, testState()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Errorf("image size = %d, want 256", img.Bounds().Dx())
	}
}

func TestNewRendererMissingFont(t *testing.T) {
	if _, err := NewRenderer("/nonexistent/font.ttf"); err == nil {
		t.Error("NewRenderer() with a missing font file succeeded, want error")
	}
}

func TestProject(t *testing.T) {
	tests := []struct {
		name   string
		az, el float64
		wantX  int
		wantY  int
	}{
		{"zenith maps to centre", 0, 90, 300, 300},
		{"north horizon maps to top", 0, 0, 300, 100},
		{"east horizon maps to right", 90, 0, 500, 300},
		{"south horizon maps to bottom", 180, 0, 300, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := project(300, 300, 200, tt.az, tt.el)
			if abs(x-tt.wantX) > 1 || abs(y-tt.wantY) > 1 {
				t.Errorf("project(%v, %v) = (%d, %d), want (%d, %d)", tt.az, tt.el, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
