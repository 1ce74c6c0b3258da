package transmit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/radiolab/gnss-simulator/internal/geodesy"
)

const (
	MinDurationSec = 1
	MaxDurationSec = 3600

	// gps-sdr-sim emits signed 8-bit I/Q, which is what hackrf_transfer expects.
	sampleBits = 8
)

// GeneratorConfig configures a `gps-sdr-sim` baseband synthesis run.
type GeneratorConfig struct {
	EphemerisFile string           // -e RINEX navigation file
	Location      geodesy.Geodetic // -l lat,lon,alt static receiver position
	DurationSec   int              // -d duration in seconds
	OutputFile    string           // -o I/Q sample output file
	StartTime     time.Time        // -t scenario start, UTC; zero value omits the flag
}

func (c *GeneratorConfig) Validate() error {
	if c.EphemerisFile == "" {
		return fmt.Errorf("%w: ephemeris file not set", ErrInvalidParameters)
	}
	if c.OutputFile == "" {
		return fmt.Errorf("%w: output file not set", ErrInvalidParameters)
	}
	if c.DurationSec < MinDurationSec || c.DurationSec > MaxDurationSec {
		return fmt.Errorf("%w: duration must be between %d and %d seconds: %d given",
			ErrInvalidParameters, MinDurationSec, MaxDurationSec, c.DurationSec)
	}
	if err := geodesy.Validate(c.Location); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameters, err)
	}
	return nil
}

// Args builds the command line arguments for `gps-sdr-sim`.
func (c *GeneratorConfig) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-e", c.EphemerisFile,
		"-l", fmt.Sprintf("%.6f,%.6f,%.1f", c.Location.LatDeg, c.Location.LonDeg, c.Location.AltM),
		"-d", strconv.Itoa(c.DurationSec),
		"-o", c.OutputFile,
	}

	if !c.StartTime.IsZero() {
		args = append(args, "-t", c.StartTime.UTC().Format("2006/01/02,15:04:05"))
	}

	args = append(args, "-b", strconv.Itoa(sampleBits))

	return args, nil
}
