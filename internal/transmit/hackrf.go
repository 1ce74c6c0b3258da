package transmit

import (
	"fmt"
	"strconv"
)

const (
	// GPS L1 C/A centre frequency.
	DefaultFrequencyHz = 1_575_420_000

	// gps-sdr-sim synthesizes at 2.6 MS/s by default.
	DefaultSampleRateHz = 2_600_000

	MinFrequencyHz  = 1_000_000
	MaxFrequencyHz  = 6_000_000_000
	MinSampleRateHz = 2_000_000
	MaxSampleRateHz = 20_000_000
	MaxTXGain       = 47
)

// TransferConfig configures a `hackrf_transfer` replay run.
type TransferConfig struct {
	SampleFile   string // -t I/Q sample file to transmit
	FrequencyHz  int64  // -f centre frequency in Hz
	SampleRateHz int    // -s sample rate in Hz
	TXGain       int    // -x TX VGA gain, 0-47 dB
	EnableAmp    bool   // -a RF amplifier on/off
	Repeat       bool   // -R loop the sample file until stopped
}

func (c *TransferConfig) Validate() error {
	if c.SampleFile == "" {
		return fmt.Errorf("%w: sample file not set", ErrInvalidParameters)
	}
	if c.FrequencyHz < MinFrequencyHz || c.FrequencyHz > MaxFrequencyHz {
		return fmt.Errorf("%w: frequency must be between %d and %d Hz: %d given",
			ErrInvalidParameters, MinFrequencyHz, MaxFrequencyHz, c.FrequencyHz)
	}
	if c.SampleRateHz < MinSampleRateHz || c.SampleRateHz > MaxSampleRateHz {
		return fmt.Errorf("%w: sample rate must be between %d and %d Hz: %d given",
			ErrInvalidParameters, MinSampleRateHz, MaxSampleRateHz, c.SampleRateHz)
	}
	if c.TXGain < 0 || c.TXGain > MaxTXGain {
		return fmt.Errorf("%w: TX gain must be between 0 and %d dB: %d given",
			ErrInvalidParameters, MaxTXGain, c.TXGain)
	}
	return nil
}

// Args builds the command line arguments for `hackrf_transfer`.
func (c *TransferConfig) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-t", c.SampleFile,
		"-f", strconv.FormatInt(c.FrequencyHz, 10),
		"-s", strconv.Itoa(c.SampleRateHz),
	}

	if c.EnableAmp {
		args = append(args, "-a", "1")
	} else {
		args = append(args, "-a", "0")
	}

	args = append(args, "-x", strconv.Itoa(c.TXGain))

	if c.Repeat {
		args = append(args, "-R")
	}

	return args, nil
}
