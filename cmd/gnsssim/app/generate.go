package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/radiolab/gnss-simulator/internal/ephemeris"
	"github.com/radiolab/gnss-simulator/internal/geodesy"
	"github.com/radiolab/gnss-simulator/internal/location"
	"github.com/radiolab/gnss-simulator/internal/transmit"
)

// RunGenerate synthesizes a baseband sample file without transmitting it,
// for use with an offline replay setup.
func RunGenerate(ctx context.Context, config *Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)

	var (
		lat      = fs.Float64("lat", 0, "Latitude in decimal degrees")
		lon      = fs.Float64("lon", 0, "Longitude in decimal degrees")
		alt      = fs.Float64("alt", location.DefaultAltitudeM, "Altitude in meters")
		duration = fs.Int("duration", 300, "Scenario duration in seconds")
		output   = fs.String("o", "gnsssim.bin", "Output sample file")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	loc := geodesy.Geodetic{LatDeg: *lat, LonDeg: *lon, AltM: *alt}
	if err := geodesy.Validate(loc); err != nil {
		return err
	}

	navFile := config.GNSS.EphemerisFile
	if navFile == "" {
		var err error
		if navFile, err = ephemeris.LatestFile(config.GNSS.DataDirectory); err != nil {
			if errors.Is(err, ephemeris.ErrDataUnavailable) {
				return fmt.Errorf("no ephemeris data in %s: %w", config.GNSS.DataDirectory, err)
			}
			return err
		}
	}

	gen := transmit.GeneratorConfig{
		EphemerisFile: navFile,
		Location:      loc,
		DurationSec:   *duration,
		OutputFile:    *output,
	}
	genArgs, err := gen.Args()
	if err != nil {
		return err
	}

	timeout := transmit.DefaultGenerationTimeout
	if config.Radio.GenerationTimeoutSec > 0 {
		timeout = time.Duration(config.Radio.GenerationTimeoutSec) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	generatorPath := config.Radio.GeneratorPath
	if generatorPath == "" {
		generatorPath = "gps-sdr-sim"
	}

	logger.Info("synthesizing baseband samples",
		slog.String("ephemeris", navFile),
		slog.Float64("latitude", *lat),
		slog.Float64("longitude", *lon),
		slog.Int("duration", *duration))

	status, err := transmit.ExecRunner{}.Run(ctx, generatorPath, genArgs...)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}
	if status.Code != 0 {
		return fmt.Errorf("%s exited with code %d: %s", generatorPath, status.Code, status.Stderr)
	}

	if fi, err := os.Stat(*output); err == nil {
		logger.Info("sample file written",
			slog.String("file", *output),
			slog.String("size", humanize.Bytes(uint64(fi.Size()))))
	}

	return nil
}
