package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/radiolab/gnss-simulator/internal/device"
	"github.com/radiolab/gnss-simulator/internal/ephemeris"
	"github.com/radiolab/gnss-simulator/internal/location"
	"github.com/radiolab/gnss-simulator/internal/server"
	"github.com/radiolab/gnss-simulator/internal/skyplot"
	"github.com/radiolab/gnss-simulator/internal/storage"
	"github.com/radiolab/gnss-simulator/internal/transmit"
)

const shutdownTimeout = 10 * time.Second

// Run starts the control service and blocks until ctx is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	loc := location.NewState()

	store := ephemeris.NewStore(logger)
	if err := loadEphemeris(ctx, config, store, logger); err != nil {
		return err
	}

	if config.GNSS.AutoFetch {
		fetcher, err := ephemeris.NewFetcher(config.GNSS.SourceURL, config.GNSS.DataDirectory, store, logger)
		if err != nil {
			return err
		}
		go fetcher.Run(ctx, time.Duration(config.GNSS.FetchIntervalMin)*time.Minute)
	}

	controllerOpts := []func(c *transmit.Controller){transmit.WithLogger(logger)}

	var journal *storage.SqliteStore
	if config.Storage.Database != "" {
		journal = storage.NewSqliteStore(config.Storage.Database)
		defer journal.Close()

		controllerOpts = append(controllerOpts, transmit.WithJournal(journal))
	}

	controller := transmit.New(config.ControllerConfig(), loc, store, controllerOpts...)

	probe := device.NewProbe(config.Radio.InfoPath, device.WithLogger(logger))

	var skyplotOpts []func(r *skyplot.Renderer)
	if config.Skyplot.Size > 0 {
		skyplotOpts = append(skyplotOpts, skyplot.WithSize(config.Skyplot.Size))
	}
	renderer, err := skyplot.NewRenderer(config.Skyplot.FontFile, skyplotOpts...)
	if err != nil {
		return fmt.Errorf("creating sky plot renderer: %w", err)
	}

	srv := server.New(config.Server.Listen, logger, config.Server.Auth, server.Deps{
		Location:          loc,
		Ephemeris:         store,
		Controller:        controller,
		Probe:             probe,
		Skyplot:           renderer,
		Journal:           journal,
		ElevationMaskDeg:  config.GNSS.ElevationMaskDeg,
		MinPDOPSatellites: config.GNSS.MinPDOPSatellites,
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("control service listening", slog.String("addr", config.Server.Listen))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
	}

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := controller.Stop(shutdownCtx); err != nil && !errors.Is(err, transmit.ErrNotTransmitting) {
		logger.Warn("error stopping transmission on shutdown", slog.Any("error", err))
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// loadEphemeris seeds the store from an explicit file, the newest file in
// the data directory, or a fresh download when auto-fetch is on. Starting
// without ephemeris is allowed; transmissions just cannot begin until
// data arrives.
func loadEphemeris(ctx context.Context, config *Config, store *ephemeris.Store, logger *slog.Logger) error {
	if config.GNSS.EphemerisFile != "" {
		if _, err := store.LoadFile(config.GNSS.EphemerisFile); err != nil {
			return fmt.Errorf("loading ephemeris: %w", err)
		}
		return nil
	}

	path, err := ephemeris.LatestFile(config.GNSS.DataDirectory)
	if err == nil {
		if _, err := store.LoadFile(path); err != nil {
			return fmt.Errorf("loading ephemeris: %w", err)
		}
		return nil
	}
	if !errors.Is(err, ephemeris.ErrDataUnavailable) {
		return fmt.Errorf("locating ephemeris: %w", err)
	}

	if !config.GNSS.AutoFetch {
		logger.Warn("no ephemeris data found, transmissions are unavailable until a file is loaded",
			slog.String("dataDirectory", config.GNSS.DataDirectory))
		return nil
	}

	fetcher, err := ephemeris.NewFetcher(config.GNSS.SourceURL, config.GNSS.DataDirectory, store, logger)
	if err != nil {
		return err
	}
	if _, err := fetcher.FetchDay(ctx, time.Now().UTC()); err != nil {
		logger.Warn("initial ephemeris download failed, will retry in the background",
			slog.Any("error", err))
	}

	return nil
}
