// Package server exposes the control service REST API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/radiolab/gnss-simulator/internal/constellation"
	"github.com/radiolab/gnss-simulator/internal/device"
	"github.com/radiolab/gnss-simulator/internal/ephemeris"
	"github.com/radiolab/gnss-simulator/internal/location"
	"github.com/radiolab/gnss-simulator/internal/metrics"
	"github.com/radiolab/gnss-simulator/internal/skyplot"
	"github.com/radiolab/gnss-simulator/internal/storage"
	"github.com/radiolab/gnss-simulator/internal/transmit"
)

// Deps are the collaborators the API surfaces. Journal may be nil when
// session persistence is disabled.
type Deps struct {
	Location   *location.State
	Ephemeris  *ephemeris.Store
	Controller *transmit.Controller
	Probe      *device.Probe
	Skyplot    *skyplot.Renderer
	Journal    *storage.SqliteStore

	ElevationMaskDeg  float64
	MinPDOPSatellites int
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	location   *location.State
	ephemeris  *ephemeris.Store
	controller *transmit.Controller
	probe      *device.Probe
	skyplot    *skyplot.Renderer
	journal    *storage.SqliteStore

	maskDeg float64
	minSats int
}

// New creates a configured HTTP server.
func New(addr string, logger *slog.Logger, authCfg AuthConfig, deps Deps) *Server {
	s := &Server{
		logger:     logger,
		location:   deps.Location,
		ephemeris:  deps.Ephemeris,
		controller: deps.Controller,
		probe:      deps.Probe,
		skyplot:    deps.Skyplot,
		journal:    deps.Journal,
		maskDeg:    deps.ElevationMaskDeg,
		minSats:    deps.MinPDOPSatellites,
	}

	if s.maskDeg == 0 {
		s.maskDeg = constellation.DefaultElevationMaskDeg
	}
	if s.minSats == 0 {
		s.minSats = constellation.DefaultMinPDOPSatellites
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/location", s.handleGetLocation)
	mux.HandleFunc("POST /api/v1/location", s.handleSetLocation)
	mux.HandleFunc("POST /api/v1/start", s.handleStart)
	mux.HandleFunc("POST /api/v1/stop", s.handleStop)
	mux.HandleFunc("GET /api/v1/constellation", s.handleConstellation)
	mux.HandleFunc("GET /api/v1/satellite/{prn}", s.handleSatellite)
	mux.HandleFunc("GET /api/v1/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/v1/skyplot", s.handleSkyplot)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = authMiddleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Handler returns the composed handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// probePath returns true for paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/metrics"
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
