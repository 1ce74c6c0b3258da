package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/radiolab/gnss-simulator/internal/constellation"
	"github.com/radiolab/gnss-simulator/internal/device"
	"github.com/radiolab/gnss-simulator/internal/geodesy"
	"github.com/radiolab/gnss-simulator/internal/location"
	"github.com/radiolab/gnss-simulator/internal/metrics"
	"github.com/radiolab/gnss-simulator/internal/storage"
	"github.com/radiolab/gnss-simulator/internal/transmit"
)

type ephemerisStatus struct {
	Satellites int       `json:"satellites"`
	Healthy    int       `json:"healthy"`
	Source     string    `json:"source,omitempty"`
	LoadedAt   time.Time `json:"loaded_at"`
	Freshness  string    `json:"freshness"`
}

type statusResponse struct {
	Location     *geodesy.Geodetic  `json:"location,omitempty"`
	Transmission transmit.Session   `json:"transmission"`
	Ephemeris    *ephemerisStatus   `json:"ephemeris,omitempty"`
	Device       device.Info        `json:"device"`
	Visibility   *visibilitySummary `json:"visibility,omitempty"`
}

type visibilitySummary struct {
	VisibleCount int     `json:"visibleCount"`
	PDOP         float64 `json:"pdop,omitempty"`
	PDOPValid    bool    `json:"pdopValid"`
	Quality      string  `json:"quality"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Transmission: s.controller.Status(),
		Device:       s.probe.Check(r.Context()),
	}

	if loc, err := s.location.Get(); err == nil {
		resp.Location = &loc
	}

	if set, err := s.ephemeris.Current(); err == nil {
		healthy, total := set.HealthSummary()
		resp.Ephemeris = &ephemerisStatus{
			Satellites: total,
			Healthy:    healthy,
			Source:     set.Source(),
			LoadedAt:   set.LoadedAt(),
			Freshness:  set.Freshness(time.Now()),
		}
		metrics.ObserveEphemerisAge(time.Since(set.LoadedAt()))

		if resp.Location != nil {
			state, err := constellation.Compute(*resp.Location, set, time.Now(), s.maskDeg, s.minSats)
			if err == nil {
				resp.Visibility = &visibilitySummary{
					VisibleCount: state.VisibleCount,
					PDOP:         state.PDOP,
					PDOPValid:    state.PDOPValid,
					Quality:      state.Quality,
				}
				metrics.ObserveConstellation(state.VisibleCount, state.PDOP, state.PDOPValid)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLocation(w http.ResponseWriter, _ *http.Request) {
	loc, err := s.location.Get()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

type setLocationRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var req setLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %s", err)})
		return
	}

	loc := geodesy.Geodetic{
		LatDeg: req.Latitude,
		LonDeg: req.Longitude,
		AltM:   location.DefaultAltitudeM,
	}
	if req.Altitude != nil {
		loc.AltM = *req.Altitude
	}

	if err := s.location.Set(loc); err != nil {
		writeError(w, err)
		return
	}

	s.logger.Info("location updated",
		"latitude", loc.LatDeg,
		"longitude", loc.LonDeg,
		"altitude", loc.AltM)

	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var params transmit.Params
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %s", err)})
			return
		}
	}

	if _, err := s.controller.Start(r.Context(), params); err != nil {
		writeError(w, err)
		return
	}

	metrics.TransmissionStarted()
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	failed := s.controller.Status().Status == transmit.StatusFailed

	err := s.controller.Stop(r.Context())
	switch {
	case err == nil:
		if !failed {
			metrics.TransmissionEnded(false)
		}
	case errors.Is(err, transmit.ErrNotTransmitting):
		// Redundant stops are fine at this level.
	default:
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleConstellation(w http.ResponseWriter, r *http.Request) {
	state, err := s.constellationState(r)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.ObserveConstellation(state.VisibleCount, state.PDOP, state.PDOPValid)
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSatellite(w http.ResponseWriter, r *http.Request) {
	prn, err := strconv.Atoi(r.PathValue("prn"))
	if err != nil || prn < 1 || prn > 32 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "prn must be an integer between 1 and 32"})
		return
	}

	state, err := s.constellationState(r)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, obs := range state.Observations {
		if obs.PRN == prn {
			writeJSON(w, http.StatusOK, obs)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no ephemeris for PRN %d", prn)})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session journal is disabled"})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer between 1 and 500"})
			return
		}
		limit = n
	}

	records, err := s.journal.RecentSessions(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []storage.SessionRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSkyplot(w http.ResponseWriter, r *http.Request) {
	state, err := s.constellationState(r)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := s.skyplot.Render(w, state); err != nil {
		s.logger.Error("error rendering sky plot", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// constellationState computes the constellation for the current location,
// honouring an optional ?at=RFC3339 query parameter.
func (s *Server) constellationState(r *http.Request) (*constellation.State, error) {
	loc, err := s.location.Get()
	if err != nil {
		return nil, err
	}

	set, err := s.ephemeris.Current()
	if err != nil {
		return nil, err
	}

	at := time.Now()
	if v := r.URL.Query().Get("at"); v != "" {
		at, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("%w: at must be RFC 3339", errBadTimestamp)
		}
	}

	return constellation.Compute(loc, set, at, s.maskDeg, s.minSats)
}
