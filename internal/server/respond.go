package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/radiolab/gnss-simulator/internal/constellation"
	"github.com/radiolab/gnss-simulator/internal/ephemeris"
	"github.com/radiolab/gnss-simulator/internal/geodesy"
	"github.com/radiolab/gnss-simulator/internal/location"
	"github.com/radiolab/gnss-simulator/internal/transmit"
)

// errBadTimestamp flags a malformed time query parameter.
var errBadTimestamp = errors.New("invalid timestamp")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, geodesy.ErrInvalidCoordinate),
		errors.Is(err, transmit.ErrInvalidParameters),
		errors.Is(err, transmit.ErrNoLocation),
		errors.Is(err, location.ErrNotConfigured),
		errors.Is(err, errBadTimestamp):
		return http.StatusBadRequest
	case errors.Is(err, transmit.ErrAlreadyTransmitting):
		return http.StatusConflict
	case errors.Is(err, ephemeris.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, constellation.ErrInsufficientGeometry):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
