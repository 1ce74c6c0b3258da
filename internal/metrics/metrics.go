// Package metrics exposes Prometheus instrumentation for the control
// service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnsssim_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gnsssim_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	transmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnsssim_transmissions_total",
			Help: "Total number of transmission sessions by outcome.",
		},
		[]string{"outcome"},
	)

	transmitting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gnsssim_transmitting",
			Help: "1 while a transmission session is active.",
		},
	)

	visibleSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gnsssim_visible_satellites",
			Help: "Satellites above the elevation mask at the current location.",
		},
	)

	pdop = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gnsssim_pdop",
			Help: "Position dilution of precision at the current location.",
		},
	)

	ephemerisAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gnsssim_ephemeris_age_seconds",
			Help: "Age of the loaded ephemeris set in seconds.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(transmissionsTotal)
	prometheus.MustRegister(transmitting)
	prometheus.MustRegister(visibleSatellites)
	prometheus.MustRegister(pdop)
	prometheus.MustRegister(ephemerisAge)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// TransmissionStarted counts a successful session start.
func TransmissionStarted() {
	transmissionsTotal.WithLabelValues("started").Inc()
	transmitting.Set(1)
}

// TransmissionEnded counts a session reaching a terminal state.
func TransmissionEnded(failed bool) {
	if failed {
		transmissionsTotal.WithLabelValues("failed").Inc()
	} else {
		transmissionsTotal.WithLabelValues("stopped").Inc()
	}
	transmitting.Set(0)
}

// ObserveConstellation records the latest visibility computation.
func ObserveConstellation(visible int, pdopValue float64, pdopValid bool) {
	visibleSatellites.Set(float64(visible))
	if pdopValid {
		pdop.Set(pdopValue)
	}
}

// ObserveEphemerisAge records how stale the loaded ephemeris set is.
func ObserveEphemerisAge(age time.Duration) {
	ephemerisAge.Set(age.Seconds())
}

var knownRoutes = map[string]struct{}{
	"/":                     {},
	"/healthz":              {},
	"/metrics":              {},
	"/api/v1/status":        {},
	"/api/v1/location":      {},
	"/api/v1/start":         {},
	"/api/v1/stop":          {},
	"/api/v1/constellation": {},
	"/api/v1/sessions":      {},
	"/api/v1/skyplot":       {},
}

// normalizeRoute collapses parameterized and unknown paths so bots and
// per-satellite queries cannot blow up the label cardinality.
func normalizeRoute(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	if strings.HasPrefix(path, "/api/v1/satellite/") {
		return "/api/v1/satellite/{prn}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
