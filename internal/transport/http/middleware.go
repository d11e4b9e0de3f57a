package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// statusRecorder wraps http.ResponseWriter to capture the response status
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs one structured line per request
func LoggingMiddleware(log zerolog.Logger, verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(recorder, r)

			if !verbose && recorder.statusCode < 400 {
				return
			}

			event := log.Info()
			if recorder.statusCode >= 500 {
				event = log.Error()
			} else if recorder.statusCode >= 400 {
				event = log.Warn()
			}

			event.Str("method", r.Method).
				Str("uri", r.URL.RequestURI()).
				Int("status", recorder.statusCode).
				Dur("latency", time.Since(start)).
				Str("ip", r.RemoteAddr).
				Msg("request")
		})
	}
}

// MetricsMiddleware records request counts and latency per route. Routes are
// labelled coarsely so redirect short codes do not explode label cardinality.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(recorder, r)

			route := routeLabel(r.URL.Path)
			metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
			metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel collapses dynamic path segments into a fixed label set
func routeLabel(path string) string {
	switch {
	case path == "/api/links":
		return "/api/links"
	case path == "/api/limits":
		return "/api/limits"
	case path == "/healthz":
		return "/healthz"
	case path == "/metrics":
		return "/metrics"
	case len(path) > len("/api/links/") && path[:len("/api/links/")] == "/api/links/":
		if hasStatsSuffix(path) {
			return "/api/links/{code}/stats"
		}
		return "/api/links/{code}"
	default:
		return "/{code}"
	}
}

func hasStatsSuffix(path string) bool {
	const suffix = "/stats"
	return len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix
}
