package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bookfit/credits/internal/infrastructure/metrics"
)

// Metrics returns middleware that records request counts and latency on the
// shared collectors.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)

			m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type metricsRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// idPrefixes lists route prefixes whose next segment is an identifier.
var idPrefixes = []string{
	"/api/v1/transactions/",
	"/api/v1/users/",
	"/api/v1/businesses/",
	"/api/v1/bookings/",
	"/api/v1/admin/reconcile/",
}

// normalizePath collapses path identifiers to keep label cardinality low.
// /api/v1/bookings/01ABC123/cancel -> /api/v1/bookings/:id/cancel
func normalizePath(path string) string {
	for _, prefix := range idPrefixes {
		if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) {
			continue
		}

		rest := path[len(prefix):]
		suffix := ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			suffix = rest[i:]
		}

		return prefix + ":id" + suffix
	}

	return path
}
