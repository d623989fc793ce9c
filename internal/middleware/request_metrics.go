package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/wodcareer/internal/telemetry/metrics"

	"github.com/gorilla/mux"
)

func RequestMetrics(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			begin := time.Now()
			metricsManager.GaugeRequests.Inc()
			resp := newResponseWriter(respWriter)

			defer func() {
				metricsManager.GaugeRequests.Dec()
				status := strconv.Itoa(resp.statusCode)
				metricsManager.CounterRequests.WithLabelValues(req.Method, status).Inc()
				metricsManager.HistogramRequestDuration.
					WithLabelValues(routeTemplate(req), req.Method, status).
					Observe(time.Since(begin).Seconds())
			}()

			// handler call
			next.ServeHTTP(resp, req)
		})
	}
}

// routeTemplate keeps the label set bounded: ids in the path are replaced
// by the route pattern.
func routeTemplate(req *http.Request) string {
	if route := mux.CurrentRoute(req); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (r *responseWriter) WriteHeader(statusCode int) {
	if !r.wroteHeader {
		r.statusCode = statusCode
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(statusCode)
}
