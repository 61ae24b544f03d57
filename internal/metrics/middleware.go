package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP metrics, labelled by chi route pattern.
var (
	// /query spans a model call, so the tail goes well past the usual 10s.
	HTTPRequestDuration = histogramVec("http_request_duration_seconds",
		"HTTP request duration in seconds",
		[]float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40}, "method", "route", "status")
	HTTPRequestsTotal = counterVec("http_requests_total",
		"Total number of HTTP requests", "method", "route", "status")
	HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Requests currently being served",
	})
	HTTPResponseBytes = histogramVec("http_response_size_bytes",
		"Response body size in bytes", prometheus.ExponentialBuckets(128, 4, 6), "route")
)

var httpGroup = newGroup(HTTPRequestDuration, HTTPRequestsTotal, HTTPRequestsInFlight, HTTPResponseBytes)

// RegisterHTTPMetrics registers HTTP metrics. Safe to call repeatedly.
func RegisterHTTPMetrics() { httpGroup.register() }

// Middleware records duration, count and response size per route.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			HTTPRequestsInFlight.Inc()
			defer HTTPRequestsInFlight.Dec()

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := routeLabel(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			code := strconv.Itoa(status)

			HTTPRequestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
			HTTPRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
			HTTPResponseBytes.WithLabelValues(route).Observe(float64(ww.BytesWritten()))
		})
	}
}

// routeLabel keeps label cardinality bounded: unmatched paths share one label.
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "unmatched"
}
