package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatched = "unmatched"

// Rejection reasons for simcbot_command_rejections_total.
const (
	reasonValidation   = "validation"
	reasonPermission   = "permission"
	reasonNotFound     = "not_found"
	reasonOutOfRange   = "out_of_range"
	reasonTypeMismatch = "type_mismatch"
	reasonClosed       = "closed"
	reasonInternal     = "internal"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcbot_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simcbot_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	commandRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcbot_command_rejections_total",
			Help: "Chat commands refused before reaching the queue or registry, by reason.",
		},
		[]string{"reason"},
	)

	sseStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simcbot_sse_streams_active",
		Help: "Number of open job event streams.",
	})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, commandRejections, sseStreams)
	for _, r := range []string{
		reasonValidation, reasonPermission, reasonNotFound, reasonOutOfRange,
		reasonTypeMismatch, reasonClosed, reasonInternal,
	} {
		commandRejections.WithLabelValues(r)
	}
}

// metricsMiddleware records count and latency per chi route pattern. The
// metrics endpoint itself is not counted.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
