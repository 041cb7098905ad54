package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors of the API.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	tradesOpened prometheus.Counter
	tradesClosed prometheus.Counter
	screenshots  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the API collectors and the Go runtime collectors on
// reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "journal",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "journal",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tradesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "journal",
			Name:      "trades_opened_total",
			Help:      "Trades entered through the API.",
		}),
		tradesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "journal",
			Name:      "trades_closed_total",
			Help:      "Trades closed through the API.",
		}),
		screenshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "journal",
			Name:      "screenshots_total",
			Help:      "Screenshots stored by source.",
		}, []string{"source"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.requests, m.duration, m.tradesOpened, m.tradesClosed, m.screenshots,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records the count and latency of every request under its chi
// route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = routeLabel(p)
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel drops the trailing slash chi leaves on some subrouter patterns
// so "/api/trades/" and "/api/trades" share one series.
func routeLabel(pattern string) string {
	if len(pattern) > 1 {
		return strings.TrimSuffix(pattern, "/")
	}
	return pattern
}
