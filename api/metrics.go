package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry so
// several servers (e.g. in tests) can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec
	LikesTotal          *prometheus.CounterVec
	ContentCreated      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HttpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "code"},
		),
		HttpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		LikesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "karma_likes_total",
				Help: "Like actions by target kind and outcome",
			},
			[]string{"target", "outcome"},
		),
		ContentCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "karma_content_created_total",
				Help: "Posts and comments created",
			},
			[]string{"kind"},
		),
	}
	m.Registry.MustRegister(
		m.HttpRequestsTotal,
		m.HttpRequestDuration,
		m.LikesTotal,
		m.ContentCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveLike counts a like outcome.
func (m *Metrics) ObserveLike(target string, granted bool) {
	outcome := "already_liked"
	if granted {
		outcome = "granted"
	}
	m.LikesTotal.WithLabelValues(target, outcome).Inc()
}

// Middleware records request count and latency per chi route pattern, so
// /api/posts/1 and /api/posts/2 share a series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.HttpRequestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		m.HttpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
