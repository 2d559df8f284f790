// Package metrics exposes Prometheus collectors for the canvas backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/adcanvas/internal/gemini"
	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/session"
)

// Collector holds all Prometheus metrics for the application. Each
// Collector owns its registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	Sessions           *prometheus.CounterVec
	SessionActive      prometheus.Gauge
	GraphEvents        *prometheus.CounterVec
	ModelSwitches      *prometheus.CounterVec
}

// NewCollector creates and registers every metric under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Finished creative generations by outcome",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Creative generation latency in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_sessions_total",
			Help:      "Finished analysis sessions by outcome",
		}, []string{"outcome"}),
		SessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_session_active",
			Help:      "1 while an analysis session holds the slot",
		}),
		GraphEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_events_total",
			Help:      "Applied canvas mutations by kind",
		}, []string{"kind"}),
		ModelSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_switches_total",
			Help:      "Model selections by model name",
		}, []string{"model"}),
	}

	c.registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.Generations, c.GenerationDuration,
		c.Sessions, c.SessionActive,
		c.GraphEvents, c.ModelSwitches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveGeneration records one finished generation.
func (c *Collector) ObserveGeneration(outcome string, elapsed time.Duration) {
	c.Generations.WithLabelValues(outcome).Inc()
	c.GenerationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SessionChanged tracks the active gauge and counts finished sessions.
func (c *Collector) SessionChanged(st session.Status) {
	if st.Active() {
		c.SessionActive.Set(1)
		return
	}
	c.SessionActive.Set(0)
	switch {
	case st.State == session.StateFailed:
		c.Sessions.WithLabelValues("failed").Inc()
	case st.ProductID != "":
		c.Sessions.WithLabelValues("committed").Inc()
	}
}

// GraphChanged counts one store mutation.
func (c *Collector) GraphChanged(ev graph.Event) {
	c.GraphEvents.WithLabelValues(string(ev.Kind)).Inc()
}

// ModelChanged counts a model selection.
func (c *Collector) ModelChanged(m gemini.Model) {
	c.ModelSwitches.WithLabelValues(m.Name).Inc()
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
