package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/starford/adcanvas/internal/gemini"
	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/session"
)

func TestObserveGeneration(t *testing.T) {
	c := NewCollector("adcanvas")
	c.ObserveGeneration("completed", 2*time.Second)
	c.ObserveGeneration("completed", 3*time.Second)
	c.ObserveGeneration("error", time.Second)

	if got := testutil.ToFloat64(c.Generations.WithLabelValues("completed")); got != 2 {
		t.Errorf("completed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Generations.WithLabelValues("error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
}

func TestSessionChanged(t *testing.T) {
	c := NewCollector("adcanvas")
	c.SessionChanged(session.Status{State: session.StateSubmitting})
	if got := testutil.ToFloat64(c.SessionActive); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
	c.SessionChanged(session.Status{State: session.StateIdle, ProductID: "product-1"})
	c.SessionChanged(session.Status{State: session.StateFailed})

	if got := testutil.ToFloat64(c.SessionActive); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.Sessions.WithLabelValues("committed")); got != 1 {
		t.Errorf("committed = %v", got)
	}
	if got := testutil.ToFloat64(c.Sessions.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed = %v", got)
	}
}

func TestGraphAndModelCounters(t *testing.T) {
	c := NewCollector("adcanvas")
	c.GraphChanged(graph.Event{Kind: graph.NodeAdded})
	c.GraphChanged(graph.Event{Kind: graph.NodeAdded})
	c.ModelChanged(gemini.Model{Name: "gemini-2.5-flash-image"})

	if got := testutil.ToFloat64(c.GraphEvents.WithLabelValues("node.added")); got != 2 {
		t.Errorf("node.added = %v", got)
	}
	if got := testutil.ToFloat64(c.ModelSwitches.WithLabelValues("gemini-2.5-flash-image")); got != 1 {
		t.Errorf("model switches = %v", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector("adcanvas")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/nodes/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", c.Handler())

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/nodes/"+id, nil))
	}
	if got := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/nodes/{id}", "404")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "adcanvas_http_requests_total") {
		t.Errorf("metrics output missing counter")
	}
}
