package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/componenttest"
)

func TestNewCollector_DefaultNamespace(t *testing.T) {
	c := NewCollector("")
	c.registered.Inc()
	if got := testutil.ToFloat64(c.registered); got != 1 {
		t.Errorf("expected registered gauge 1, got %v", got)
	}
	if n, err := testutil.GatherAndCount(c.Registry(), "lifecycle_components_registered"); err != nil || n != 1 {
		t.Errorf("expected default namespace metric, got %d %v", n, err)
	}
}

func TestCollectorObservesRegistry(t *testing.T) {
	c := NewCollector("test")
	h := componenttest.T(t, component.WithObserver(c))
	rec := h.UpdatingRecorder("db")
	h.Register("db", rec)
	h.Register("api", h.Recorder("api"))

	if got := testutil.ToFloat64(c.registered); got != 2 {
		t.Fatalf("expected 2 registered, got %v", got)
	}

	h.MustStart()
	if got := testutil.ToFloat64(c.state.WithLabelValues("db")); got != float64(component.Started) {
		t.Errorf("expected db started, got %v", got)
	}
	if err := h.Registry().Pause(h.Context(), "db"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got := testutil.ToFloat64(c.state.WithLabelValues("db")); got != float64(component.Paused) {
		t.Errorf("expected db paused, got %v", got)
	}
	if got := testutil.ToFloat64(c.transitions.WithLabelValues("db", "start", "Started")); got != 1 {
		t.Errorf("expected one start transition, got %v", got)
	}

	rec.Fail(componenttest.HookStart, fmt.Errorf("no"))
	_ = h.Registry().Resume(h.Context(), "db")
	if got := testutil.ToFloat64(c.hookFailures.WithLabelValues("db", "resume")); got != 1 {
		t.Errorf("expected one resume failure, got %v", got)
	}
	rec.Fail(componenttest.HookStart, nil)

	if err := h.Registry().Deregister(h.Context(), "api"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if got := testutil.ToFloat64(c.registered); got != 1 {
		t.Errorf("expected 1 registered after deregister, got %v", got)
	}
	if n := testutil.CollectAndCount(c.state); n != 1 {
		t.Errorf("expected only db state series, got %d", n)
	}
}

func TestCollectorReplacementCountsOnce(t *testing.T) {
	c := NewCollector("test")
	h := componenttest.T(t, component.WithObserver(c))
	h.Register("x", h.Recorder("x"))
	h.Register("x", h.Recorder("x"))
	if got := testutil.ToFloat64(c.registered); got != 1 {
		t.Errorf("expected replacement not to double count, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector("test")
	c.OnEvent(t.Context(), component.Event{Kind: component.EventRegistered, Component: "db"})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_component_state{component="db"} 0`) {
		t.Errorf("expected db state series in output")
	}
}
