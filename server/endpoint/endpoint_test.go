package endpoint_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/componenttest"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/observability"
	"github.com/kbukum/lifecycle/server/endpoint"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	h      *componenttest.THelper
	engine *gin.Engine
}

func newFixture(t *testing.T, opts endpoint.Options) *fixture {
	t.Helper()
	h := componenttest.T(t)
	engine := gin.New()
	endpoint.Mount(engine, h.Registry(), opts)
	return &fixture{h: h, engine: engine}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.engine.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return out.Data
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var out errors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return out.Error.Code
}

func TestListAndGetComponents(t *testing.T) {
	f := newFixture(t, endpoint.Options{Service: "svc"})
	f.h.Register("db", f.h.UpdatingRecorder("db"))
	f.h.Register("api", f.h.Recorder("api"), component.DependsOn("db"))
	f.h.MustStart("db")

	rr := f.do(t, "GET", "/components", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	infos := decode[[]component.Info](t, rr)
	if len(infos) != 2 || infos[0].Name != "db" || infos[1].Name != "api" {
		t.Fatalf("unexpected list %+v", infos)
	}
	if infos[0].State != component.Started || !infos[0].Armed || !infos[0].Updatable {
		t.Errorf("unexpected db info %+v", infos[0])
	}
	if infos[1].Dependencies[0] != "db" {
		t.Errorf("expected api dependencies, got %v", infos[1].Dependencies)
	}

	rr = f.do(t, "GET", "/components/api", "")
	if info := decode[component.Info](t, rr); info.State != component.Stopped {
		t.Errorf("expected api Stopped, got %s", info.State)
	}

	rr = f.do(t, "GET", "/components/missing", "")
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != errors.ErrCodeNotFound {
		t.Errorf("expected 404 NOT_FOUND, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestApplyOperation(t *testing.T) {
	f := newFixture(t, endpoint.Options{})
	f.h.Register("db", f.h.UpdatingRecorder("db"))
	f.h.Register("api", f.h.Recorder("api"), component.DependsOn("db"))

	steps := []struct {
		path      string
		component string
		want      component.State
	}{
		{"/components/api/start", "db", component.Started},
		{"/components/db/pause", "db", component.Paused},
		{"/components/db/pause", "db", component.Paused},
		{"/components/db/resume", "db", component.Started},
		{"/components/db/stop", "db", component.Stopped},
	}
	for _, step := range steps {
		rr := f.do(t, "POST", step.path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d %s", step.path, rr.Code, rr.Body.String())
		}
		f.h.AssertState(step.component, step.want)
	}
	f.h.AssertState("api", component.Started)
}

func TestApplyOperationErrors(t *testing.T) {
	f := newFixture(t, endpoint.Options{})
	f.h.Register("bad", f.h.Recorder("bad").Fail(componenttest.HookStart, fmt.Errorf("boom")))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   errors.ErrorCode
	}{
		{"unknown op", "/components/bad/explode", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"update is bulk only", "/components/bad/update", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"unknown component", "/components/ghost/start", http.StatusNotFound, errors.ErrCodeNotFound},
		{"invalid name", "/components/-x/start", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"hook failure", "/components/bad/start", http.StatusInternalServerError, errors.ErrCodeHookFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, "POST", tc.path, "")
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tc.wantCode {
				t.Errorf("expected %s, got %s", tc.wantCode, code)
			}
		})
	}
	f.h.AssertState("bad", component.Stopped)
}

func TestDeregisterComponent(t *testing.T) {
	f := newFixture(t, endpoint.Options{})
	f.h.Register("db", f.h.Recorder("db"))
	f.h.MustStart()

	if rr := f.do(t, "DELETE", "/components/db", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if f.h.Journal().Count("db.stop") != 1 {
		t.Error("expected deregister to stop the component")
	}
	if f.h.Registry().Len() != 0 {
		t.Error("expected component removed")
	}
	if rr := f.do(t, "DELETE", "/components/db", ""); rr.Code != http.StatusNoContent {
		t.Errorf("expected deregistering an absent name to succeed, got %d", rr.Code)
	}
}

func TestBulk(t *testing.T) {
	f := newFixture(t, endpoint.Options{})
	a, b := f.h.UpdatingRecorder("a"), f.h.UpdatingRecorder("b")
	f.h.Register("a", a)
	f.h.Register("b", b)

	if rr := f.do(t, "POST", "/lifecycle/start", ""); rr.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rr.Code, rr.Body.String())
	}
	f.h.AssertState("a", component.Started)
	f.h.AssertState("b", component.Started)

	rr := f.do(t, "POST", "/lifecycle/pause", `{"names":["b"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("pause: %d %s", rr.Code, rr.Body.String())
	}
	infos := decode[[]component.Info](t, rr)
	if len(infos) != 2 || infos[1].State != component.Paused {
		t.Errorf("expected the list to reflect the pause, got %+v", infos)
	}

	if rr := f.do(t, "POST", "/lifecycle/update", ""); rr.Code != http.StatusOK {
		t.Fatalf("update: %d", rr.Code)
	}
	if a.Calls(componenttest.HookUpdate) != 1 || b.Calls(componenttest.HookUpdate) != 0 {
		t.Errorf("expected update to visit only Started components, got a=%d b=%d",
			a.Calls(componenttest.HookUpdate), b.Calls(componenttest.HookUpdate))
	}

	tests := []struct {
		name, path, body string
		wantStatus       int
	}{
		{"bad op", "/lifecycle/shutdown", "", http.StatusBadRequest},
		{"bad json", "/lifecycle/stop", `{"names":`, http.StatusBadRequest},
		{"bad name", "/lifecycle/stop", `{"names":["ok","-bad"]}`, http.StatusBadRequest},
		{"unknown name", "/lifecycle/stop", `{"names":["ghost"]}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rr := f.do(t, "POST", tc.path, tc.body); rr.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
	f.h.AssertState("a", component.Started)
}

type checked struct {
	component.Base
	status observability.HealthStatus
}

func (c checked) CheckHealth(context.Context) observability.Health {
	return observability.Health{Name: "ignored", Status: c.status, Message: "self-reported"}
}

func TestHealthAndProbes(t *testing.T) {
	f := newFixture(t, endpoint.Options{Service: "svc", Version: "1.2.3"})
	f.h.Register("self", checked{status: observability.HealthStatusDegraded})
	f.h.Register("plain", f.h.Recorder("plain"))

	rr := f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while stopped, got %d", rr.Code)
	}
	if rr := f.do(t, "GET", "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected not ready while stopped, got %d", rr.Code)
	}

	f.h.MustStart()
	rr = f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 once started, got %d %s", rr.Code, rr.Body.String())
	}
	var sh observability.ServiceHealth
	if err := json.Unmarshal(rr.Body.Bytes(), &sh); err != nil {
		t.Fatal(err)
	}
	if sh.Service != "svc" || sh.Version != "1.2.3" || sh.Status != observability.HealthStatusDegraded {
		t.Errorf("unexpected service health %+v", sh)
	}
	if sh.Components[0].Name != "self" || sh.Components[0].Message != "self-reported" {
		t.Errorf("expected checker result under the registered name, got %+v", sh.Components[0])
	}

	if rr := f.do(t, "GET", "/readyz", ""); rr.Code != http.StatusOK {
		t.Errorf("expected ready, got %d", rr.Code)
	}
	if rr := f.do(t, "GET", "/livez", ""); rr.Code != http.StatusOK {
		t.Errorf("expected alive, got %d", rr.Code)
	}
	if rr := f.do(t, "GET", "/version", ""); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"service":"svc"`) {
		t.Errorf("unexpected version response %d %s", rr.Code, rr.Body.String())
	}
}

func TestOptionalRoutes(t *testing.T) {
	bare := newFixture(t, endpoint.Options{})
	if rr := bare.do(t, "GET", "/metrics", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected no metrics route, got %d", rr.Code)
	}

	full := newFixture(t, endpoint.Options{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("metrics")) }),
		Events:  func(c *gin.Context) { c.String(http.StatusOK, "events") },
	})
	if rr := full.do(t, "GET", "/metrics", ""); rr.Body.String() != "metrics" {
		t.Errorf("expected metrics handler, got %q", rr.Body.String())
	}
	if rr := full.do(t, "GET", "/events", ""); rr.Body.String() != "events" {
		t.Errorf("expected events handler, got %q", rr.Body.String())
	}
}

func TestProtectedComponent(t *testing.T) {
	f := newFixture(t, endpoint.Options{Protected: []string{"admin"}})
	f.h.Register("admin", f.h.Recorder("admin"))
	f.h.Register("db", f.h.Recorder("db"))
	f.h.MustStart()

	tests := []struct {
		name, method, path, body string
	}{
		{"stop", "POST", "/components/admin/stop", ""},
		{"pause", "POST", "/components/admin/pause", ""},
		{"deregister", "DELETE", "/components/admin", ""},
		{"bulk stop naming it", "POST", "/lifecycle/stop", `{"names":["db","admin"]}`},
		{"bulk pause naming it", "POST", "/lifecycle/pause", `{"names":["admin"]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, tc.method, tc.path, tc.body)
			if rr.Code != http.StatusConflict {
				t.Fatalf("expected 409, got %d %s", rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != errors.ErrCodeConflict {
				t.Errorf("expected CONFLICT, got %s", code)
			}
		})
	}
	f.h.AssertState("admin", component.Started)
	f.h.AssertState("db", component.Started)
	if f.h.Journal().Count("admin.stop") != 0 {
		t.Errorf("expected no stop hook, got %v", f.h.Journal().Entries())
	}

	if rr := f.do(t, "POST", "/lifecycle/stop", ""); rr.Code != http.StatusOK {
		t.Fatalf("bulk stop: %d %s", rr.Code, rr.Body.String())
	}
	f.h.AssertState("db", component.Stopped)
	f.h.AssertState("admin", component.Started)

	if rr := f.do(t, "POST", "/components/admin/start", ""); rr.Code != http.StatusOK {
		t.Errorf("expected start of a protected component to pass, got %d", rr.Code)
	}
	if rr := f.do(t, "POST", "/lifecycle/update", ""); rr.Code != http.StatusOK {
		t.Errorf("expected update to pass, got %d", rr.Code)
	}
}

func TestProtectedOnlyBulkStopIsNoOp(t *testing.T) {
	f := newFixture(t, endpoint.Options{Protected: []string{"admin"}})
	f.h.Register("admin", f.h.Recorder("admin"))
	f.h.MustStart()

	rr := f.do(t, "POST", "/lifecycle/stop", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("bulk stop: %d %s", rr.Code, rr.Body.String())
	}
	if infos := decode[[]component.Info](t, rr); len(infos) != 1 || infos[0].State != component.Started {
		t.Errorf("expected admin left Started, got %+v", infos)
	}
}
