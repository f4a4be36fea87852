package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/componenttest"
	"github.com/kbukum/lifecycle/config"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/observability"
	"github.com/kbukum/lifecycle/scheduler"
)

// testConfig is a minimal config for testing that satisfies the Config interface.
type testConfig struct {
	config.ServiceConfig
}

func newTestConfig(name, version string) *testConfig {
	return &testConfig{
		ServiceConfig: config.ServiceConfig{
			Name:        name,
			Version:     version,
			Environment: "development",
		},
	}
}

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	prev := component.SetDefault(nil)
	t.Cleanup(func() { component.SetDefault(prev) })

	base := []Option{WithLogger(logger.NewNop()), WithGracefulTimeout(2 * time.Second)}
	app, err := NewApp(newTestConfig("test-svc", "1.0.0"), append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	app.Summary.SetOutput(&bytes.Buffer{})
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "test-svc" || app.Version != "1.0.0" {
		t.Errorf("unexpected name/version %q %q", app.Name, app.Version)
	}
	if app.Cfg.Name != "test-svc" {
		t.Errorf("expected typed config, got %q", app.Cfg.Name)
	}
	if app.Components == nil || app.Logger == nil || app.Summary == nil {
		t.Fatal("expected registry, logger and summary")
	}
	if app.Metrics == nil || app.Telemetry == nil {
		t.Error("expected metrics and telemetry")
	}
	if app.Events != nil || app.Driver() != nil {
		t.Error("expected no event stream or driver by default")
	}
	if component.Default() != app.Components {
		t.Error("expected the app registry to be installed as default")
	}
	if _, ok := app.Scheduler().(*scheduler.Ticker); !ok {
		t.Errorf("expected ticker scheduler by default, got %T", app.Scheduler())
	}
}

func TestNewAppInitsLoggerFromConfig(t *testing.T) {
	prev := component.SetDefault(nil)
	t.Cleanup(func() { component.SetDefault(prev) })
	app, err := NewApp(newTestConfig("test-svc", "1.0.0"))
	if err != nil {
		t.Fatal(err)
	}
	if app.Logger != logger.GetGlobalLogger() {
		t.Error("expected the global logger initialized from config")
	}
}

func TestNewAppErrors(t *testing.T) {
	prev := component.SetDefault(nil)
	t.Cleanup(func() { component.SetDefault(prev) })

	if _, err := NewApp(newTestConfig("", "1.0.0"), WithLogger(logger.NewNop())); err == nil {
		t.Error("expected invalid config to be rejected")
	}

	tests := []struct {
		name string
		opt  Option
	}{
		{"unknown scheduler", WithScheduler("sundial")},
		{"bad driver spec", WithUpdateDriver("every tuesday")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewApp(newTestConfig("svc", "1.0.0"), WithLogger(logger.NewNop()), tc.opt)
			if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestNewAppOptions(t *testing.T) {
	app := newTestApp(t,
		WithScheduler(scheduler.KindCron),
		WithEventStream("/events"),
		WithUpdateDriver("@every 5s"),
		WithRegistryOptions(component.WithUniqueNames()),
	)
	if _, ok := app.Scheduler().(*scheduler.Cron); !ok {
		t.Errorf("expected cron scheduler, got %T", app.Scheduler())
	}
	if app.Events == nil || app.Events.Path() != "/events" {
		t.Fatal("expected event stream on /events")
	}
	if c, err := app.Components.Get(EventsComponentName); err != nil || c != app.Events {
		t.Errorf("expected event stream registered, got %v %v", c, err)
	}
	if app.Driver() == nil || app.Driver().Spec() != "@every 5s" {
		t.Error("expected update driver")
	}
	if err := app.RegisterComponent(EventsComponentName, componenttest.NewRecorder("x", componenttest.NewJournal())); !errors.HasCode(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("expected extra registry options to apply, got %v", err)
	}
}

func TestRunTaskLifecycle(t *testing.T) {
	app := newTestApp(t)
	j := componenttest.NewJournal()
	_ = app.RegisterComponent("db", componenttest.NewRecorder("db", j))
	_ = app.RegisterComponent("api", componenttest.NewRecorder("api", j), component.DependsOn("db"))

	hook := func(name string) Hook {
		return func(context.Context) error { j.Record(name); return nil }
	}
	app.OnStart(hook("onStart"))
	app.OnReady(hook("onReady"))
	app.OnStop(hook("onStop"))
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		j.Record("configure:" + a.Cfg.Name)
		return nil
	})

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		state, _ := app.Components.State("api")
		j.Record("task:" + state.String())
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	want := []string{
		"db.start", "api.start", "onStart", "configure:test-svc", "onReady", "task:Started",
		"onStop", "db.stop", "api.stop", "db.shutdown", "api.shutdown",
	}
	if got := j.Entries(); !slices.Equal(got, want) {
		t.Errorf("unexpected lifecycle\n got: %v\nwant: %v", got, want)
	}
}

func TestRunTaskReturnsTaskError(t *testing.T) {
	app := newTestApp(t)
	taskErr := fmt.Errorf("task failed")
	if err := app.RunTask(context.Background(), func(context.Context) error { return taskErr }); err != taskErr {
		t.Errorf("expected task error, got %v", err)
	}
}

func TestRunStartupFailureShutsDown(t *testing.T) {
	app := newTestApp(t)
	j := componenttest.NewJournal()
	_ = app.RegisterComponent("good", componenttest.NewRecorder("good", j))
	_ = app.RegisterComponent("bad", componenttest.NewRecorder("bad", j).Fail(componenttest.HookStart, fmt.Errorf("boom")))

	err := app.Run(context.Background())
	if !errors.HasCode(err, errors.ErrCodeHookFailed) {
		t.Fatalf("expected HOOK_FAILED, got %v", err)
	}
	if j.Count("good.stop") != 1 || j.Count("bad.shutdown") != 1 {
		t.Errorf("expected started components stopped and all shut down, got %v", j.Entries())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app := newTestApp(t)
	j := componenttest.NewJournal()
	_ = app.RegisterComponent("db", componenttest.NewRecorder("db", j))

	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error { cancel(); return nil })

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if j.Count("db.shutdown") != 1 {
		t.Errorf("expected shutdown, got %v", j.Entries())
	}
}

func TestRunReportsShutdownFailures(t *testing.T) {
	app := newTestApp(t)
	j := componenttest.NewJournal()
	_ = app.RegisterComponent("db", componenttest.NewRecorder("db", j).Fail(componenttest.HookShutdown, fmt.Errorf("leak")))

	err := app.RunTask(context.Background(), func(context.Context) error { return nil })
	if !errors.HasCode(err, errors.ErrCodeHookFailed) {
		t.Errorf("expected shutdown hook failure, got %v", err)
	}
}

func TestUpdateDriverRunsRegistryUpdate(t *testing.T) {
	app := newTestApp(t,
		WithUpdateDriver("@every 1s"),
		WithRegistryOptions(component.WithScheduler(componenttest.NewFakeScheduler())),
	)
	u := componenttest.NewUpdatingRecorder("u", componenttest.NewJournal())
	_ = app.RegisterComponent("u", u)

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		deadline := time.After(5 * time.Second)
		for u.Calls(componenttest.HookUpdate) == 0 {
			select {
			case <-deadline:
				return fmt.Errorf("driver never ran")
			case <-time.After(50 * time.Millisecond):
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	_ = app.RegisterComponent("db", componenttest.NewRecorder("db", componenttest.NewJournal()))

	if err := app.ReadyCheck(ctx); err == nil || !strings.Contains(err.Error(), "db=Stopped") {
		t.Errorf("expected stopped component to fail the check, got %v", err)
	}
	_ = app.Components.Start(ctx)
	if err := app.ReadyCheck(ctx); err != nil {
		t.Errorf("expected ready, got %v", err)
	}

	_ = app.RegisterComponent("sick", down{})
	_ = app.Components.Start(ctx, "sick")
	if err := app.ReadyCheck(ctx); err == nil || !strings.Contains(err.Error(), "sick=down") {
		t.Errorf("expected down component to fail the check, got %v", err)
	}
}

type down struct{ component.Base }

func (down) CheckHealth(context.Context) observability.Health {
	return observability.Health{Status: observability.HealthStatusDown, Message: "disk"}
}

func (down) Describe() component.Description {
	return component.Description{Type: "checker", Details: "always down"}
}

func TestTelemetryObserver(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	app := newTestApp(t, WithMeter(provider.Meter("test")))
	ctx := context.Background()
	_ = app.RegisterComponent("db", componenttest.NewRecorder("db", componenttest.NewJournal()))
	_ = app.Components.Start(ctx)
	_ = app.Components.Pause(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	var transitions int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "component.transitions" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				transitions += dp.Value
			}
		}
	}
	if transitions != 2 {
		t.Errorf("expected 2 transitions recorded, got %d", transitions)
	}
}

func TestPrometheusObservesRegistry(t *testing.T) {
	app := newTestApp(t)
	_ = app.RegisterComponent("db", componenttest.NewRecorder("db", componenttest.NewJournal()))
	_ = app.Components.Start(context.Background())

	families, err := app.Metrics.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() == "test_svc_component_state" {
			if v := f.GetMetric()[0].GetGauge().GetValue(); v != float64(component.Started) {
				t.Errorf("expected state gauge %v, got %v", float64(component.Started), v)
			}
			return
		}
	}
	t.Error("expected test_svc_component_state to be exported")
}

func TestMetricsNamespace(t *testing.T) {
	tests := map[string]string{
		"lifecycled": "lifecycled",
		"test-svc":   "test_svc",
		"a.b c":      "a_b_c",
		"9lives":     "lifecycle_9lives",
		"":           "lifecycle_",
	}
	for in, want := range tests {
		if got := metricsNamespace(in); got != want {
			t.Errorf("metricsNamespace(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisplaySummary(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	_ = app.RegisterComponent("db", componenttest.NewUpdatingRecorder("db", componenttest.NewJournal()), component.WithInterval(2*time.Second))
	_ = app.RegisterComponent("checker", down{}, component.DependsOn("db"))
	_ = app.Components.Start(ctx, "db")
	app.Summary.TrackRoute("GET", "/health", "Health")
	app.Summary.SetStartupDuration(1500 * time.Millisecond)

	var buf bytes.Buffer
	app.Summary.SetOutput(&buf)
	app.DisplaySummary()
	out := buf.String()

	for _, want := range []string{
		"test-svc v1.0.0 started in 1.50s",
		"db (Started) [every 2s]",
		"checker (Stopped) [checker, always down]",
		"🔗 db",
		"(1/2 started)",
		"Routes (1)",
		"/health → Health",
		"checker down: disk",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestDisplaySummaryEmpty(t *testing.T) {
	s := NewSummary("svc", "0.1.0")
	var buf bytes.Buffer
	s.SetOutput(&buf)
	s.DisplaySummary(nil)
	if !strings.Contains(buf.String(), "No components registered") {
		t.Errorf("unexpected summary %q", buf.String())
	}
}

func TestRunHooksStopsAtFirstError(t *testing.T) {
	var ran []int
	hooks := []Hook{
		func(context.Context) error { ran = append(ran, 0); return nil },
		func(context.Context) error { ran = append(ran, 1); return fmt.Errorf("nope") },
		func(context.Context) error { ran = append(ran, 2); return nil },
	}
	err := runHooks(context.Background(), hooks)
	if err == nil || !strings.Contains(err.Error(), "hook 1 failed") {
		t.Errorf("expected hook 1 failure, got %v", err)
	}
	if !slices.Equal(ran, []int{0, 1}) {
		t.Errorf("expected hooks after the failure to be skipped, got %v", ran)
	}
}
