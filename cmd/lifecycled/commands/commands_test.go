package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/lifecycle/bootstrap"
	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/config"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/heartbeat"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/rpc"
	"github.com/kbukum/lifecycle/server"
	"github.com/kbukum/lifecycle/server/middleware"
	"github.com/kbukum/lifecycle/watcher"
)

const testConfigYAML = `
name: lifecycled-test
environment: staging
lifecycle:
  watch_config: true
  debounce: 20ms
components:
  - name: pulse
    interval: 1s
  - name: standby
    paused: true
    depends_on: [pulse]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func restoreDefault(t *testing.T) {
	t.Helper()
	prev := component.SetDefault(nil)
	t.Cleanup(func() { component.SetDefault(prev) })
}

func TestDaemonConfigDefaults(t *testing.T) {
	var cfg DaemonConfig
	cfg.Components = []heartbeat.Config{{Name: "pulse"}}
	cfg.ApplyDefaults()

	if cfg.Name != serviceName || cfg.Environment != "development" {
		t.Errorf("unexpected service defaults %q %q", cfg.Name, cfg.Environment)
	}
	if cfg.Lifecycle.Scheduler != "ticker" || cfg.Lifecycle.GracefulTimeout != 15*time.Second || cfg.Lifecycle.EventsPath != "/events" {
		t.Errorf("unexpected lifecycle defaults %+v", cfg.Lifecycle)
	}
	if cfg.Components[0].Interval != component.DefaultInterval {
		t.Errorf("expected heartbeat interval default, got %s", cfg.Components[0].Interval)
	}
	if cfg.Admin.Port != 8080 || cfg.Telemetry.SampleRate != 0 {
		t.Errorf("unexpected admin/telemetry defaults %+v %+v", cfg.Admin, cfg.Telemetry)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestDaemonConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DaemonConfig)
	}{
		{"bad scheduler", func(c *DaemonConfig) { c.Lifecycle.Scheduler = "sundial" }},
		{"relative events path", func(c *DaemonConfig) { c.Lifecycle.EventsPath = "events" }},
		{"bad sample rate", func(c *DaemonConfig) { c.Telemetry.SampleRate = 2 }},
		{"bad component name", func(c *DaemonConfig) { c.Components = []heartbeat.Config{{Name: "-x"}} }},
		{"bad dependency name", func(c *DaemonConfig) {
			c.Components = []heartbeat.Config{{Name: "x", DependsOn: []string{"bad name"}}}
		}},
		{"reserved name", func(c *DaemonConfig) { c.Components = []heartbeat.Config{{Name: rpc.ComponentName}} }},
		{"duplicate name", func(c *DaemonConfig) { c.Components = []heartbeat.Config{{Name: "x"}, {Name: "x"}} }},
		{"bad admin", func(c *DaemonConfig) { c.Admin.Enabled, c.Admin.AuthSecret = true, "short" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cfg DaemonConfig
			cfg.ApplyDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, testConfigYAML)
	t.Setenv("LIFECYCLED_LIFECYCLE_SCHEDULER", "cron")

	opts := (&rootOptions{configFile: path}).loaderOptions()
	cfg, file, err := loadConfig(opts)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if file != path {
		t.Errorf("expected resolved file %q, got %q", path, file)
	}
	if cfg.Name != "lifecycled-test" || cfg.Lifecycle.Debounce != 20*time.Millisecond {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Lifecycle.Scheduler != "cron" {
		t.Errorf("expected env override, got %q", cfg.Lifecycle.Scheduler)
	}
	if len(cfg.Components) != 2 || !cfg.Components[1].Paused || cfg.Components[1].DependsOn[0] != "pulse" {
		t.Errorf("unexpected components %+v", cfg.Components)
	}

	bad := writeConfig(t, "components:\n  - name: \"-x\"\n")
	if _, _, err := loadConfig([]config.LoaderOption{config.WithConfigFile(bad)}); err == nil {
		t.Error("expected invalid config to be rejected")
	}
}

func newTestDaemon(t *testing.T, body string, mutate func(*DaemonConfig)) (*daemon, string) {
	t.Helper()
	restoreDefault(t)
	path := writeConfig(t, body)
	opts := []config.LoaderOption{config.WithConfigFile(path)}
	cfg, file, err := loadConfig(opts)
	if err != nil {
		t.Fatal(err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	d, err := newDaemon(cfg, file, opts, bootstrap.WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	d.app.Summary.SetOutput(&bytes.Buffer{})
	return d, path
}

func TestNewDaemonRegistersComponents(t *testing.T) {
	d, _ := newTestDaemon(t, testConfigYAML, func(c *DaemonConfig) {
		c.Admin.Enabled = true
		c.Admin.Host = "127.0.0.1"
	})
	reg := d.app.Components

	want := []string{bootstrap.EventsComponentName, rpc.ComponentName, server.ComponentName, watcher.ComponentName, "pulse", "standby"}
	if got := reg.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("unexpected components %v", got)
	}
	if deps := reg.Dependencies(server.ComponentName); strings.Join(deps, ",") != "RPCServer,events" {
		t.Errorf("unexpected admin dependencies %v", deps)
	}
	if !strings.Contains(strings.Join(d.rpc.Methods(), ","), "heartbeat.status") {
		t.Errorf("expected heartbeat API exported, got %v", d.rpc.Methods())
	}

	var paths []string
	for _, r := range d.app.Summary.Routes() {
		paths = append(paths, r.Method+" "+r.Path)
	}
	joined := strings.Join(paths, ",")
	for _, route := range []string{"GET /components", "POST /rpc", "GET /events", "GET /metrics"} {
		if !strings.Contains(joined, route) {
			t.Errorf("expected route %s to be tracked, got %v", route, paths)
		}
	}
}

func TestDaemonRunAppliesPausedAndReloads(t *testing.T) {
	d, path := newTestDaemon(t, testConfigYAML, nil)
	reg := d.app.Components

	err := d.app.RunTask(context.Background(), func(ctx context.Context) error {
		if s, _ := reg.State("standby"); s != component.Paused {
			t.Errorf("expected standby paused after start, got %s", s)
		}
		if s, _ := reg.State("pulse"); s != component.Started {
			t.Errorf("expected pulse started, got %s", s)
		}

		res, err := d.rpc.Call(ctx, "heartbeat.status", json.RawMessage(`{"name":"pulse"}`))
		if err != nil || res.(heartbeat.Status).Starts != 1 {
			t.Errorf("unexpected heartbeat status %+v %v", res, err)
		}

		updated := strings.Replace(testConfigYAML, "paused: true", "paused: false", 1) +
			"  - name: extra\n    interval: 1s\n"
		if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
			return err
		}

		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			standby, _ := reg.State("standby")
			extra, err := reg.State("extra")
			if err == nil && standby == component.Started && extra == component.Started {
				return nil
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Errorf("expected reload to resume standby and add extra, got %v", reg.List())
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if d.watcher.Changes() == 0 {
		t.Error("expected the watcher to report a change")
	}
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	d, path := newTestDaemon(t, testConfigYAML, nil)
	if err := os.WriteFile(path, []byte("components:\n  - name: \"-x\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := d.reload(context.Background()); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--json"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	var info map[string]any
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("expected JSON, got %q", out.String())
	}
	if _, ok := info["version"]; !ok {
		t.Errorf("expected version field, got %v", info)
	}
	if _, ok := info["dependencies"]; ok {
		t.Error("expected dependencies only with --deps")
	}

	out.Reset()
	root = NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), serviceName+" ") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestTokenCommand(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	path := writeConfig(t, "admin:\n  auth_secret: "+secret+"\n")

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--config", path, "--subject", "ops", "--ttl", "1h"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	claims, err := middleware.HS256([]byte(secret))(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Subject != "ops" || claims.ExpiresAt == nil {
		t.Errorf("unexpected claims %+v", claims)
	}

	noSecret := writeConfig(t, "name: lifecycled\n")
	root = NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--config", noSecret})
	if err := root.Execute(); !errors.HasCode(err, errors.ErrCodeMissingField) {
		t.Errorf("expected MISSING_FIELD without a secret, got %v", err)
	}
}
