package commands

import (
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/lifecycle/bootstrap"
	"github.com/kbukum/lifecycle/config"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/heartbeat"
	"github.com/kbukum/lifecycle/rpc"
	"github.com/kbukum/lifecycle/scheduler"
	"github.com/kbukum/lifecycle/server"
	"github.com/kbukum/lifecycle/validation"
	"github.com/kbukum/lifecycle/watcher"
)

// serviceName names the daemon in config lookup, logs and metrics.
const serviceName = "lifecycled"

// envPrefix scopes environment overrides, e.g. LIFECYCLED_ADMIN_PORT.
const envPrefix = "LIFECYCLED"

// DaemonConfig is the lifecycled configuration file.
type DaemonConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Lifecycle            LifecycleConfig    `yaml:"lifecycle" mapstructure:"lifecycle"`
	Admin                server.Config      `yaml:"admin" mapstructure:"admin"`
	Telemetry            TelemetryConfig    `yaml:"telemetry" mapstructure:"telemetry"`
	Components           []heartbeat.Config `yaml:"components" mapstructure:"components" validate:"dive"`
}

// LifecycleConfig configures the registry and its drivers.
type LifecycleConfig struct {
	Scheduler       string        `yaml:"scheduler" mapstructure:"scheduler" validate:"oneof=ticker cron"`
	UpdateSpec      string        `yaml:"update_spec" mapstructure:"update_spec"` // cron spec; empty disables the driver
	UniqueNames     bool          `yaml:"unique_names" mapstructure:"unique_names"`
	GracefulTimeout time.Duration `yaml:"graceful_timeout" mapstructure:"graceful_timeout" validate:"gt=0"`
	EventsPath      string        `yaml:"events_path" mapstructure:"events_path" validate:"omitempty,startswith=/"`
	WatchConfig     bool          `yaml:"watch_config" mapstructure:"watch_config"`
	Debounce        time.Duration `yaml:"debounce" mapstructure:"debounce" validate:"gte=0"`
}

// TelemetryConfig enables OTLP export of lifecycle spans and metrics.
type TelemetryConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// reservedNames are taken by the daemon's own components.
var reservedNames = []string{
	rpc.ComponentName,
	server.ComponentName,
	bootstrap.EventsComponentName,
	watcher.ComponentName,
}

func (c *DaemonConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()

	if c.Lifecycle.Scheduler == "" {
		c.Lifecycle.Scheduler = string(scheduler.KindTicker)
	}
	if c.Lifecycle.GracefulTimeout == 0 {
		c.Lifecycle.GracefulTimeout = 15 * time.Second
	}
	if c.Lifecycle.EventsPath == "" {
		c.Lifecycle.EventsPath = "/events"
	}

	c.Admin.ApplyDefaults()

	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.Enabled && c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1.0
	}
	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = 15 * time.Second
	}

	for i := range c.Components {
		c.Components[i].ApplyDefaults()
	}
}

func (c *DaemonConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.Admin.Enabled {
		if err := c.Admin.Validate(); err != nil {
			return errors.InvalidInput("admin", err.Error()).WithCause(err)
		}
	}

	seen := make(map[string]bool, len(c.Components))
	for i, hb := range c.Components {
		field := fmt.Sprintf("components[%d].name", i)
		if slices.Contains(reservedNames, hb.Name) {
			return errors.InvalidInput(field, fmt.Sprintf("%q is reserved", hb.Name))
		}
		if seen[hb.Name] {
			return errors.InvalidInput(field, fmt.Sprintf("duplicate component %q", hb.Name))
		}
		seen[hb.Name] = true
	}
	return nil
}

// loaderOptions returns the config loader options for the root flags.
func (o *rootOptions) loaderOptions() []config.LoaderOption {
	opts := []config.LoaderOption{config.WithEnvPrefix(envPrefix)}
	if o.configFile != "" {
		opts = append(opts, config.WithConfigFile(o.configFile))
	}
	if o.envFile != "" {
		opts = append(opts, config.WithEnvFile(o.envFile))
	}
	return opts
}

// loadConfig reads, defaults and validates the daemon config. It also
// returns the config file it read, if any.
func loadConfig(opts []config.LoaderOption) (*DaemonConfig, string, error) {
	var cfg DaemonConfig
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, "", err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid %s config: %w", serviceName, err)
	}
	return &cfg, config.Resolve(serviceName, opts...).ConfigFile, nil
}
