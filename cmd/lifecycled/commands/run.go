package commands

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kbukum/lifecycle/bootstrap"
	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/config"
	"github.com/kbukum/lifecycle/heartbeat"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/observability"
	"github.com/kbukum/lifecycle/plugin"
	"github.com/kbukum/lifecycle/resilience"
	"github.com/kbukum/lifecycle/rpc"
	"github.com/kbukum/lifecycle/scheduler"
	"github.com/kbukum/lifecycle/server"
	"github.com/kbukum/lifecycle/server/endpoint"
	"github.com/kbukum/lifecycle/watcher"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the lifecycle daemon until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaderOpts := opts.loaderOptions()
			cfg, file, err := loadConfig(loaderOpts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, file, loaderOpts)
		},
	}
}

// run exports telemetry when enabled, then runs the daemon to completion.
func run(ctx context.Context, cfg *DaemonConfig, configFile string, loaderOpts []config.LoaderOption) error {
	if cfg.Telemetry.Enabled {
		shutdown, err := initTelemetry(ctx, cfg)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	d, err := newDaemon(cfg, configFile, loaderOpts)
	if err != nil {
		return err
	}
	return d.app.Run(ctx)
}

func initTelemetry(ctx context.Context, cfg *DaemonConfig) (func(), error) {
	tc := observability.TracerConfig{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	tp, err := observability.InitTracer(ctx, &tc)
	if err != nil {
		return nil, err
	}
	mc := observability.MeterConfig{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Interval:       cfg.Telemetry.Interval,
	}
	mp, err := observability.InitMeter(ctx, &mc)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stderrors.Join(mp.Shutdown(flushCtx), tp.Shutdown(flushCtx)); err != nil {
			logger.Warn("Telemetry shutdown failed", logger.ErrorFields("telemetry_shutdown", err))
		}
	}, nil
}

// daemon is the assembled lifecycled process.
type daemon struct {
	app        *bootstrap.App[*DaemonConfig]
	rpc        *rpc.Server
	admin      *server.Server
	watcher    *watcher.Watcher
	loaderOpts []config.LoaderOption
}

// newDaemon builds the app and registers the daemon's components:
// the RPC server, the admin server, the config watcher and the heartbeats.
func newDaemon(cfg *DaemonConfig, configFile string, loaderOpts []config.LoaderOption, opts ...bootstrap.Option) (*daemon, error) {
	appOpts := []bootstrap.Option{
		bootstrap.WithScheduler(scheduler.Kind(cfg.Lifecycle.Scheduler)),
		bootstrap.WithGracefulTimeout(cfg.Lifecycle.GracefulTimeout),
		bootstrap.WithEventStream(cfg.Lifecycle.EventsPath),
	}
	if cfg.Lifecycle.UpdateSpec != "" {
		appOpts = append(appOpts, bootstrap.WithUpdateDriver(cfg.Lifecycle.UpdateSpec))
	}
	if cfg.Lifecycle.UniqueNames {
		appOpts = append(appOpts, bootstrap.WithRegistryOptions(component.WithUniqueNames()))
	}
	app, err := bootstrap.NewApp(cfg, append(appOpts, opts...)...)
	if err != nil {
		return nil, err
	}
	d := &daemon{app: app, loaderOpts: loaderOpts}

	d.rpc = rpc.NewServer(rpc.WithLogger(app.Logger), rpc.WithMetrics(app.Telemetry))
	if err := app.RegisterComponent(rpc.ComponentName, d.rpc); err != nil {
		return nil, err
	}

	if cfg.Admin.Enabled {
		d.admin = server.New(cfg.Admin, app.Logger)
		mountOpts := endpoint.Options{
			Service: app.Name,
			Version: app.Version,
			Metrics: app.Metrics.Handler(),
			Events:  d.eventsHandler(),
		}
		// Stopping the admin server from one of its own requests would wait
		// out the request it is serving.
		mountOpts.Protected = []string{server.ComponentName}
		deps := []string{rpc.ComponentName}
		if app.Events != nil {
			mountOpts.EventsPath = app.Events.Path()
			deps = append(deps, bootstrap.EventsComponentName)
		}
		endpoint.Mount(d.admin.Engine(), app.Components, mountOpts)
		d.rpc.Mount(d.admin.Engine())
		err := app.RegisterComponent(server.ComponentName, d.admin, component.DependsOn(deps...))
		if err != nil {
			return nil, err
		}
		for _, r := range d.admin.Routes() {
			app.Summary.TrackRoute(r.Method, r.Path, r.Handler)
		}
	}

	if cfg.Lifecycle.WatchConfig && configFile != "" {
		d.watcher, err = watcher.New(configFile, d.reload,
			watcher.WithDebounce(cfg.Lifecycle.Debounce),
			watcher.WithLogger(app.Logger),
		)
		if err != nil {
			return nil, err
		}
		if err := app.RegisterComponent(watcher.ComponentName, d.watcher); err != nil {
			return nil, err
		}
	}

	for _, hb := range cfg.Components {
		if _, err := heartbeat.Register(app.Components, hb, app.Logger); err != nil {
			return nil, err
		}
	}
	if _, err := plugin.NewCore(app.Components, heartbeat.NewAPI(app.Components), heartbeat.PluginName); err != nil {
		return nil, err
	}

	// Everything starts; configured pauses apply once it has.
	app.OnStart(func(ctx context.Context) error {
		return heartbeat.Reconcile(ctx, app.Components, app.Cfg.Components, app.Logger)
	})
	return d, nil
}

func (d *daemon) eventsHandler() gin.HandlerFunc {
	if d.app.Events == nil {
		return nil
	}
	return d.app.Events.Handler()
}

// reload re-reads the config file and reconciles the heartbeats with it. A
// read that fails is retried, since editors may still be writing; a config
// that fails validation is rejected whole.
func (d *daemon) reload(ctx context.Context) error {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		d.app.Logger.Debug("Retrying config read", map[string]interface{}{
			"attempt": attempt,
			"backoff": backoff.String(),
			"error":   err.Error(),
		})
	}
	next, err := resilience.Retry(ctx, retry, func() (*DaemonConfig, error) {
		var cfg DaemonConfig
		if err := config.LoadConfig(serviceName, &cfg, d.loaderOpts...); err != nil {
			return nil, err
		}
		cfg.ApplyDefaults()
		return &cfg, cfg.Validate()
	})
	if err != nil {
		return err
	}
	d.app.Logger.Info("Configuration reloaded", map[string]interface{}{
		"components": len(next.Components),
	})
	return heartbeat.Reconcile(ctx, d.app.Components, next.Components, d.app.Logger)
}
