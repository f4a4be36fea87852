// Package bootstrap runs a component registry as a service.
//
// NewApp validates the typed config, initializes the logger and builds a
// registry wired to a scheduler and to the metrics and event observers. The
// registry is installed as component.Default.
//
//	app, err := bootstrap.NewApp(&cfg,
//	    bootstrap.WithScheduler(scheduler.KindCron),
//	    bootstrap.WithEventStream("/events"),
//	)
//	app.Components.Register("db", db)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run starts every component, runs the OnStart and OnReady hooks, then blocks
// until SIGINT, SIGTERM or ctx cancellation and shuts the registry down.
package bootstrap
