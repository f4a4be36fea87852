// Package component is the lifecycle orchestrator: a registry of named,
// stateful components that it starts, stops, pauses and resumes in
// dependency order, drives periodically, and shuts down with fault isolation.
//
// # States
//
// Every record moves through Stopped, Started and Paused:
//
//	Stopped --start--> Started --pause--> Paused
//	Started --stop---> Stopped <--stop--- Paused
//	Paused  --resume-> Started
//
// Any other operation is a silent no-op. A failing hook leaves the state
// unchanged and returns a HOOK_FAILED error.
//
// # Usage
//
//	reg := component.NewRegistry(component.WithScheduler(scheduler.NewTicker()))
//	reg.Register("db", db)
//	reg.Register("api", api, component.DependsOn("db"), component.WithInterval(5*time.Second))
//	if err := reg.Start(ctx); err != nil { ... }
//	defer reg.Shutdown(context.Background())
//
// Most programs use the process-wide registry through the package-level
// functions instead; bootstrap installs it with SetDefault.
//
// Components that implement Updater get a timer armed while Started. Timer
// failures are logged and reported to observers, never returned.
package component
