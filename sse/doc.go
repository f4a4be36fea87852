// Package sse streams component lifecycle events to HTTP clients as
// Server-Sent Events.
//
// # Architecture
//
//   - Hub: routes encoded frames to connected clients by component glob
//   - EventStream: registry observer that broadcasts every event
//   - Component: runs the hub under the registry and serves the stream
//
// # Usage
//
//	events := sse.NewComponent("/events")
//	reg := component.NewRegistry(component.WithObserver(events.Observer()))
//	_ = reg.Register("events", events)
//	router.GET(events.Path(), events.Handler())
//
// Clients subscribe to a subset with ?component=db* and receive frames like:
//
//	event: transition
//	id: 7
//	data: {"kind":"transition","component":"db","from":"Stopped","to":"Started",...}
package sse
