package sse

// Broadcaster delivers events to subscribed clients.
// This allows observers to depend on an abstraction rather than a concrete Hub.
type Broadcaster interface {
	// Broadcast sends data as an event of eventType to every client whose
	// filter matches component. It never blocks; false means the event was
	// dropped.
	Broadcast(component, eventType string, data []byte) bool
}
