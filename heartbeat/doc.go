// Package heartbeat provides a minimal update-capable component. Each
// heartbeat counts the ticks its timer delivers, which makes it useful for
// exercising the registry and as a liveness signal.
//
// Heartbeats are declared in configuration and kept in sync with it by
// Reconcile. Their counters are exported over RPC as "heartbeat.status".
package heartbeat
