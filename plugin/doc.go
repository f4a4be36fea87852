// Package plugin provides the core-side base for plugins: NewCore exposes a
// plugin's methods on the registry's RPC server under the plugin's
// lower-cased name.
//
//	core, err := plugin.NewCore(reg, rpc.ExportFuncs{"status": status}, "Heartbeat")
//	// callable as "heartbeat.status"
package plugin
