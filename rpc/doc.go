// Package rpc exposes methods of registered objects as "namespace.method"
// calls, in-process through Server.Call and over HTTP through Server.Mount.
//
// Server is itself a lifecycle component, conventionally registered as
// ComponentName, and refuses calls while it is not Started:
//
//	srv := rpc.NewServer(rpc.WithLogger(log))
//	_ = reg.Register(rpc.ComponentName, srv)
//	_ = srv.RegisterObject(rpc.ExportFuncs{
//		"status": func(ctx context.Context, _ json.RawMessage) (any, error) {
//			return "ok", nil
//		},
//	}, "heartbeat")
//
//	result, err := srv.Call(ctx, "heartbeat.status", nil)
package rpc
