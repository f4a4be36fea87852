package component

import "context"

// Funcs builds a Component from plain functions. Nil functions are no-ops.
type Funcs struct {
	OnStart    func(ctx context.Context) error
	OnStop     func(ctx context.Context) error
	OnShutdown func(ctx context.Context) error
}

func (f Funcs) Start(ctx context.Context) error { return call(ctx, f.OnStart) }
func (f Funcs) Stop(ctx context.Context) error { return call(ctx, f.OnStop) }
func (f Funcs) Shutdown(ctx context.Context) error { return call(ctx, f.OnShutdown) }

// UpdateFuncs is Funcs with periodic work.
type UpdateFuncs struct {
	Funcs
	OnUpdate func(ctx context.Context) error
}

func (f UpdateFuncs) Update(ctx context.Context) error { return call(ctx, f.OnUpdate) }

func call(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
