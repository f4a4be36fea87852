package heartbeat

import (
	"context"
	stderrors "errors"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
)

// Reconcile brings reg in line with cfgs. Heartbeats missing from reg are
// registered and started; each configured heartbeat is then paused or
// resumed per its Paused flag. Heartbeats absent from cfgs are left alone.
// Every config is visited; failures are joined.
func Reconcile(ctx context.Context, reg *component.Registry, cfgs []Config, log *logger.Logger) error {
	if log == nil {
		log = logger.WithComponent("heartbeat")
	}
	var errs []error
	for _, cfg := range cfgs {
		if err := reconcileOne(ctx, reg, cfg, log); err != nil {
			log.Exception("Heartbeat reconcile failed", err, map[string]interface{}{
				logger.FieldComponent: cfg.Name,
			})
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func reconcileOne(ctx context.Context, reg *component.Registry, cfg Config, log *logger.Logger) error {
	_, err := component.Lookup[*Component](reg, cfg.Name)
	switch {
	case errors.HasCode(err, errors.ErrCodeNotFound):
		if _, err := Register(reg, cfg, log); err != nil {
			return err
		}
		log.Info("Heartbeat added", map[string]interface{}{logger.FieldComponent: cfg.Name})
		if err := reg.StartComponent(ctx, cfg.Name); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	state, err := reg.State(cfg.Name)
	if err != nil {
		return err
	}
	switch {
	case cfg.Paused && state == component.Started:
		return reg.PauseComponent(ctx, cfg.Name)
	case !cfg.Paused && state == component.Paused:
		return reg.ResumeComponent(ctx, cfg.Name)
	}
	return nil
}
