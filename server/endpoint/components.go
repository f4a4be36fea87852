package endpoint

import (
	"context"
	"fmt"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/observability"
	"github.com/kbukum/lifecycle/server"
	"github.com/kbukum/lifecycle/validation"
)

// ListComponents returns every registered component.
func ListComponents(reg *component.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.RespondOK(c, reg.List())
	}
}

// GetComponent returns one component.
func GetComponent(reg *component.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := validation.New().ComponentName("name", name).Validate(); err != nil {
			server.RespondWithError(c, err)
			return
		}
		info, err := reg.Info(name)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		server.RespondOK(c, info)
	}
}

// ApplyOperation runs start, stop, pause or resume (the ":op" parameter) on
// one component and returns its state afterwards. Operations that do not
// apply to the current state succeed without changing it. Stopping or
// pausing a protected component fails with CONFLICT.
func ApplyOperation(reg *component.Registry, protected ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, op := c.Param("name"), c.Param("op")
		err := validation.New().
			ComponentName("name", name).
			OneOf("op", op, operationNames()...).
			Validate()
		if err == nil {
			err = guard(protected, name, component.Operation(op))
		}
		if err != nil {
			server.RespondWithError(c, err)
			return
		}

		ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanAdminRequest)
		defer span.End()
		observability.SetSpanAttribute(ctx, observability.AttrComponentName, name)
		observability.SetSpanAttribute(ctx, observability.AttrOperation, op)

		if err := applyOne(ctx, reg, name, component.Operation(op)); err != nil {
			observability.SetSpanError(ctx, err)
			server.RespondWithError(c, err)
			return
		}
		info, err := reg.Info(name)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		server.RespondOK(c, info)
	}
}

// DeregisterComponent stops and removes a component. Unknown names succeed;
// protected ones fail with CONFLICT.
func DeregisterComponent(reg *component.Registry, protected ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		err := validation.New().ComponentName("name", name).Validate()
		if err == nil && slices.Contains(protected, name) {
			err = errors.Conflict(fmt.Sprintf("component %q serves this API and cannot be deregistered through it", name))
		}
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		if err := reg.Deregister(c.Request.Context(), name); err != nil {
			server.RespondWithError(c, err)
			return
		}
		server.RespondNoContent(c)
	}
}

func applyOne(ctx context.Context, reg *component.Registry, name string, op component.Operation) error {
	switch op {
	case component.OpStart:
		return reg.StartComponent(ctx, name)
	case component.OpStop:
		return reg.StopComponent(ctx, name)
	case component.OpPause:
		return reg.PauseComponent(ctx, name)
	default:
		return reg.ResumeComponent(ctx, name)
	}
}

// guard rejects ops that would take a protected component out of service.
func guard(protected []string, name string, op component.Operation) error {
	if op != component.OpStop && op != component.OpPause {
		return nil
	}
	if !slices.Contains(protected, name) {
		return nil
	}
	return errors.Conflict(fmt.Sprintf("component %q serves this API and cannot %s through it", name, op))
}

func operationNames() []string {
	names := make([]string, len(component.Transitions))
	for i, op := range component.Transitions {
		names[i] = op.String()
	}
	return names
}
