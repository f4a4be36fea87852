package endpoint

import (
	"context"
	"io"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/observability"
	"github.com/kbukum/lifecycle/server"
	"github.com/kbukum/lifecycle/validation"
)

// BulkRequest optionally narrows a bulk operation to some components.
type BulkRequest struct {
	Names []string `json:"names" validate:"omitempty,dive,component_name"`
}

// Bulk runs start, stop, pause, resume or update (the ":op" parameter) over
// the named components, or all of them, and returns every component
// afterwards. Update ignores names. Without names, stop and pause leave
// protected components alone; naming one fails with CONFLICT.
func Bulk(reg *component.Registry, protected ...string) gin.HandlerFunc {
	allowed := append(operationNames(), component.OpUpdate.String())
	return func(c *gin.Context) {
		op := c.Param("op")
		if err := validation.New().OneOf("op", op, allowed...).Validate(); err != nil {
			server.RespondWithError(c, err)
			return
		}
		var req BulkRequest
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
			return
		}
		if err := validation.Validate(req); err != nil {
			server.RespondWithError(c, err)
			return
		}
		names, apply, err := bulkNames(reg, protected, component.Operation(op), req.Names)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		if !apply {
			server.RespondOK(c, reg.List())
			return
		}

		ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanAdminRequest)
		defer span.End()
		observability.SetSpanAttribute(ctx, observability.AttrOperation, op)

		if err := applyBulk(ctx, reg, component.Operation(op), names); err != nil {
			observability.SetSpanError(ctx, err)
			server.RespondWithError(c, err)
			return
		}
		server.RespondOK(c, reg.List())
	}
}

// bulkNames narrows names so that stop and pause never reach a protected
// component. apply is false when nothing is left to act on, since an empty
// list means every component.
func bulkNames(reg *component.Registry, protected []string, op component.Operation, names []string) (_ []string, apply bool, _ error) {
	if len(protected) == 0 || (op != component.OpStop && op != component.OpPause) {
		return names, true, nil
	}
	if len(names) > 0 {
		for _, name := range names {
			if err := guard(protected, name, op); err != nil {
				return nil, false, err
			}
		}
		return names, true, nil
	}
	all := slices.DeleteFunc(reg.Names(), func(n string) bool { return slices.Contains(protected, n) })
	return all, len(all) > 0, nil
}

func applyBulk(ctx context.Context, reg *component.Registry, op component.Operation, names []string) error {
	switch op {
	case component.OpStart:
		return reg.Start(ctx, names...)
	case component.OpStop:
		return reg.Stop(ctx, names...)
	case component.OpPause:
		return reg.Pause(ctx, names...)
	case component.OpResume:
		return reg.Resume(ctx, names...)
	default:
		return reg.Update(ctx)
	}
}
