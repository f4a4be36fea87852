package heartbeat

import (
	"context"
	"encoding/json"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/rpc"
)

// PluginName is the name the heartbeat API is exported under.
const PluginName = "Heartbeat"

// API exports heartbeat status over RPC.
type API struct {
	reg *component.Registry
}

var _ rpc.Exportable = (*API)(nil)

// NewAPI creates an API reading heartbeats from reg.
func NewAPI(reg *component.Registry) *API {
	return &API{reg: reg}
}

// Exports implements rpc.Exportable.
func (a *API) Exports() map[string]rpc.Method {
	return map[string]rpc.Method{
		"status": a.status,
	}
}

type statusParams struct {
	Name string `json:"name"`
}

// status returns one heartbeat's status when params name it, otherwise every
// registered heartbeat's in registration order.
func (a *API) status(_ context.Context, params json.RawMessage) (any, error) {
	var p statusParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, errors.InvalidInput("params", err.Error())
		}
	}
	if p.Name != "" {
		c, err := component.Lookup[*Component](a.reg, p.Name)
		if err != nil {
			return nil, err
		}
		return c.Status(), nil
	}

	all := []Status{}
	for _, name := range a.reg.Names() {
		if c, err := component.Lookup[*Component](a.reg, name); err == nil {
			all = append(all, c.Status())
		}
	}
	return all, nil
}
