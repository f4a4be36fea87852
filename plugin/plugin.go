package plugin

import (
	"strings"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/rpc"
)

// CorePluginBase binds a plugin's exported API to the registry's RPC server.
// Embed it in a plugin's core type.
type CorePluginBase struct {
	name      string
	namespace string
	api       rpc.Exportable
	server    *rpc.Server
}

// NewCore looks up the RPC server registered as rpc.ComponentName in reg and
// exposes api under the lower-cased plugin name. It fails with NOT_FOUND when
// no RPC server is registered.
func NewCore(reg *component.Registry, api rpc.Exportable, name string) (*CorePluginBase, error) {
	if name == "" {
		return nil, errors.MissingField("name")
	}
	srv, err := component.Lookup[*rpc.Server](reg, rpc.ComponentName)
	if err != nil {
		return nil, err
	}

	namespace := strings.ToLower(name)
	if err := srv.RegisterObject(api, namespace); err != nil {
		return nil, err
	}
	logger.WithComponent("plugin").Debug("Core plugin initialized", map[string]interface{}{
		"plugin":    name,
		"namespace": namespace,
	})
	return &CorePluginBase{name: name, namespace: namespace, api: api, server: srv}, nil
}

// Name returns the plugin name as given.
func (p *CorePluginBase) Name() string { return p.name }

// Namespace returns the RPC namespace the plugin is exported under.
func (p *CorePluginBase) Namespace() string { return p.namespace }

// API returns the exported plugin object.
func (p *CorePluginBase) API() rpc.Exportable { return p.api }

// Disable removes the plugin's methods from the RPC server.
func (p *CorePluginBase) Disable() {
	p.server.DeregisterObject(p.namespace)
}
