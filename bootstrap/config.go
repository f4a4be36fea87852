package bootstrap

import (
	"github.com/kbukum/lifecycle/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.ServiceConfig (value embedding) automatically
// satisfies this interface via promoted methods.
//
// Example:
//
//	type DaemonConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Admin server.Config  `yaml:"admin" mapstructure:"admin"`
//	}
//
//	app, err := bootstrap.NewApp[*DaemonConfig](&cfg)
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
