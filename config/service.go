package config

import (
	"fmt"
	"slices"

	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
)

// Environments accepted by ServiceConfig.Validate.
var Environments = []string{"development", "staging", "production"}

// ServiceConfig contains the fields every lifecycle service needs.
// Services extend it by embedding it in their own config structs.
//
// Example:
//
//	type DaemonConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Admin AdminConfig    `yaml:"admin" mapstructure:"admin"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig returns the base ServiceConfig.
// When embedded in a larger config struct, this method is promoted
// so the embedding struct satisfies bootstrap.Config.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults applies default values to the base configuration.
// Embedding structs that override it call c.ServiceConfig.ApplyDefaults() first.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the base configuration fields.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return errors.MissingField("name")
	}
	if !slices.Contains(Environments, c.Environment) {
		return errors.InvalidInput("environment",
			fmt.Sprintf("environment must be one of %v (got: %s)", Environments, c.Environment))
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.InvalidInput("logging", err.Error()).WithCause(err)
	}
	return nil
}
