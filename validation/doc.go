// Package validation provides struct tag validation for daemon and component
// configuration, and a small programmatic checker for admin API input.
//
// # Struct Tag Validation
//
//	type HeartbeatConfig struct {
//	    Name     string        `mapstructure:"name" validate:"required,component_name"`
//	    Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.ComponentName("name", c.Param("name"))
//	if err := v.Validate(); err != nil { ... }
package validation
