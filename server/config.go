package server

import (
	"fmt"

	"github.com/kbukum/lifecycle/security"
	"github.com/kbukum/lifecycle/server/middleware"
)

// Config holds admin HTTP server configuration.
type Config struct {
	Host         string                `yaml:"host" mapstructure:"host"`
	Port         int                   `yaml:"port" mapstructure:"port"`
	ReadTimeout  int                   `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout int                   `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds, 0 keeps event streams open
	IdleTimeout  int                   `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds
	MaxBodySize  string                `yaml:"max_body_size" mapstructure:"max_body_size"` // e.g. "1MB"
	CORS         middleware.CORSConfig `yaml:"cors" mapstructure:"cors"`
	AuthSecret   string                `yaml:"auth_secret" mapstructure:"auth_secret"` // enables HS256 bearer auth
	RateLimit    float64               `yaml:"rate_limit" mapstructure:"rate_limit"`   // requests/s per client, 0 disables
	RateBurst    int                   `yaml:"rate_burst" mapstructure:"rate_burst"`
	TLS          security.TLSConfig    `yaml:"tls" mapstructure:"tls"`
	Enabled      bool                  `yaml:"enabled" mapstructure:"enabled"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		c.RateBurst = int(c.RateLimit)*2 + 1
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("admin.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("admin.read_timeout must be non-negative (got: %d)", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("admin.write_timeout must be non-negative (got: %d)", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("admin.idle_timeout must be non-negative (got: %d)", c.IdleTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("admin.rate_limit must be non-negative (got: %g)", c.RateLimit)
	}
	if c.AuthSecret != "" && len(c.AuthSecret) < 16 {
		return fmt.Errorf("admin.auth_secret must be at least 16 bytes")
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if _, err := middleware.ParseSize(c.MaxBodySize); c.MaxBodySize != "" && err != nil {
		return fmt.Errorf("admin.max_body_size: %w", err)
	}
	return nil
}

// Addr returns the configured host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
