// Package config provides configuration loading and validation for
// lifecycle services.
//
// It uses Viper to load a config.yml found in the standard search paths,
// godotenv to load a .env file, and binds environment variables on top.
//
// # Usage
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Admin AdminConfig    `yaml:"admin" mapstructure:"admin"`
//	}
//
//	var cfg Config
//	err := config.LoadConfig("lifecycled", &cfg, config.WithEnvPrefix("LIFECYCLED"))
//
// With a prefix, LIFECYCLED_ADMIN_ADDR overrides admin.addr.
package config
