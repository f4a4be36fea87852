// Package logger provides structured logging for lifecycle services
// using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields passed as maps.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("registry")
//	log.Info("component started", map[string]interface{}{"component": "db"})
//	log.Exception("stop hook failed", err, logger.Fields("component", "db"))
package logger
