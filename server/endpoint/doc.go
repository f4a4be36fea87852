// Package endpoint holds the admin API handlers over a component.Registry.
package endpoint
