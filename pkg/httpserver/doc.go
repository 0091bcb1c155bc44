// Package httpserver wraps net/http with graceful shutdown, env-driven
// configuration and health-check probes. Run blocks until the context is
// cancelled or an interrupt/TERM signal arrives, then drains in-flight
// requests within the configured shutdown timeout.
package httpserver
