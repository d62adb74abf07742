// Package server implements the optional observability HTTP server. The
// subtitle protocol itself runs over stdin/stdout; this server only exposes
// health, status, configuration and Prometheus endpoints.
package server
