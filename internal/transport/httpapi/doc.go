// Package httpapi exposes the catalog over a read-only JSON HTTP API
// built on chi. Prometheus metrics are served at /metrics.
package httpapi
