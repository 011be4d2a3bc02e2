// Package server implements the HTTP API: audio uploads for silence analysis,
// retrieval of stored analyses, and the health, configuration, statistics and
// Prometheus monitoring endpoints.
package server
