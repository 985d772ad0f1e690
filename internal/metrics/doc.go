// Package metrics defines the Prometheus collectors exported by gamesearch.
//
// Collectors are package-level values so any component can record without
// plumbing; Register must be called once from main before /metrics is
// served.
package metrics
