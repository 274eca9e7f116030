// Package metrics exposes crawl progress as Prometheus metrics.
//
// Collectors are registered on a registry supplied by the caller rather
// than on the global default, so tests and several crawls in one process
// do not collide.
package metrics
