// Package metrics holds the Prometheus collectors for the Zigbee gateway.
//
// Collectors live on a private registry so tests and multiple gateway
// instances in one process do not collide on the default registerer.
// The HTTP exposition lives in internal/api.
package metrics
