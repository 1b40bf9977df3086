// Package api provides the admin HTTP server for the Gray Logic Zigbee gateway.
//
// It exposes Prometheus metrics, gateway health, the device registry, the
// model catalogue, and a command endpoint that feeds the same pipeline as
// MQTT command topics. It is intended for operators and scrapers on a trusted
// network; there is no authentication.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
