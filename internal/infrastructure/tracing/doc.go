// Package tracing configures OpenTelemetry tracing for the Zigbee gateway.
//
// Setup installs a global TracerProvider and the W3C trace-context
// propagator. The bridge starts one span per inbound MQTT command and the
// coordinator client starts a child span per device network request, so a
// trace follows a message from the broker through the queue to the
// coordinator response.
//
// Spans are exported over OTLP/HTTP when an endpoint is configured. Without
// one they are sampled and then dropped inside the process.
package tracing
