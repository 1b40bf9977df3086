// Package logging provides structured logging for the Zigbee gateway.
//
// It wraps log/slog with JSON or text output, level filtering, and default
// service and version attributes on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("bridge").Info("subscribed", "topics", 40)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
