package zigbee

import (
	"time"

	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
)

// Messages exchanged with the coordinator service and published for health.

// CoordinatorRequest asks the coordinator to send one ZCL command.
// Topic: <prefix>/request/<id>
type CoordinatorRequest struct {
	ID          string                    `json:"id"`
	Timestamp   time.Time                 `json:"timestamp"`
	IEEEAddress string                    `json:"ieee_address"`
	Endpoint    uint8                     `json:"endpoint"`
	Cluster     string                    `json:"cluster"`
	Command     string                    `json:"command"`
	CommandType converters.CommandType    `json:"command_type"`
	Payload     map[string]any            `json:"payload"`
	Config      *converters.CommandConfig `json:"config,omitempty"`

	// TraceContext carries W3C trace headers (traceparent, tracestate) so the
	// coordinator can continue the gateway's trace.
	TraceContext map[string]string `json:"trace_context,omitempty"`
}

// NewCoordinatorRequest wraps req for sending under id.
func NewCoordinatorRequest(id string, req NetworkRequest) CoordinatorRequest {
	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return CoordinatorRequest{
		ID:          id,
		Timestamp:   time.Now().UTC(),
		IEEEAddress: req.IEEEAddress,
		Endpoint:    req.Endpoint,
		Cluster:     req.Cluster,
		Command:     req.Command,
		CommandType: req.CommandType,
		Payload:     payload,
		Config:      req.Config,
	}
}

// CoordinatorResponse is the coordinator's answer to a request.
// Topic: <prefix>/response/<id>
type CoordinatorResponse struct {
	ID      string            `json:"id"`
	Success bool              `json:"success"`
	Data    map[string]any    `json:"data,omitempty"`
	Error   *CoordinatorError `json:"error,omitempty"`
}

// CoordinatorError describes a failed request.
type CoordinatorError struct {
	// Code is a short machine-readable reason, e.g. "DEVICE_UNREACHABLE".
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes reported by the coordinator.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeUnsupportedCmd    = "UNSUPPORTED_COMMAND"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBusy              = "BUSY"
)

// HealthStatus is the overall gateway status.
type HealthStatus string

const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published to <base>/bridge/health (QoS 1, retained).
type HealthMessage struct {
	Status    HealthStatus `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Version   string       `json:"version"`
	Uptime    int64        `json:"uptime_seconds"`
	Devices   int          `json:"devices"`
	Queue     QueueStats   `json:"queue"`
}
