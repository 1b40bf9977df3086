package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementCommands = "zigbee_commands"
	MeasurementQueue    = "zigbee_queue"
)

// Command results used as the "result" tag.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// RecordCommand writes one point per completed Zigbee command.
// It satisfies the bridge's CommandRecorder interface.
func (c *Client) RecordCommand(device, key, cluster string, duration time.Duration, err error) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(commandPoint(device, key, cluster, duration, err, time.Now()))
}

// WriteQueueStats records a snapshot of the command queue.
func (c *Client) WriteQueueStats(depth int, succeeded, failed, rejected uint64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementQueue,
		nil,
		map[string]any{
			"depth":     depth,
			"succeeded": succeeded,
			"failed":    failed,
			"rejected":  rejected,
		},
		time.Now(),
	))
}

func commandPoint(device, key, cluster string, duration time.Duration, err error, ts time.Time) *write.Point {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	return write.NewPoint(
		MeasurementCommands,
		map[string]string{
			"device":  device,
			"key":     key,
			"cluster": cluster,
			"result":  result,
		},
		map[string]any{
			"duration_ms": float64(duration) / float64(time.Millisecond),
		},
		ts,
	)
}
