package zigbee

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-zigbee/internal/device"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/mqtt"
)

// StatePublisher publishes a device state update.
// optimistic marks updates inferred from a sent command rather than reported
// by the device.
type StatePublisher interface {
	PublishDeviceState(ctx context.Context, dev *device.Device, fields map[string]any, optimistic bool) error
}

// StateStore holds last-known device state.
// Satisfied by *device.Registry (SQLite) and *device.RedisStateStore.
type StateStore interface {
	LoadState(ctx context.Context, ieee string) (device.State, error)
	MergeState(ctx context.Context, ieee string, patch device.State) (device.State, error)
}

// DeviceStatePublisher merges updates into the last-known state and
// publishes the result to <base>/<friendly_name>.
type DeviceStatePublisher struct {
	mqtt   MQTTClient
	store  StateStore
	topics mqtt.Topics
	qos    byte
	retain bool
	logger Logger
}

// StatePublisherOptions configures a DeviceStatePublisher.
type StatePublisherOptions struct {
	MQTTClient MQTTClient

	// Store is optional. Without it updates are published as-is.
	Store StateStore

	BaseTopic string
	QoS       byte

	// Retain is the default retain flag; a device's own Retain setting
	// also enables it.
	Retain bool

	Logger Logger
}

// NewDeviceStatePublisher creates a state publisher.
func NewDeviceStatePublisher(opts StatePublisherOptions) *DeviceStatePublisher {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &DeviceStatePublisher{
		mqtt:   opts.MQTTClient,
		store:  opts.Store,
		topics: mqtt.NewTopics(opts.BaseTopic),
		qos:    opts.QoS,
		retain: opts.Retain,
		logger: logger,
	}
}

// PublishDeviceState merges fields into the stored state and publishes the
// merged document. When optimistic is false, fields are the full reported
// state and are published without a merge.
//
// A store failure is logged and the update is still published.
func (p *DeviceStatePublisher) PublishDeviceState(ctx context.Context, dev *device.Device, fields map[string]any, optimistic bool) error {
	state := device.State(fields)

	if p.store != nil {
		if optimistic {
			merged, err := p.store.MergeState(ctx, dev.IEEEAddress, device.State(fields))
			if err != nil {
				p.logger.Warn("failed to merge device state",
					"ieee_address", dev.IEEEAddress,
					"error", err)
			} else {
				state = merged
			}
		} else if _, err := p.store.MergeState(ctx, dev.IEEEAddress, device.State(fields)); err != nil {
			p.logger.Warn("failed to store device state",
				"ieee_address", dev.IEEEAddress,
				"error", err)
		}
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state for %s: %w", dev.Name(), err)
	}

	topic := p.topics.DeviceState(dev.Name())
	if err := p.mqtt.Publish(topic, payload, p.qos, p.retain || dev.Retain); err != nil {
		return fmt.Errorf("publishing state for %s: %w", dev.Name(), err)
	}

	p.logger.Debug("device state published",
		"topic", topic,
		"optimistic", optimistic)
	return nil
}
