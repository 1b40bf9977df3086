package zigbee

import (
	"context"
	"fmt"
	"iter"

	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
	"github.com/nerrad567/gray-logic-zigbee/internal/device"
)

// supportGuidance is logged alongside unsupported model warnings.
const supportGuidance = "https://www.zigbee2mqtt.io/advanced/support-new-devices/01_support_new_devices.html"

// DeviceResolver maps a topic selector to a device.
// This interface is satisfied by *device.Registry.
type DeviceResolver interface {
	Resolve(ctx context.Context, selector string) (*device.Device, error)
}

// ModelCatalog maps a reported Zigbee model ID to its definition.
// This interface is satisfied by *converters.Catalog.
type ModelCatalog interface {
	FindByZigbeeModel(id string) (*converters.Model, bool)
}

// Target is the resolved destination of a message.
type Target struct {
	Device *device.Device
	Model  *converters.Model

	// Address is the topic address after selector resolution. Its
	// SubEndpoint is cleared when the qualifier turned out to be part of
	// the friendly name.
	Address Address

	Endpoint uint8
}

// DispatchedCommand is one converted key, ready to be sent.
type DispatchedCommand struct {
	Key      string
	Command  converters.Command
	Endpoint uint8
}

// Request builds the network request for c on the target device.
func (t *Target) Request(c DispatchedCommand) NetworkRequest {
	return NetworkRequest{
		IEEEAddress: t.Device.IEEEAddress,
		Endpoint:    c.Endpoint,
		Cluster:     c.Command.Cluster,
		Command:     c.Command.Command,
		CommandType: c.Command.Type,
		Payload:     c.Command.Payload,
		Config:      c.Command.Config,
	}
}

// Dispatcher turns a decoded message into commands for one device.
type Dispatcher struct {
	devices DeviceResolver
	models  ModelCatalog
	logger  Logger
}

// NewDispatcher creates a dispatcher. logger may be nil.
func NewDispatcher(devices DeviceResolver, models ModelCatalog, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{devices: devices, models: models, logger: logger}
}

// Dispatch resolves addr to a device and model and returns a lazy sequence
// of commands, at most one per message key, in key order. Keys without a
// converter are logged and skipped; keys whose converter declines are
// skipped silently.
//
// Returns ErrUnknownDevice or ErrUnsupportedModel when nothing can be sent.
func (d *Dispatcher) Dispatch(ctx context.Context, addr Address, msg Message) (*Target, iter.Seq[DispatchedCommand], error) {
	dev, addr, err := d.resolve(ctx, addr)
	if err != nil {
		return nil, nil, err
	}

	model, ok := d.models.FindByZigbeeModel(dev.ModelID)
	if !ok {
		d.logger.Warn("device model is not supported",
			"model_id", dev.ModelID,
			"device", dev.Name(),
			"see", supportGuidance)
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, dev.ModelID)
	}

	endpoint, _ := model.Endpoint(addr.SubEndpoint)
	target := &Target{Device: dev, Model: model, Address: addr, Endpoint: endpoint}

	seq := func(yield func(DispatchedCommand) bool) {
		for key, value := range msg.All() {
			conv, ok := model.FindConverter(key)
			if !ok {
				d.logger.Warn("no converter available for key",
					"key", key,
					"value", value,
					"device", dev.Name(),
					"model", model.Model)
				continue
			}

			cmd, ok := conv.Convert(value, msg, addr.Kind)
			if !ok {
				continue
			}

			if !yield(DispatchedCommand{Key: key, Command: cmd, Endpoint: endpoint}) {
				return
			}
		}
	}

	return target, seq, nil
}

// resolve looks up the selector. When a qualifier was split off and the
// bare selector is unknown, the full path is tried as a friendly name.
func (d *Dispatcher) resolve(ctx context.Context, addr Address) (*device.Device, Address, error) {
	dev, err := d.devices.Resolve(ctx, addr.DeviceSelector)
	if err == nil {
		return dev, addr, nil
	}

	if addr.SubEndpoint != "" {
		full := Address{DeviceSelector: addr.Topic(), Kind: addr.Kind}
		if dev, ferr := d.devices.Resolve(ctx, full.DeviceSelector); ferr == nil {
			return dev, full, nil
		}
	}

	return nil, addr, fmt.Errorf("%w: %q: %v", ErrUnknownDevice, addr.DeviceSelector, err)
}
