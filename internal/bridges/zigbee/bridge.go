package zigbee

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/mqtt"
)

// tracerName is the instrumentation scope for spans started in this package.
const tracerName = "github.com/nerrad567/gray-logic-zigbee/internal/bridges/zigbee"

// DefaultMaxSelectorDepth is the deepest friendly name, in topic segments,
// that command subscriptions cover.
const DefaultMaxSelectorDepth = 20

// Drop reasons reported to Metrics.MessageDropped.
const (
	DropUnknownDevice    = "unknown_device"
	DropUnsupportedModel = "unsupported_model"
	DropQueueFull        = "queue_full"
	DropQueueStopped     = "queue_stopped"
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// MultiSubscriber is implemented by clients that can subscribe to many
// topics in one request.
type MultiSubscriber interface {
	SubscribeMultiple(topics []string, qos byte, handler func(topic string, payload []byte)) error
}

// CommandRecorder receives one call per completed command.
type CommandRecorder interface {
	RecordCommand(device, key, cluster string, duration time.Duration, err error)
}

// Metrics receives pipeline events.
type Metrics interface {
	CommandRecorder
	MessageReceived(kind string)
	MessageDropped(reason string)
	SetQueueDepth(depth int)
}

// Bridge wires the command pipeline: MQTT command topics are parsed,
// decoded, dispatched to converters, queued for the device network, and
// echoed back as optimistic state on success.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt       MQTTClient
	parser     *TopicParser
	dispatcher *Dispatcher
	queue      *CommandQueue
	state      StatePublisher
	health     *HealthReporter
	metrics    Metrics
	recorders  []CommandRecorder
	tracer     trace.Tracer

	topics   mqtt.Topics
	maxDepth int
	qos      byte

	// Shutdown coordination
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger Logger
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	MQTTClient MQTTClient
	Devices    DeviceResolver
	Models     ModelCatalog
	Network    Network

	// State publishes optimistic echoes.
	State StatePublisher

	BaseTopic string

	// MaxSelectorDepth bounds the command subscriptions. Default: 20.
	MaxSelectorDepth int

	QoS   byte
	Queue QueueOptions

	HealthInterval time.Duration
	Version        string

	// Metrics and Recorders are optional.
	Metrics   Metrics
	Recorders []CommandRecorder

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	Logger Logger
}

// NewBridge creates a new bridge instance. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	switch {
	case opts.MQTTClient == nil:
		return nil, fmt.Errorf("MQTT client is required")
	case opts.Devices == nil:
		return nil, fmt.Errorf("device resolver is required")
	case opts.Models == nil:
		return nil, fmt.Errorf("model catalog is required")
	case opts.Network == nil:
		return nil, fmt.Errorf("device network is required")
	case opts.State == nil:
		return nil, fmt.Errorf("state publisher is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	maxDepth := opts.MaxSelectorDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxSelectorDepth
	}
	queueOpts := opts.Queue
	if queueOpts.Logger == nil {
		queueOpts.Logger = logger
	}

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	topics := mqtt.NewTopics(opts.BaseTopic)
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		mqtt:       opts.MQTTClient,
		parser:     NewTopicParser(topics.Base),
		dispatcher: NewDispatcher(opts.Devices, opts.Models, logger),
		queue:      NewCommandQueue(opts.Network, queueOpts),
		state:      opts.State,
		metrics:    opts.Metrics,
		recorders:  opts.Recorders,
		tracer:     tp.Tracer(tracerName),
		topics:     topics,
		maxDepth:   maxDepth,
		qos:        opts.QoS,
		ctx:        ctx,
		ctxCancel:  cancel,
		logger:     logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Topic:     topics.BridgeHealth(),
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Queue:     b.queue,
		Logger:    logger,
	})

	return b, nil
}

// Start starts the queue worker, subscribes to command topics and begins
// health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Error("failed to publish starting status", "error", err)
	}

	b.queue.Start()

	patterns := b.topics.CommandWildcards(b.maxDepth)
	if ms, ok := b.mqtt.(MultiSubscriber); ok {
		if err := ms.SubscribeMultiple(patterns, b.qos, b.handleMQTTMessage); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
	} else {
		for _, p := range patterns {
			if err := b.mqtt.Subscribe(p, b.qos, b.handleMQTTMessage); err != nil {
				return fmt.Errorf("subscribe to %s: %w", p, err)
			}
		}
	}
	b.logger.Info("subscribed to commands",
		"base_topic", b.topics.Base,
		"patterns", len(patterns))

	b.health.Start(ctx)
	return nil
}

// Stop lets the in-flight command finish, discards queued commands and
// stops health reporting.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.queue.Stop()
		b.ctxCancel()
		b.health.Stop()
		b.logger.Info("bridge stopped")
	})
}

// SetDeviceCount updates the device count reported in health messages.
func (b *Bridge) SetDeviceCount(n int) {
	b.health.SetDeviceCount(n)
}

// QueueStats returns a snapshot of the command queue.
func (b *Bridge) QueueStats() QueueStats {
	return b.queue.Stats()
}

// Health returns the current health report without publishing it.
func (b *Bridge) Health() HealthMessage {
	status, reason := b.health.determineStatus()
	return b.health.Snapshot(status, reason)
}

func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	b.HandleMessage(topic, payload)
}

// HandleMessage runs one MQTT message through the pipeline. It returns false
// when topic is not a command topic. Commands are queued; their outcome is
// reported asynchronously.
func (b *Bridge) HandleMessage(topic string, payload []byte) bool {
	addr, ok := b.parser.Parse(topic)
	if !ok {
		b.logger.Debug("ignoring non-command topic", "topic", topic)
		return false
	}
	if b.metrics != nil {
		b.metrics.MessageReceived(string(addr.Kind))
	}

	ctx, span := b.tracer.Start(b.ctx, "zigbee.message",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", topic),
			attribute.String("zigbee.selector", addr.DeviceSelector),
			attribute.String("zigbee.kind", string(addr.Kind)),
			attribute.String("zigbee.sub_endpoint", addr.SubEndpoint),
		))
	defer span.End()

	msg := DecodeMessage(payload)

	target, commands, err := b.dispatcher.Dispatch(ctx, addr, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		switch {
		case errors.Is(err, ErrUnknownDevice):
			b.logger.Error("failed to find device", "selector", addr.DeviceSelector, "error", err)
			b.dropped(DropUnknownDevice)
		case errors.Is(err, ErrUnsupportedModel):
			// Already logged with guidance by the dispatcher.
			b.dropped(DropUnsupportedModel)
		default:
			b.logger.Error("dispatch failed", "topic", topic, "error", err)
		}
		return true
	}

	span.SetAttributes(attribute.String("zigbee.ieee_address", target.Device.IEEEAddress))

	queued := 0
	for cmd := range commands {
		job := Job{
			Request:    target.Request(cmd),
			Context:    ctx,
			OnComplete: b.completion(target, cmd, msg),
		}
		if err := b.queue.Enqueue(job); err != nil {
			span.AddEvent("command dropped", trace.WithAttributes(
				attribute.String("zigbee.key", cmd.Key),
				attribute.String("error", err.Error()),
			))
			b.logger.Warn("command dropped",
				"device", target.Device.Name(),
				"key", cmd.Key,
				"error", err)
			if errors.Is(err, ErrQueueFull) {
				b.dropped(DropQueueFull)
			} else {
				b.dropped(DropQueueStopped)
			}
			continue
		}
		queued++
		b.logger.Debug("command queued",
			"device", target.Device.Name(),
			"key", cmd.Key,
			"cluster", cmd.Command.Cluster,
			"command", cmd.Command.Command,
			"endpoint", cmd.Endpoint)
	}

	span.SetAttributes(attribute.Int("zigbee.commands_queued", queued))

	if b.metrics != nil {
		b.metrics.SetQueueDepth(b.queue.Depth())
	}
	return true
}

// completion returns the queue callback for one command. It records the
// outcome and publishes the optimistic echo when the command succeeded.
func (b *Bridge) completion(target *Target, cmd DispatchedCommand, msg Message) func(Response, error) {
	return func(resp Response, err error) {
		name := target.Device.Name()

		if b.metrics != nil {
			b.metrics.RecordCommand(name, cmd.Key, cmd.Command.Cluster, resp.Duration, err)
			b.metrics.SetQueueDepth(b.queue.Depth())
		}
		for _, r := range b.recorders {
			r.RecordCommand(name, cmd.Key, cmd.Command.Cluster, resp.Duration, err)
		}

		if err != nil {
			b.logger.Error("zigbee command failed",
				"device", name,
				"key", cmd.Key,
				"cluster", cmd.Command.Cluster,
				"command", cmd.Command.Command,
				"error", err)
			return
		}

		fields, ok := EchoFields(target.Address.Kind, cmd.Key, target.Address.SubEndpoint, msg)
		if !ok {
			return
		}
		if err := b.state.PublishDeviceState(b.ctx, target.Device, fields, true); err != nil {
			b.logger.Error("failed to publish device state", "device", name, "error", err)
		}
	}
}

func (b *Bridge) dropped(reason string) {
	if b.metrics != nil {
		b.metrics.MessageDropped(reason)
	}
}
