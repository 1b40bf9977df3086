package zigbee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/mqtt"
)

// Coordinator defaults.
const (
	DefaultCoordinatorPrefix  = "graylogic/zigbee/coordinator"
	DefaultCoordinatorTimeout = 5 * time.Second
)

// CoordinatorClient implements Network over MQTT. Each request is published
// under a fresh UUID and the matching response is awaited on the response
// topic.
//
// Thread Safety: All methods are safe for concurrent use.
type CoordinatorClient struct {
	mqtt    MQTTClient
	prefix  string
	timeout time.Duration
	qos     byte

	pending   map[string]chan CoordinatorResponse
	pendingMu sync.Mutex

	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	logger Logger
}

// CoordinatorOptions configures a CoordinatorClient.
type CoordinatorOptions struct {
	MQTTClient     MQTTClient
	TopicPrefix    string
	RequestTimeout time.Duration
	QoS            byte
	Logger         Logger

	// TracerProvider and Propagator default to the otel globals.
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

// NewCoordinatorClient creates a client. Call Start before Send.
func NewCoordinatorClient(opts CoordinatorOptions) *CoordinatorClient {
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = DefaultCoordinatorPrefix
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultCoordinatorTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.Propagator == nil {
		opts.Propagator = otel.GetTextMapPropagator()
	}
	return &CoordinatorClient{
		mqtt:    opts.MQTTClient,
		prefix:  strings.TrimRight(opts.TopicPrefix, "/"),
		timeout: opts.RequestTimeout,
		qos:     opts.QoS,
		pending: make(map[string]chan CoordinatorResponse),

		tracer:     opts.TracerProvider.Tracer(tracerName),
		propagator: opts.Propagator,

		logger: opts.Logger,
	}
}

// Start subscribes to coordinator responses.
func (c *CoordinatorClient) Start() error {
	topic := mqtt.CoordinatorResponses(c.prefix)
	if err := c.mqtt.Subscribe(topic, c.qos, c.handleResponse); err != nil {
		return fmt.Errorf("subscribe to coordinator responses: %w", err)
	}
	c.logger.Info("subscribed to coordinator responses", "topic", topic)
	return nil
}

// IsConnected reports whether requests can currently be published.
func (c *CoordinatorClient) IsConnected() bool {
	return c.mqtt != nil && c.mqtt.IsConnected()
}

// Pending returns the number of requests awaiting a response.
func (c *CoordinatorClient) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

// Send publishes req and blocks until the coordinator responds, the request
// timeout elapses, or ctx ends.
func (c *CoordinatorClient) Send(ctx context.Context, req NetworkRequest) (Response, error) {
	id := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "zigbee.coordinator.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("zigbee.request_id", id),
			attribute.String("zigbee.ieee_address", req.IEEEAddress),
			attribute.Int("zigbee.endpoint", int(req.Endpoint)),
			attribute.String("zigbee.cluster", req.Cluster),
			attribute.String("zigbee.command", req.Command),
		))
	defer span.End()

	resp, err := c.send(ctx, id, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "coordinator request failed")
	}
	return resp, err
}

func (c *CoordinatorClient) send(ctx context.Context, id string, req NetworkRequest) (Response, error) {
	if !c.IsConnected() {
		return Response{}, ErrNotConnected
	}

	creq := NewCoordinatorRequest(id, req)
	carrier := propagation.MapCarrier{}
	c.propagator.Inject(ctx, carrier)
	if len(carrier) > 0 {
		creq.TraceContext = carrier
	}

	payload, err := json.Marshal(creq)
	if err != nil {
		return Response{}, fmt.Errorf("marshalling coordinator request: %w", err)
	}

	ch := make(chan CoordinatorResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.mqtt.Publish(mqtt.CoordinatorRequest(c.prefix, id), payload, c.qos, false); err != nil {
		return Response{}, fmt.Errorf("publishing coordinator request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case resp := <-ch:
		if !resp.Success {
			return Response{}, responseError(resp)
		}
		return Response{Data: resp.Data}, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, fmt.Errorf("%w: %s %s.%s", ErrTimeout, req.IEEEAddress, req.Cluster, req.Command)
		}
		return Response{}, ctx.Err()
	}
}

func responseError(resp CoordinatorResponse) error {
	if resp.Error == nil {
		return ErrCommandFailed
	}
	return fmt.Errorf("%w: %s: %s", ErrCommandFailed, resp.Error.Code, resp.Error.Message)
}

// handleResponse routes a response to its waiting Send. The id is taken from
// the payload, falling back to the last topic segment.
func (c *CoordinatorClient) handleResponse(topic string, payload []byte) {
	var resp CoordinatorResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		c.logger.Warn("invalid coordinator response", "topic", topic, "error", err)
		return
	}
	if resp.ID == "" {
		resp.ID = topic[strings.LastIndexByte(topic, '/')+1:]
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug("coordinator response without pending request", "id", resp.ID)
		return
	}

	select {
	case ch <- resp:
	default:
		c.logger.Debug("duplicate coordinator response", "id", resp.ID)
	}
}
