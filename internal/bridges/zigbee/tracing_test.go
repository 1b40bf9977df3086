package zigbee

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) }) //nolint:errcheck // Test cleanup
	return tp, sr
}

func endedSpan(sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	for _, s := range sr.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// contextNetwork records the span context and cancellation state seen by Send.
type contextNetwork struct {
	mu    sync.Mutex
	spans []trace.SpanContext
	errs  []error
	value []any
}

type ctxKey struct{}

func (n *contextNetwork) Send(ctx context.Context, _ NetworkRequest) (Response, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.spans = append(n.spans, trace.SpanContextFromContext(ctx))
	n.errs = append(n.errs, ctx.Err())
	n.value = append(n.value, ctx.Value(ctxKey{}))
	return Response{}, nil
}

func (n *contextNetwork) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.spans)
}

func TestCommandQueue_JobContextValuesWithoutCancellation(t *testing.T) {
	network := &contextNetwork{}
	q := NewCommandQueue(network, QueueOptions{Timeout: time.Second})
	q.Start()
	defer q.Stop()

	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "msg-1"))
	cancel()

	if err := q.Enqueue(Job{Request: testRequest, Context: parent}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(Job{Request: testRequest}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	waitFor(t, func() bool { return network.Calls() == 2 })

	network.mu.Lock()
	defer network.mu.Unlock()
	if network.value[0] != "msg-1" {
		t.Errorf("job context value = %v, want msg-1", network.value[0])
	}
	if network.errs[0] != nil {
		t.Errorf("Send context error = %v; parent cancellation should not reach Send", network.errs[0])
	}
	if network.value[1] != nil || network.errs[1] != nil {
		t.Errorf("nil job context: value = %v, err = %v", network.value[1], network.errs[1])
	}
}

func TestBridge_TracesMessageIntoNetwork(t *testing.T) {
	tp, sr := newTestTracerProvider(t)
	network := &contextNetwork{}

	b, err := NewBridge(BridgeOptions{
		MQTTClient:     NewMockMQTTClient(),
		Devices:        newTestResolver(),
		Models:         converters.DefaultCatalog(),
		Network:        network,
		State:          &mockStatePublisher{},
		BaseTopic:      "zigbee2mqtt",
		HealthInterval: time.Hour,
		TracerProvider: tp,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	b.HandleMessage("zigbee2mqtt/kitchen/ceiling/set", []byte(`{"state":"ON","brightness":10}`))
	waitFor(t, func() bool { return network.Calls() == 2 })

	msgSpan := endedSpan(sr, "zigbee.message")
	if msgSpan == nil {
		t.Fatal("no zigbee.message span recorded")
	}
	if msgSpan.SpanKind() != trace.SpanKindConsumer {
		t.Errorf("SpanKind = %v, want consumer", msgSpan.SpanKind())
	}

	attrs := map[string]string{}
	for _, kv := range msgSpan.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["messaging.destination.name"] != "zigbee2mqtt/kitchen/ceiling/set" ||
		attrs["zigbee.ieee_address"] != bulbIEEE ||
		attrs["zigbee.commands_queued"] != "2" {
		t.Errorf("attributes = %v", attrs)
	}

	network.mu.Lock()
	defer network.mu.Unlock()
	for i, sc := range network.spans {
		if sc.TraceID() != msgSpan.SpanContext().TraceID() {
			t.Errorf("Send %d trace = %s, want %s", i, sc.TraceID(), msgSpan.SpanContext().TraceID())
		}
	}
}

func TestBridge_TracesDispatchFailure(t *testing.T) {
	tp, sr := newTestTracerProvider(t)

	b, err := NewBridge(BridgeOptions{
		MQTTClient:     NewMockMQTTClient(),
		Devices:        newTestResolver(),
		Models:         converters.DefaultCatalog(),
		Network:        &mockNetwork{},
		State:          &mockStatePublisher{},
		BaseTopic:      "zigbee2mqtt",
		HealthInterval: time.Hour,
		TracerProvider: tp,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}

	b.HandleMessage("zigbee2mqtt/garage/set", []byte("ON"))

	span := endedSpan(sr, "zigbee.message")
	if span == nil {
		t.Fatal("no zigbee.message span recorded")
	}
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want error", span.Status())
	}
}

func TestCoordinatorClient_TracesAndPropagates(t *testing.T) {
	tp, sr := newTestTracerProvider(t)

	var seen CoordinatorRequest
	c, _ := newAnsweringCoordinatorWith(t, CoordinatorOptions{
		TracerProvider: tp,
		Propagator:     propagation.TraceContext{},
	}, func(req CoordinatorRequest) *CoordinatorResponse {
		seen = req
		return &CoordinatorResponse{ID: req.ID, Success: true}
	})

	ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")
	if _, err := c.Send(ctx, testRequest); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	parent.End()

	span := endedSpan(sr, "zigbee.coordinator.send")
	if span == nil {
		t.Fatal("no zigbee.coordinator.send span recorded")
	}
	if span.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Errorf("parent span = %s, want %s", span.Parent().SpanID(), parent.SpanContext().SpanID())
	}
	if span.SpanKind() != trace.SpanKindClient {
		t.Errorf("SpanKind = %v, want client", span.SpanKind())
	}

	tp2 := seen.TraceContext["traceparent"]
	if !strings.Contains(tp2, parent.SpanContext().TraceID().String()) ||
		!strings.Contains(tp2, span.SpanContext().SpanID().String()) {
		t.Errorf("traceparent = %q, want trace %s and span %s", tp2,
			parent.SpanContext().TraceID(), span.SpanContext().SpanID())
	}
}

func TestCoordinatorClient_TracesFailure(t *testing.T) {
	tp, sr := newTestTracerProvider(t)
	c, _ := newAnsweringCoordinatorWith(t, CoordinatorOptions{TracerProvider: tp},
		func(req CoordinatorRequest) *CoordinatorResponse {
			return &CoordinatorResponse{ID: req.ID, Success: false, Error: &CoordinatorError{Code: "NO_ACK", Message: "no ack"}}
		})

	if _, err := c.Send(context.Background(), testRequest); err == nil {
		t.Fatal("Send() expected error")
	}

	span := endedSpan(sr, "zigbee.coordinator.send")
	if span == nil {
		t.Fatal("no zigbee.coordinator.send span recorded")
	}
	if span.Status().Code != codes.Error || len(span.Events()) == 0 {
		t.Errorf("status = %v, events = %d; want error with recorded exception", span.Status(), len(span.Events()))
	}
}

func TestCoordinatorClient_NoTraceContextWithoutSpan(t *testing.T) {
	var seen CoordinatorRequest
	c, _ := newAnsweringCoordinatorWith(t, CoordinatorOptions{Propagator: propagation.TraceContext{}},
		func(req CoordinatorRequest) *CoordinatorResponse {
			seen = req
			return &CoordinatorResponse{ID: req.ID, Success: true}
		})

	if _, err := c.Send(context.Background(), testRequest); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if seen.TraceContext != nil {
		t.Errorf("TraceContext = %v, want none without a recording span", seen.TraceContext)
	}
}
