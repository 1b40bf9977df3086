package zigbee

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-zigbee/internal/device"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
	publishErr    error

	// onPublish runs after a publish is recorded, outside the lock.
	onPublish func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	if m.publishErr != nil {
		err := m.publishErr
		m.mu.Unlock()
		return err
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	hook := m.onPublish
	m.mu.Unlock()

	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// PublishedTo returns messages published to topic.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

// mockResolver resolves selectors from a fixed set of devices.
type mockResolver struct {
	devices []*device.Device
	calls   []string
	mu      sync.Mutex
}

func (r *mockResolver) Resolve(_ context.Context, selector string) (*device.Device, error) {
	r.mu.Lock()
	r.calls = append(r.calls, selector)
	r.mu.Unlock()

	for _, d := range r.devices {
		if strings.EqualFold(d.FriendlyName, selector) || d.IEEEAddress == strings.ToLower(selector) {
			return d.DeepCopy(), nil
		}
	}
	return nil, device.ErrDeviceNotFound
}

// Test devices.
const (
	bulbIEEE   = "0x000b57fffec6a5b2"
	switchIEEE = "0x00158d0001e4b1a2"
	oddIEEE    = "0x0017880104e45517"
)

func newTestResolver() *mockResolver {
	return &mockResolver{devices: []*device.Device{
		{IEEEAddress: bulbIEEE, FriendlyName: "kitchen/ceiling", ModelID: "TRADFRI bulb E27 WS opal 980lm"},
		{IEEEAddress: switchIEEE, FriendlyName: "hall/switch", ModelID: "lumi.ctrl_neutral2"},
		{IEEEAddress: oddIEEE, FriendlyName: "mystery", ModelID: "acme.gizmo"},
	}}
}

// mockNetwork records requests and returns a configurable result.
type mockNetwork struct {
	mu       sync.Mutex
	requests []NetworkRequest
	err      error
	delay    time.Duration

	// block, when set, holds Send until it is closed.
	block chan struct{}

	// active tracks concurrent Send calls.
	active    int
	maxActive int
}

func (n *mockNetwork) Send(ctx context.Context, req NetworkRequest) (Response, error) {
	n.mu.Lock()
	n.requests = append(n.requests, req)
	n.active++
	if n.active > n.maxActive {
		n.maxActive = n.active
	}
	block, delay, err := n.block, n.delay, n.err
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.active--
		n.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return Response{}, err
	}
	return Response{Data: map[string]any{}}, nil
}

func (n *mockNetwork) Requests() []NetworkRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NetworkRequest(nil), n.requests...)
}

func (n *mockNetwork) MaxActive() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.maxActive
}

// stateCall is one recorded PublishDeviceState call.
type stateCall struct {
	IEEE       string
	Fields     map[string]any
	Optimistic bool
}

// mockStatePublisher records state publishes.
type mockStatePublisher struct {
	mu    sync.Mutex
	calls []stateCall
}

func (p *mockStatePublisher) PublishDeviceState(_ context.Context, dev *device.Device, fields map[string]any, optimistic bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, stateCall{IEEE: dev.IEEEAddress, Fields: fields, Optimistic: optimistic})
	return nil
}

func (p *mockStatePublisher) Calls() []stateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]stateCall(nil), p.calls...)
}

// recordingLogger captures log calls by level.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	Level string
	Msg   string
}

func (l *recordingLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Level: level, Msg: msg})
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.log("error", msg) }

// Count returns the number of entries at level with msg.
func (l *recordingLogger) Count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level && e.Msg == msg {
			n++
		}
	}
	return n
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

var errNetwork = errors.New("device unreachable")
