package zigbee

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func decodeHealth(t *testing.T, p mockPublish) HealthMessage {
	t.Helper()
	var msg HealthMessage
	if err := json.Unmarshal(p.Payload, &msg); err != nil {
		t.Fatalf("health payload is not JSON: %v", err)
	}
	return msg
}

func TestHealthReporter_Lifecycle(t *testing.T) {
	client := NewMockMQTTClient()
	q := NewCommandQueue(&mockNetwork{}, QueueOptions{})
	h := NewHealthReporter(HealthReporterConfig{
		Topic:     "zigbee2mqtt/bridge/health",
		Version:   "1.2.3",
		Interval:  time.Hour,
		Publisher: client,
		Queue:     q,
	})
	h.SetDeviceCount(4)

	if err := h.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting() error = %v", err)
	}

	h.Start(context.Background())
	waitFor(t, func() bool { return len(client.PublishedTo("zigbee2mqtt/bridge/health")) == 2 })
	h.Stop()
	h.Stop()

	pubs := client.PublishedTo("zigbee2mqtt/bridge/health")
	if len(pubs) != 3 {
		t.Fatalf("published %d health messages, want 3", len(pubs))
	}

	wantStatus := []HealthStatus{HealthStarting, HealthHealthy, HealthStopping}
	for i, p := range pubs {
		if !p.Retained || p.QoS != 1 {
			t.Errorf("health publish %d flags = %+v", i, p)
		}
		msg := decodeHealth(t, p)
		if msg.Status != wantStatus[i] {
			t.Errorf("status[%d] = %s, want %s", i, msg.Status, wantStatus[i])
		}
		if msg.Version != "1.2.3" || msg.Devices != 4 {
			t.Errorf("message[%d] = %+v", i, msg)
		}
	}
}

func TestHealthReporter_DegradedStates(t *testing.T) {
	client := NewMockMQTTClient()
	q := NewCommandQueue(&mockNetwork{}, QueueOptions{})
	h := NewHealthReporter(HealthReporterConfig{Topic: "t", Publisher: client, Queue: q})

	if status, _ := h.determineStatus(); status != HealthHealthy {
		t.Errorf("status = %s, want healthy", status)
	}

	q.Stop()
	if status, reason := h.determineStatus(); status != HealthDegraded || reason != "command queue stopped" {
		t.Errorf("status = %s (%s), want degraded", status, reason)
	}

	client.SetConnected(false)
	if status, reason := h.determineStatus(); status != HealthDegraded || reason != "MQTT disconnected" {
		t.Errorf("status = %s (%s), want degraded", status, reason)
	}
}

func TestHealthReporter_NilPublisher(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{})
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() error = %v", err)
	}
	if h.interval != DefaultHealthInterval {
		t.Errorf("interval = %v, want default", h.interval)
	}
}
