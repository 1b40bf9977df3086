//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/config"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	cfg.BaseTopic = "graylogic-int"
	return cfg
}

func TestIntegration_ConnectAndClose(t *testing.T) {
	client, err := Connect(integrationConfig("graylogic-zigbee-int-conn"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestIntegration_CommandWildcardRoundtrip(t *testing.T) {
	pub, err := Connect(integrationConfig("graylogic-zigbee-int-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(integrationConfig("graylogic-zigbee-int-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	received := make(chan string, 1)
	var once sync.Once
	err = sub.SubscribeMultiple(sub.Topics().CommandWildcards(3), 1, func(topic string, _ []byte) error {
		once.Do(func() { received <- topic })
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeMultiple() error = %v", err)
	}
	if sub.SubscriptionCount() != 6 {
		t.Errorf("SubscriptionCount() = %d, want 6", sub.SubscriptionCount())
	}

	time.Sleep(100 * time.Millisecond)

	topic := pub.Topics().DeviceSet("living/lamp", "left")
	if err := pub.Publish(topic, []byte(`{"state":"ON"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != topic {
			t.Errorf("received on %q, want %q", got, topic)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}
