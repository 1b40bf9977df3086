package main

import (
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/mqtt"
)

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the handler signature:
//   - Infrastructure mqtt: func(topic string, payload []byte) error
//   - Bridge expects: func(topic string, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements zigbee.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements zigbee.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, wrapHandler(handler))
}

// SubscribeMultiple implements zigbee.MultiSubscriber.
func (a *mqttBridgeAdapter) SubscribeMultiple(topics []string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.SubscribeMultiple(topics, qos, wrapHandler(handler))
}

// IsConnected implements zigbee.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

func wrapHandler(handler func(topic string, payload []byte)) mqtt.MessageHandler {
	return func(t string, p []byte) error {
		handler(t, p)
		return nil
	}
}
