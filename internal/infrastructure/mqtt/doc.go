// Package mqtt provides MQTT client connectivity for the Zigbee gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Availability on <base_topic>/bridge/state, with a Last Will of "offline"
//
// # Architecture
//
// The gateway sits between MQTT clients and the Zigbee coordinator service,
// both of which talk to it through the same broker:
//
//	MQTT clients ↔ Broker ↔ Gateway ↔ Broker ↔ Coordinator ↔ Zigbee network
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.SubscribeMultiple(topics.CommandWildcards(20), 1,
//	    func(topic string, payload []byte) error {
//	        bridge.HandleMessage(topic, payload)
//	        return nil
//	    })
package mqtt
