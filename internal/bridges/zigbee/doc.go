// Package zigbee translates MQTT commands into Zigbee cluster commands.
//
// # Architecture
//
//	┌──────────┐  <base>/<device>[/<qualifier>]/set|get  ┌──────────────┐   MQTT request/   ┌─────────────┐
//	│  Client  │────────────────────────────────────────►│    Bridge    │◄─────────────────►│ Coordinator │
//	└──────────┘◄────────────────────────────────────────└──────────────┘     response      └─────────────┘
//	               <base>/<device> (optimistic state)
//
// A message flows through five stages:
//
//   - TopicParser turns the topic into an Address (selector, set/get,
//     optional qualifier such as "left").
//   - DecodeMessage turns the payload into an ordered Message. Non-JSON
//     payloads become {"state": <payload>}.
//   - Dispatcher resolves the device and its model, then converts each key
//     with the model's converter into at most one command.
//   - CommandQueue sends commands one at a time, in order, through a
//     Network (normally the CoordinatorClient).
//   - On success, EchoFields decides whether to publish an optimistic state
//     update through a StatePublisher.
//
// # Qualifiers
//
// A trailing left, right, center, bottom_left, bottom_right, top_left or
// top_right segment selects a sub-endpoint. If the shortened selector is not
// a known device but the full path is, the full path wins.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Only the queue worker talks to the device network.
package zigbee
