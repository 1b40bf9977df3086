// Package device is the gateway's catalogue of Zigbee devices.
//
// It maps MQTT device selectors (friendly names or IEEE addresses) to
// devices and keeps each device's last-known state.
//
//	┌──────────────┐     ┌──────────────────┐     ┌──────────────┐
//	│   Registry   │────▶│ SQLiteRepository │────▶│    SQLite    │
//	│ cache, names │     └──────────────────┘     └──────────────┘
//	└──────────────┘
//	┌──────────────────┐
//	│ RedisStateStore  │  optional state backend
//	└──────────────────┘
//
// Devices are seeded from the devices section of config.yaml at startup.
// Friendly names are matched case-insensitively; IEEE addresses are
// normalised to lower-case with a 0x prefix.
package device
