// Package converters holds the device definitions and key converters used to
// turn MQTT message keys into Zigbee cluster commands.
//
// A Model lists the Zigbee model IDs it covers, how topic qualifiers such as
// "left" map to endpoints, and one Converter per accepted key. The Catalog
// looks definitions up by the model ID a device reports; extra IDs can be
// mapped onto existing definitions from a YAML alias file.
//
//	catalog := converters.DefaultCatalog()
//	model, ok := catalog.FindByZigbeeModel("LWB010")
//	conv, ok := model.FindConverter("brightness")
//	cmd, ok := conv.Convert(200.0, msg, converters.KindSet)
//
// Converters return false instead of an error when a value does not map to a
// command; callers skip the key.
package converters
