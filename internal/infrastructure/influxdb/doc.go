// Package influxdb records Zigbee command telemetry in InfluxDB v2.
//
// Each completed command becomes one point in the zigbee_commands
// measurement, tagged with device, key, cluster and result, carrying the
// send duration in milliseconds:
//
//	zigbee_commands,cluster=genOnOff,device=kitchen/ceiling,key=state,result=success duration_ms=12.4
//
// Writes are non-blocking and batched; failures are reported through the
// callback set with SetOnError.
package influxdb
