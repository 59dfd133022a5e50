// Package influxdb provides InfluxDB connectivity for session telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// # Measurements
//
//	session_interval   tags: state, teased   fields: seconds, terms
//	session_summary    tags: forced, locked  fields: on_seconds, off_seconds, intervals, duration_seconds
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteInterval(influxdb.IntervalPoint{State: "Off", Seconds: 45, Terms: 2, At: time.Now()})
//
// # Error Handling
//
// Write failures are delivered asynchronously to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
