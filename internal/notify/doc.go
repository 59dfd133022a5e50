// Package notify fans session status out to observers.
//
// The Notifier implements session.Notifier. Publish only enqueues; a single
// Run goroutine delivers each (field, value) delta to the WebSocket hub and
// mirrors it as a retained MQTT message, and on a ticker renders the
// session timer line from the controller's summary.
//
// Channels:
//
//	status  {"field": "<field>", "value": "<value>"}
//	timer   {"line": "<state> <elapsed>/<planned>s, <total>s total"}
//
// MQTT topics are surprise/status/{field} and surprise/status/timer.
package notify
