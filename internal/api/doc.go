// Package api implements the operator HTTP API and WebSocket server.
//
// This package provides:
//   - REST endpoints for session status, operator actions and history
//   - WebSocket hub for live status and timer updates
//   - Prometheus exposition on /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support
//
// # Endpoints
//
//	GET  /api/v1/health
//	GET  /api/v1/status
//	POST /api/v1/actions/{action}
//	GET  /api/v1/sessions
//	GET  /api/v1/sessions/{id}
//	GET  /api/v1/metrics
//	GET  /api/v1/ws
//	GET  /metrics
//
// # WebSocket
//
// Clients send {"type":"subscribe","payload":{"channels":["status","timer"]}}.
// Subscribing to status replays the latest value of every status field so a
// fresh display is complete without waiting for the next change.
//
// # Graceful Degradation
//
// History, MQTT and Prometheus are optional. Without history the sessions
// endpoints answer 503; everything else keeps working.
package api
