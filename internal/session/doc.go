// Package session implements the Surprise session controller: the state
// machine that decides when the device turns on and off, at what power and
// in which mode, and how sessions start, end and fail safe.
//
// # States
//
//	        activate              start / failsafe          delay
//	Idle ──────────────▶ Waiting ──────────────────▶ Starting ─────▶ On ◀──▶ Off
//	 ▲ │ toggle                                                       │       │
//	 │ ▼                                                              │       │
//	IdleOn (A → B → AB → A)                                           │       │
//	 ▲                                                                ▼       ▼
//	 └──────────────────────── EndSession (reset, forced) ◀───────────────────┘
//
// # Timers
//
// Every timer is tagged with a kind (primary, failsafe, session-max,
// secondary, keepalive) and captures a generation token when armed. The
// callback takes the controller lock and returns without effect if the
// token no longer matches, so a timer that fires after its state has been
// left cannot act on the new state. Stopping a timer is therefore only an
// optimisation.
//
// # Collaborators
//
// The controller never performs device I/O. It enqueues abstract commands
// (see package command) and notifies observers through non-blocking
// interfaces. All mutator methods are safe to call concurrently from timer
// callbacks, HTTP handlers, MQTT handlers and the clicker reader.
package session
