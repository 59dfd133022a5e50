// Package device applies abstract commands to the e-stim box.
//
// # Architecture
//
//	┌───────────────┐   Dequeue   ┌──────────────────────────────────────┐
//	│ command.Queue │────────────▶│ Adapter.Run (single consumer)        │
//	└───────────────┘             │                                      │
//	        ▲                     │  Apply(cmd)                          │
//	        │ Drain + off         │   ├─ validate (ErrInvalidCommand)    │
//	        └─────────────────────│   ├─ Levels (max/norm/low/floor)     │
//	                              │   └─ Driver ──▶ ET232 │ Dweeb        │
//	                              │                                      │
//	                              │  I/O error ─▶ Reconnect (backoff)    │
//	                              └──────────────────────────────────────┘
//
// # Key Types
//
//   - Driver: transport for one backend (serial registers or networked JSON)
//   - Levels: per-channel max, derived tiers and the locked floor
//   - Adapter: validation, level bookkeeping, reconnect and the consumer loop
//
// # Error Handling
//
// Out-of-range levels, unknown modes and MA values outside the driver range
// return ErrInvalidCommand. The consumer logs and drops them. Any other Apply
// error is treated as an I/O failure: the adapter reconnects, drains the queue
// and enqueues a safety off before resuming.
//
// # Thread Safety
//
// Apply and Run belong to the consumer goroutine. Levels, RandomMA and
// Connected may be called from any goroutine.
package device
