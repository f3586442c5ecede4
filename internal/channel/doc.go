// Package channel is the seam between a board participant and the pub/sub
// transport that carries task events.
//
// A Transport connects to a named channel and returns a Handle. Handlers are
// registered per event name; Publish is fire-and-forget with no
// acknowledgement. Every transport delivers the sender's own messages back to
// it and preserves per-sender order.
//
// Transports:
//   - Hub: in-process fan-out, used by tests and single-process demos.
//   - redischan: Redis pub/sub.
//   - relaychan: the bundled relay over gRPC.
//
// All transports carry the same Message envelope:
//
//	{"channel":"board","event":"new-task","sender":"p1","sentAt":1700000000000,"data":{...}}
package channel
