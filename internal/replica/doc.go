// Package replica is the replication engine: pure functions that fold task
// events into a participant's Local Collection.
//
// Every function takes the current Collection and an incoming payload and
// returns the next Collection; inputs are never modified. Events are applied
// in delivery order with no version vectors or sequence numbers, so under
// concurrent updates the last processed update wins, and an update replaces
// the whole task (no per-field merge).
//
//	c := replica.Collection{}
//	c = replica.ApplyCreate(c, t)       // insert iff id absent
//	c = replica.ApplyCreate(c, t)       // echo: no-op
//	c = replica.ApplyUpdate(c, t2)      // full replace, upsert
//	c = replica.ApplyEditFlag(c, t.ID)  // editing=true, no-op if absent
//	for _, t := range c.Sorted() { ... } // newest first
package replica
