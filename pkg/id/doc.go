// Package id provides 128-bit, lexicographically sortable identifiers for
// tasks.
//
// # Format
//
// IDs are UUIDv7-compatible: 48 bits of Unix milliseconds, a 12-bit
// per-millisecond sequence and 62 random node bits chosen once per
// Generator. Byte-wise comparison preserves creation order within one
// generator, and the node bits keep IDs minted concurrently by different
// participants apart.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next ID.
//
// Usage
//
//	g := id.NewGenerator()
//	newID := g.Next()
//	s := newID.String()  // canonical UUID text
package id
