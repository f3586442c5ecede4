// Package eventlog implements the relay's append-only per-channel log.
//
// # Overview
//
// Entries live in Pebble under lexicographically ordered keys:
//   - ch/{channel}/m              (metadata: lastSeq)
//   - ch/{channel}/e/{seq_be8}    (entries)
//
// Records are stored as: varint headerLen | header | payload | crc32c(header|payload).
//
//	l, _ := OpenLog(db, "board")
//	seqs, _ := l.Append(ctx, []AppendRecord{{Header: h, Payload: p}})
//
//	// Forward reads after an exclusive sequence
//	items, _ := l.Read(ReadOptions{After: seqs[0] - 1, Limit: 100})
//
//	// Block until something newer than a known sequence arrives
//	_ = l.WaitForAppend(ctx, l.LastSeq())
//
//	// Retention by entry count
//	_, _ = l.TrimToLast(ctx, 1024)
package eventlog
