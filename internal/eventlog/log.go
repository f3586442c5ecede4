package eventlog

import (
	"context"
	"encoding/binary"
	"sync"

	pebblestore "github.com/rzbill/taskboard/internal/storage/pebble"
)

// AppendRecord represents a single appendable event.
type AppendRecord struct {
	Header  []byte
	Payload []byte
}

// Log provides append-only operations for one channel. A Log must be opened
// once per channel and shared; waiters are tracked on the instance.
type Log struct {
	db      *pebblestore.DB
	channel string

	mu       sync.Mutex
	lastSeq  uint64
	notifyCh chan struct{}
}

// OpenLog initializes a Log and loads the last sequence from metadata (if any).
func OpenLog(db *pebblestore.DB, channel string) (*Log, error) {
	l := &Log{db: db, channel: channel, notifyCh: make(chan struct{})}
	meta, err := db.Get(KeyLogMeta(channel))
	switch {
	case err == nil && len(meta) >= 8:
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	case err != nil && err != pebblestore.ErrNotFound:
		return nil, err
	}
	return l, nil
}

// Channel returns the channel name.
func (l *Log) Channel() string { return l.channel }

// LastSeq returns the sequence of the newest entry, or 0 when empty.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Append appends the provided records as a single atomic batch. Returns assigned seq numbers.
func (l *Log) Append(ctx context.Context, recs []AppendRecord) ([]uint64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	next := l.lastSeq
	seqs := make([]uint64, len(recs))
	for i, r := range recs {
		next++
		if err := b.Set(KeyLogEntry(l.channel, next), EncodeRecord(r.Header, r.Payload), nil); err != nil {
			return nil, err
		}
		seqs[i] = next
	}

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], next)
	if err := b.Set(KeyLogMeta(l.channel), meta[:], nil); err != nil {
		return nil, err
	}
	if err := l.db.CommitBatch(b); err != nil {
		return nil, err
	}
	l.lastSeq = next

	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	return seqs, nil
}
