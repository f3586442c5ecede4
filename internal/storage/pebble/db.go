package pebblestore

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = pebble.ErrNotFound

// Options configures the store.
type Options struct {
	// InMemory keeps every file on a pebble in-memory filesystem. The relay
	// always sets it: channel state is not meant to survive a restart.
	InMemory bool
	// DataDir is the on-disk directory when InMemory is false. With InMemory
	// it names the root inside the in-memory filesystem.
	DataDir string
	// PebbleOptions allows advanced tuning. If nil, defaults are used.
	PebbleOptions *pebble.Options
	// Metrics observes read and commit sizes. Optional.
	Metrics MetricsHook
}

// MetricsHook is a minimal hook surface for storage observations.
type MetricsHook interface {
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRead(time.Duration, int)             {}
func (NoopMetrics) ObserveBatchCommit(time.Duration, int, int) {}

// Counters is a MetricsHook that accumulates totals for the stats endpoint.
type Counters struct {
	reads        atomic.Int64
	readBytes    atomic.Int64
	commits      atomic.Int64
	commitBytes  atomic.Int64
	commitMicros atomic.Int64
}

func (c *Counters) ObserveRead(_ time.Duration, bytes int) {
	c.reads.Add(1)
	c.readBytes.Add(int64(bytes))
}

func (c *Counters) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	c.commits.Add(1)
	c.commitBytes.Add(int64(bytes))
	c.commitMicros.Add(elapsed.Microseconds())
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Reads        int64 `json:"reads"`
	ReadBytes    int64 `json:"readBytes"`
	Commits      int64 `json:"commits"`
	CommitBytes  int64 `json:"commitBytes"`
	CommitMicros int64 `json:"commitMicros"`
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Reads:        c.reads.Load(),
		ReadBytes:    c.readBytes.Load(),
		Commits:      c.commits.Load(),
		CommitBytes:  c.commitBytes.Load(),
		CommitMicros: c.commitMicros.Load(),
	}
}

// DB wraps a Pebble database instance.
type DB struct {
	inner   *pebble.DB
	metrics MetricsHook
}

// Open creates a database with the provided options.
func Open(opts Options) (*DB, error) {
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	dir := opts.DataDir
	if opts.InMemory {
		po.FS = vfs.NewMem()
		if dir == "" {
			dir = "relay"
		}
	} else if dir == "" {
		return nil, errors.New("pebble: Options.DataDir is required on disk")
	}

	inner, err := pebble.Open(dir, po)
	if err != nil {
		return nil, err
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &DB{inner: inner, metrics: metrics}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// NewBatch creates a new batch for atomic multi-key updates.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch commits b. Writes are never synced: the store holds no
// durable state.
func (db *DB) CommitBatch(b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	start := time.Now()
	size := b.Len()
	ops := int(b.Count())
	err := b.Commit(pebble.NoSync)
	db.metrics.ObserveBatchCommit(time.Since(start), ops, size)
	return err
}

// Set writes a single key.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.CommitBatch(b)
}

// DeleteRange removes every key in [start, end).
func (db *DB) DeleteRange(start, end []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(start, end, nil); err != nil {
		return err
	}
	return db.CommitBatch(b)
}

// Get copies the value for the given key.
func (db *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	db.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// NewIter creates a raw Pebble iterator with the provided options.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}

// Compact requests compaction of [start, end) so trimmed ranges release
// memory.
func (db *DB) Compact(start, end []byte) error {
	return db.inner.Compact(start, end, true)
}
