package runtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rzbill/taskboard/internal/channelmeta"
	cfgpkg "github.com/rzbill/taskboard/internal/config"
	"github.com/rzbill/taskboard/internal/eventlog"
	pebblestore "github.com/rzbill/taskboard/internal/storage/pebble"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.RelayConfig
}

// Runtime owns the relay's in-memory store and the per-channel logs opened
// on it.
type Runtime struct {
	db       *pebblestore.DB
	counters *pebblestore.Counters
	config   cfgpkg.RelayConfig

	mu   sync.Mutex
	logs map[string]*channelState
}

type channelState struct {
	log  *eventlog.Log
	meta channelmeta.Meta
}

// Open initializes the in-memory store and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	counters := &pebblestore.Counters{}
	db, err := pebblestore.Open(pebblestore.Options{InMemory: true, Metrics: counters})
	if err != nil {
		return nil, err
	}
	return &Runtime{
		db:       db,
		counters: counters,
		config:   opts.Config,
		logs:     make(map[string]*channelState),
	}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// OpenLog returns the log for channel, registering the channel on first
// use. Every caller shares one instance so appends wake all waiters. Names
// rejected by channelmeta.ValidateName return channelmeta.ErrInvalidName.
func (r *Runtime) OpenLog(channel string) (*eventlog.Log, error) {
	st, err := r.open(channel)
	if err != nil {
		return nil, err
	}
	return st.log, nil
}

// Meta returns the metadata of an opened channel.
func (r *Runtime) Meta(channel string) (channelmeta.Meta, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.logs[channel]
	if !ok {
		return channelmeta.Meta{}, false
	}
	return st.meta, true
}

func (r *Runtime) open(channel string) (*channelState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.logs[channel]; ok {
		return st, nil
	}
	meta, err := channelmeta.Ensure(r.db, channel, r.config.PayloadMaxBytes, time.Now)
	if err != nil {
		return nil, err
	}
	l, err := eventlog.OpenLog(r.db, channel)
	if err != nil {
		return nil, err
	}
	st := &channelState{log: l, meta: meta}
	r.logs[channel] = st
	return st, nil
}

// Channels lists the channels opened so far, sorted by name.
func (r *Runtime) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for name := range r.logs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Storage returns the store's counters.
func (r *Runtime) Storage() pebblestore.CounterSnapshot { return r.counters.Snapshot() }

// Config returns the relay configuration.
func (r *Runtime) Config() cfgpkg.RelayConfig { return r.config }
