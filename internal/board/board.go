// Package board implements a participant session on a shared task board.
//
// A Board owns one replica of the collection and one edit-session manager.
// Both are confined to a single goroutine; actions, delivered channel
// messages and debounce timers are posted to its inbox and run in order.
package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/taskboard/internal/channel"
	"github.com/rzbill/taskboard/internal/editsession"
	"github.com/rzbill/taskboard/internal/replica"
	"github.com/rzbill/taskboard/internal/task"
	"github.com/rzbill/taskboard/pkg/id"
	"github.com/rzbill/taskboard/pkg/log"
)

var (
	// ErrDisconnected is returned by actions before a successful Join.
	ErrDisconnected = errors.New("board: not connected to a channel")
	// ErrUnknownTask is returned for an id not in the local collection.
	ErrUnknownTask = errors.New("board: unknown task")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("board: closed")
	// ErrNoGenerator is returned by draft actions when none is configured.
	ErrNoGenerator = errors.New("board: no draft generator configured")
	// ErrAlreadyJoined is returned by a second Join.
	ErrAlreadyJoined = errors.New("board: already joined")
)

// Generator produces drafts and rewrites. *draft.Generator satisfies it.
type Generator interface {
	RequestDraft(ctx context.Context, prompt string) (task.Task, error)
	RequestRewrite(ctx context.Context, existing task.Task) (task.Task, error)
}

// Options tunes a Board. Zero values select production defaults.
type Options struct {
	Debounce time.Duration
	Clock    editsession.Clock
	IDs      task.IDSource
	Now      task.Clock
	// InboxSize bounds queued work for the event loop.
	InboxSize int
}

// Board is one participant's view of a channel.
type Board struct {
	participant string
	transport   channel.Transport
	generator   Generator
	ids         task.IDSource
	now         task.Clock
	logger      log.Logger

	inbox   chan func()
	done    chan struct{}
	stopped chan struct{}
	// bg scopes publishes that no caller waits on (debounce flushes).
	bg        context.Context
	bgCancel  context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	view atomic.Pointer[replica.Collection]

	// owned by the loop
	coll      replica.Collection
	sessions  *editsession.Manager
	handle    channel.Handle
	channelID string
	observers []func([]task.Task)
	// committed holds, per open edit session, the record as every other
	// participant last saw it. Cancel rolls back to it.
	committed map[string]task.Task
}

// New creates a Board for participant and starts its event loop. gen may be
// nil, in which case draft actions return ErrNoGenerator.
func New(participant string, transport channel.Transport, gen Generator, logger log.Logger, opts Options) *Board {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if opts.IDs == nil {
		opts.IDs = id.NewGenerator()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	bg, cancel := context.WithCancel(context.Background())
	b := &Board{
		participant: participant,
		transport:   transport,
		generator:   gen,
		ids:         opts.IDs,
		now:         opts.Now,
		logger:      logger.WithComponent("board").With(log.Participant(participant)),
		inbox:       make(chan func(), opts.InboxSize),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		bg:          bg,
		bgCancel:    cancel,
		committed:   make(map[string]task.Task),
	}
	b.sessions = editsession.NewManager(b.flush, editsession.Options{
		Debounce: opts.Debounce,
		Clock:    opts.Clock,
		Dispatch: b.post,
	})
	b.view.Store(&replica.Collection{})
	go b.run()
	return b
}

// Participant returns the identity this board publishes as.
func (b *Board) Participant() string { return b.participant }

func (b *Board) run() {
	defer close(b.stopped)
	for {
		select {
		case fn := <-b.inbox:
			fn()
		case <-b.done:
			b.sessions.Close()
			return
		}
	}
}

// post queues fn without waiting. It is dropped after Close.
func (b *Board) post(fn func()) {
	select {
	case b.inbox <- fn:
	case <-b.done:
	}
}

// do runs fn on the loop and waits for its result.
func (b *Board) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	select {
	case b.inbox <- func() { result <- fn() }:
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-b.stopped:
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

// connected runs fn on the loop after checking the session is joined.
func (b *Board) connected(ctx context.Context, fn func() error) error {
	return b.do(ctx, func() error {
		if b.handle == nil {
			return ErrDisconnected
		}
		return fn()
	})
}

// OnChange registers fn to receive the display-ordered collection after
// every mutation. fn runs on the event loop and must not call back into
// the Board synchronously.
func (b *Board) OnChange(fn func([]task.Task)) {
	b.post(func() { b.observers = append(b.observers, fn) })
}

// mutate installs next as the current collection and notifies observers.
func (b *Board) mutate(next replica.Collection) {
	if next.Equal(b.coll) {
		return
	}
	b.coll = next
	b.view.Store(&next)
	if len(b.observers) == 0 {
		return
	}
	snap := next.Sorted()
	for _, fn := range b.observers {
		fn(snap)
	}
}

// Close stops pending debounce timers and the event loop, then closes the
// channel handle. Unflushed keystrokes are discarded.
func (b *Board) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		<-b.stopped
		b.bgCancel()
		if b.handle != nil {
			b.closeErr = b.handle.Close()
		}
		b.logger.Debug("board closed")
	})
	return b.closeErr
}
