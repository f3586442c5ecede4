// Package editsession tracks which tasks the local participant is editing and
// coalesces keystrokes into debounced update flushes.
package editsession

import (
	"errors"
	"sync"
	"time"

	"github.com/rzbill/taskboard/internal/task"
)

// DefaultDebounce is the quiet period after the last keystroke before the
// coalesced payload is flushed.
const DefaultDebounce = 600 * time.Millisecond

var (
	// ErrAlreadyEditing is returned by Begin for a task already in Editing.
	ErrAlreadyEditing = errors.New("editsession: already editing")
	// ErrNotEditing is returned by Keystroke, Save and Cancel outside Editing.
	ErrNotEditing = errors.New("editsession: not editing")
)

// State is the per-task session state.
type State int

const (
	Viewing State = iota
	Editing
)

func (s State) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	default:
		return "unknown"
	}
}

// FlushFunc receives the last coalesced payload once the debounce elapses.
type FlushFunc func(t task.Task)

// Options configures a Manager.
type Options struct {
	Debounce time.Duration
	Clock    Clock
	// Dispatch runs timer callbacks. The Board passes a function that posts
	// into its event loop; nil runs them on the timer goroutine, serialized
	// with the other methods by the manager's lock.
	Dispatch func(func())
}

type session struct {
	pending    *task.Task
	timer      Timer
	generation uint64
}

// Manager holds the Viewing/Editing state machine for every task. Methods
// are safe for concurrent use. The flush callback runs without the lock
// held.
type Manager struct {
	mu       sync.Mutex
	debounce time.Duration
	clock    Clock
	dispatch func(func())
	flush    FlushFunc
	sessions map[string]*session
	// gen is shared across sessions so a timer armed in an ended session
	// never matches one armed after a later Begin.
	gen    uint64
	closed bool
}

// NewManager builds a manager that hands debounced payloads to flush.
func NewManager(flush FlushFunc, opts Options) *Manager {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(f func()) { f() }
	}
	return &Manager{
		debounce: opts.Debounce,
		clock:    opts.Clock,
		dispatch: opts.Dispatch,
		flush:    flush,
		sessions: make(map[string]*session),
	}
}

// Begin moves id from Viewing to Editing.
func (m *Manager) Begin(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return ErrAlreadyEditing
	}
	m.sessions[id] = &session{}
	return nil
}

// Keystroke records t as the latest payload for t.ID and re-arms the
// debounce. Only the last payload before the quiet period is flushed.
func (m *Manager) Keystroke(t task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[t.ID]
	if !ok {
		return ErrNotEditing
	}
	if m.closed {
		return nil
	}
	t = t.WithEditing(true)
	s.pending = &t
	m.rearm(t.ID, s)
	return nil
}

func (m *Manager) rearm(id string, s *session) {
	if s.timer != nil {
		s.timer.Stop()
	}
	m.gen++
	s.generation = m.gen
	gen := s.generation
	s.timer = m.clock.AfterFunc(m.debounce, func() {
		m.dispatch(func() { m.fire(id, gen) })
	})
}

// fire runs through dispatch. A timer that lost a race with Stop carries an
// old generation and is ignored.
func (m *Manager) fire(id string, gen uint64) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || m.closed || s.generation != gen || s.pending == nil {
		m.mu.Unlock()
		return
	}
	payload := *s.pending
	s.pending = nil
	s.timer = nil
	m.mu.Unlock()
	m.flush(payload)
}

// Save cancels any pending flush and returns id to Viewing. The caller
// publishes the final state itself.
func (m *Manager) Save(id string) error {
	return m.end(id)
}

// Cancel abandons the session without a flush.
func (m *Manager) Cancel(id string) error {
	return m.end(id)
}

func (m *Manager) end(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotEditing
	}
	m.stop(s)
	delete(m.sessions, id)
	return nil
}

func (m *Manager) stop(s *session) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation = 0
	s.pending = nil
}

// State reports the session state for id.
func (m *Manager) State(id string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return Editing
	}
	return Viewing
}

// Pending returns the payload awaiting flush for id, if any.
func (m *Manager) Pending(id string) (task.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.pending == nil {
		return task.Task{}, false
	}
	return *s.pending, true
}

// Editing lists the ids currently in Editing.
func (m *Manager) Editing() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// Close stops every timer. Pending payloads are dropped.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, s := range m.sessions {
		m.stop(s)
	}
}
