package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by operations on a closed handle.
var ErrClosed = errors.New("channel: handle closed")

// Message is the envelope every transport carries.
type Message struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Sender  string          `json:"sender"`
	SentAt  int64           `json:"sentAt"`
	Data    json.RawMessage `json:"data"`
}

// Handler is invoked once per delivered message, in delivery order.
type Handler func(msg Message)

// Transport opens channel handles.
type Transport interface {
	// Connect joins channelID. Failures are returned as *ConnectionError.
	Connect(ctx context.Context, channelID string) (Handle, error)
}

// Handle is a live membership in one channel.
type Handle interface {
	// Subscribe registers h for event. Handlers must be registered before
	// messages for that event are expected; there is no replay.
	Subscribe(event string, h Handler)
	// Publish sends payload under event. Delivery is best-effort.
	Publish(ctx context.Context, event string, payload []byte) error
	// Close leaves the channel and stops delivery.
	Close() error
}

// ConnectionError reports that a transport could not establish a channel.
type ConnectionError struct {
	Transport string
	Channel   string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("channel: %s connect %q: %v", e.Transport, e.Channel, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Encode renders the JSON envelope.
func Encode(m Message) ([]byte, error) {
	if len(m.Data) == 0 {
		m.Data = json.RawMessage("null")
	}
	return json.Marshal(m)
}

// Decode parses a JSON envelope.
func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("channel: decode envelope: %w", err)
	}
	if m.Event == "" {
		return Message{}, errors.New("channel: envelope has no event")
	}
	return m, nil
}

// Router fans a message out to the handlers registered for its event.
// Transports embed one per handle.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// Add registers h for event.
func (r *Router) Add(event string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[string][]Handler)
	}
	r.handlers[event] = append(r.handlers[event], h)
}

// Dispatch invokes the handlers for msg.Event and reports how many ran.
func (r *Router) Dispatch(msg Message) int {
	r.mu.RLock()
	hs := r.handlers[msg.Event]
	r.mu.RUnlock()
	for _, h := range hs {
		h(msg)
	}
	return len(hs)
}
