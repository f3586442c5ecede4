package channel

import (
	"context"
	"sync"
	"time"
)

// Hub is an in-process Transport. Each handle owns an ordered queue drained
// by one goroutine, so publishers never block on slow handlers and every
// subscriber sees messages in publish order.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[*hubHandle]struct{}
	now      func() time.Time
	closed   bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*hubHandle]struct{}), now: time.Now}
}

// Participant returns a Transport that stamps messages with sender.
func (h *Hub) Participant(sender string) Transport {
	return hubTransport{hub: h, sender: sender}
}

// Subscribers returns the number of open handles on channelID.
func (h *Hub) Subscribers(channelID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channelID])
}

// Close closes every open handle and rejects further connects.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*hubHandle
	for _, set := range h.channels {
		for hh := range set {
			all = append(all, hh)
		}
	}
	h.mu.Unlock()
	for _, hh := range all {
		_ = hh.Close()
	}
}

type hubTransport struct {
	hub    *Hub
	sender string
}

func (t hubTransport) Connect(ctx context.Context, channelID string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectionError{Transport: "memory", Channel: channelID, Err: err}
	}
	h := t.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, &ConnectionError{Transport: "memory", Channel: channelID, Err: ErrClosed}
	}
	hh := &hubHandle{hub: h, channel: channelID, sender: t.sender, done: make(chan struct{})}
	hh.cond = sync.NewCond(&hh.mu)
	set := h.channels[channelID]
	if set == nil {
		set = make(map[*hubHandle]struct{})
		h.channels[channelID] = set
	}
	set[hh] = struct{}{}
	go hh.loop()
	return hh, nil
}

type hubHandle struct {
	Router
	hub     *Hub
	channel string
	sender  string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Message
	closed bool
	done   chan struct{}
}

func (hh *hubHandle) Subscribe(event string, h Handler) { hh.Add(event, h) }

func (hh *hubHandle) Publish(ctx context.Context, event string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := Message{
		Channel: hh.channel,
		Event:   event,
		Sender:  hh.sender,
		SentAt:  hh.hub.now().UnixMilli(),
		Data:    append([]byte(nil), payload...),
	}
	hh.mu.Lock()
	closed := hh.closed
	hh.mu.Unlock()
	if closed {
		return ErrClosed
	}

	h := hh.hub
	h.mu.Lock()
	targets := make([]*hubHandle, 0, len(h.channels[hh.channel]))
	for peer := range h.channels[hh.channel] {
		targets = append(targets, peer)
	}
	// enqueue under the hub lock so concurrent publishers are observed in
	// the same order by every subscriber
	for _, peer := range targets {
		peer.enqueue(msg)
	}
	h.mu.Unlock()
	return nil
}

func (hh *hubHandle) enqueue(msg Message) {
	hh.mu.Lock()
	if !hh.closed {
		hh.queue = append(hh.queue, msg)
		hh.cond.Signal()
	}
	hh.mu.Unlock()
}

func (hh *hubHandle) loop() {
	defer close(hh.done)
	for {
		hh.mu.Lock()
		for len(hh.queue) == 0 && !hh.closed {
			hh.cond.Wait()
		}
		if hh.closed {
			hh.mu.Unlock()
			return
		}
		msg := hh.queue[0]
		hh.queue = hh.queue[1:]
		hh.mu.Unlock()
		hh.Dispatch(msg)
	}
}

// Close waits for in-flight delivery to finish. It must not be called from
// a Handler.
func (hh *hubHandle) Close() error {
	hh.mu.Lock()
	if hh.closed {
		hh.mu.Unlock()
		return nil
	}
	hh.closed = true
	hh.queue = nil
	hh.cond.Broadcast()
	hh.mu.Unlock()

	h := hh.hub
	h.mu.Lock()
	if set := h.channels[hh.channel]; set != nil {
		delete(set, hh)
		if len(set) == 0 {
			delete(h.channels, hh.channel)
		}
	}
	h.mu.Unlock()
	<-hh.done
	return nil
}
