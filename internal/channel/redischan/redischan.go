// Package redischan carries board channels over Redis pub/sub. Each board
// channel maps to one Redis channel; a handle holds one subscription
// connection, which Redis delivers in publish order.
package redischan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzbill/taskboard/internal/channel"
	"github.com/rzbill/taskboard/pkg/log"
)

// KeyPrefix namespaces board channels inside Redis.
const KeyPrefix = "taskboard:"

// Transport implements channel.Transport on a go-redis client.
type Transport struct {
	client *redis.Client
	owned  bool
	sender string
	logger log.Logger
	now    func() time.Time
}

// Dial parses a redis:// URL and returns a transport that owns its client.
func Dial(url, sender string, logger log.Logger) (*Transport, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redischan: parse url: %w", err)
	}
	t := New(redis.NewClient(opts), sender, logger)
	t.owned = true
	return t, nil
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client *redis.Client, sender string, logger log.Logger) *Transport {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Transport{
		client: client,
		sender: sender,
		logger: logger.WithComponent("redischan"),
		now:    time.Now,
	}
}

// Key returns the Redis channel name for a board channel.
func Key(channelID string) string { return KeyPrefix + channelID }

// Connect subscribes to channelID and waits for Redis to confirm.
func (t *Transport) Connect(ctx context.Context, channelID string) (channel.Handle, error) {
	fail := func(err error) error {
		return &channel.ConnectionError{Transport: "redis", Channel: channelID, Err: err}
	}
	if err := t.client.Ping(ctx).Err(); err != nil {
		return nil, fail(err)
	}
	ps := t.client.Subscribe(ctx, Key(channelID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fail(err)
	}
	h := &handle{
		t:       t,
		channel: channelID,
		ps:      ps,
		logger:  t.logger.With(log.Channel(channelID)),
		done:    make(chan struct{}),
	}
	go h.loop(ps.Channel())
	return h, nil
}

// Close releases the client when the transport created it.
func (t *Transport) Close() error {
	if t.owned {
		return t.client.Close()
	}
	return nil
}

type handle struct {
	channel.Router
	t       *Transport
	channel string
	ps      *redis.PubSub
	logger  log.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func (h *handle) Subscribe(event string, fn channel.Handler) { h.Add(event, fn) }

func (h *handle) Publish(ctx context.Context, event string, payload []byte) error {
	select {
	case <-h.done:
		return channel.ErrClosed
	default:
	}
	b, err := channel.Encode(channel.Message{
		Channel: h.channel,
		Event:   event,
		Sender:  h.t.sender,
		SentAt:  h.t.now().UnixMilli(),
		Data:    payload,
	})
	if err != nil {
		return err
	}
	if err := h.t.client.Publish(ctx, Key(h.channel), b).Err(); err != nil {
		return fmt.Errorf("redischan: publish %s: %w", event, err)
	}
	return nil
}

func (h *handle) loop(in <-chan *redis.Message) {
	defer close(h.done)
	for m := range in {
		msg, err := channel.Decode([]byte(m.Payload))
		if err != nil {
			h.logger.Warn("dropping undecodable envelope", log.Err(err))
			continue
		}
		h.Dispatch(msg)
	}
}

func (h *handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.ps.Close()
		<-h.done
	})
	return err
}
