// Package relaychan carries board channels over the bundled relay's gRPC
// API. A handle holds one Subscribe stream; when that stream breaks the
// handle resubscribes with exponential backoff. Resubscription starts at the
// relay's current tail, so events published during the outage are missed.
package relaychan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rzbill/taskboard/internal/channel"
	"github.com/rzbill/taskboard/internal/relayapi"
	"github.com/rzbill/taskboard/pkg/log"
)

// Options configures a Transport.
type Options struct {
	// Filter is an optional CEL expression evaluated by the relay.
	Filter string
	// ReconnectMaxElapsed bounds resubscription attempts. Zero retries until
	// the handle is closed.
	ReconnectMaxElapsed time.Duration
	// ReconnectInitial is the first backoff interval.
	ReconnectInitial time.Duration
	Logger           log.Logger
	// DialOptions are appended to the defaults (insecure credentials).
	DialOptions []grpc.DialOption
}

// Transport implements channel.Transport against a relay.
type Transport struct {
	conn   *grpc.ClientConn
	client *relayapi.Client
	sender string
	opts   Options
	logger log.Logger
	now    func() time.Time
}

// Dial prepares a client for the relay at addr. The connection is
// established lazily by the first Connect.
func Dial(addr, sender string, opts Options) (*Transport, error) {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts.DialOptions...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("relaychan: dial %s: %w", addr, err)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 200 * time.Millisecond
	}
	return &Transport{
		conn:   conn,
		client: relayapi.NewClient(conn),
		sender: sender,
		opts:   opts,
		logger: opts.Logger.WithComponent("relaychan"),
		now:    time.Now,
	}, nil
}

// Close releases the client connection.
func (t *Transport) Close() error { return t.conn.Close() }

// Connect subscribes to channelID and returns once the relay has pinned the
// subscription. The initial subscribe is not retried.
func (t *Transport) Connect(ctx context.Context, channelID string) (channel.Handle, error) {
	hctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		t:       t,
		channel: channelID,
		ctx:     hctx,
		cancel:  cancel,
		logger:  t.logger.With(log.Channel(channelID)),
		done:    make(chan struct{}),
	}
	stream, err := h.subscribe(ctx)
	if err != nil {
		cancel()
		return nil, &channel.ConnectionError{Transport: "relay", Channel: channelID, Err: err}
	}
	go h.loop(stream)
	return h, nil
}

type handle struct {
	channel.Router
	t       *Transport
	channel string
	ctx     context.Context
	cancel  context.CancelFunc
	logger  log.Logger
	// streamCancel releases the current stream; only the loop goroutine
	// touches it after Connect returns.
	streamCancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

// subscribe opens a stream bound to the handle's lifetime and waits, at most
// until wait is done, for the relay's header.
func (h *handle) subscribe(wait context.Context) (relayapi.SubscribeClient, error) {
	sctx, scancel := context.WithCancel(h.ctx)
	type result struct {
		stream relayapi.SubscribeClient
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		stream, err := h.t.client.Subscribe(sctx, relayapi.SubscribeRequest(h.channel, h.t.opts.Filter))
		if err == nil {
			err = awaitPosition(stream)
		}
		ch <- result{stream, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			scancel()
			return nil, r.err
		}
		h.streamCancel = scancel
		return r.stream, nil
	case <-wait.Done():
		scancel()
		<-ch
		return nil, wait.Err()
	}
}

func (h *handle) loop(stream relayapi.SubscribeClient) {
	defer close(h.done)
	for {
		err := h.drain(stream)
		h.streamCancel()
		if h.ctx.Err() != nil {
			return
		}
		h.logger.Warn("subscription broken, reconnecting", log.Err(err))
		stream, err = h.resubscribe()
		if err != nil {
			if h.ctx.Err() == nil {
				h.logger.Error("giving up on subscription", log.Err(err))
			}
			return
		}
		h.logger.Info("subscription restored")
	}
}

// awaitPosition blocks until the relay acknowledges the subscription. A
// trailers-only response carries no position; its status is surfaced instead.
func awaitPosition(stream relayapi.SubscribeClient) error {
	md, err := stream.Header()
	if err != nil {
		return err
	}
	if len(md.Get(relayapi.PositionHeader)) > 0 {
		return nil
	}
	if _, err := stream.Recv(); err != nil {
		return err
	}
	return errors.New("relay did not acknowledge the subscription")
}

// drain delivers messages until the stream ends.
func (h *handle) drain(stream relayapi.SubscribeClient) error {
	for {
		env, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("relay closed the stream")
			}
			return err
		}
		msg, err := channel.FromStruct(env)
		if err != nil {
			h.logger.Warn("dropping undecodable envelope", log.Err(err))
			continue
		}
		h.Dispatch(msg)
	}
}

func (h *handle) resubscribe() (relayapi.SubscribeClient, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.t.opts.ReconnectInitial
	b.MaxElapsedTime = h.t.opts.ReconnectMaxElapsed
	policy := backoff.WithContext(b, h.ctx)

	var stream relayapi.SubscribeClient
	op := func() error {
		s, err := h.subscribe(h.ctx)
		if err != nil {
			if status.Code(err) == codes.InvalidArgument {
				return backoff.Permanent(err)
			}
			return err
		}
		stream = s
		return nil
	}
	notify := func(err error, next time.Duration) {
		h.logger.Debug("resubscribe failed", log.Err(err), log.Duration("retry_in", next))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return stream, nil
}

func (h *handle) Subscribe(event string, fn channel.Handler) { h.Add(event, fn) }

func (h *handle) Publish(ctx context.Context, event string, payload []byte) error {
	if h.ctx.Err() != nil {
		return channel.ErrClosed
	}
	env := channel.ToStruct(channel.Message{
		Channel: h.channel,
		Event:   event,
		Sender:  h.t.sender,
		SentAt:  h.t.now().UnixMilli(),
		Data:    payload,
	})
	if _, err := h.t.client.Publish(ctx, env); err != nil {
		return fmt.Errorf("relaychan: publish %s: %w", event, err)
	}
	return nil
}

func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		<-h.done
	})
	return nil
}
