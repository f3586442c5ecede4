package channelsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rzbill/taskboard/internal/channel"
	"github.com/rzbill/taskboard/internal/channelmeta"
	"github.com/rzbill/taskboard/internal/eventlog"
	"github.com/rzbill/taskboard/internal/runtime"
	"github.com/rzbill/taskboard/pkg/log"
)

const defaultReadBatch = 128

// ErrInvalidArgument marks requests the relay rejects before touching state.
var ErrInvalidArgument = errors.New("channelsvc: invalid argument")

// FilterError reports a subscription filter that does not compile.
type FilterError struct {
	Expr   string
	Reason string
	Err    error
}

func (e *FilterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channelsvc: filter %q: %v", e.Expr, e.Err)
	}
	return fmt.Sprintf("channelsvc: filter %q: %s", e.Expr, e.Reason)
}

func (e *FilterError) Unwrap() error { return e.Err }

// Service is the relay's channel facade over the per-channel event logs.
type Service struct {
	rt     *runtime.Runtime
	logger log.Logger
	now    func() time.Time
	active atomic.Int64
}

// New returns a service bound to rt.
func New(rt *runtime.Runtime, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Service{rt: rt, logger: logger.WithComponent("channels"), now: time.Now}
}

// Publish appends msg to its channel and returns the assigned sequence.
// A zero SentAt is stamped with the relay clock.
func (s *Service) Publish(ctx context.Context, msg channel.Message) (uint64, error) {
	if strings.TrimSpace(msg.Channel) == "" {
		return 0, fmt.Errorf("%w: channel is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(msg.Event) == "" {
		return 0, fmt.Errorf("%w: event is required", ErrInvalidArgument)
	}
	if msg.SentAt == 0 {
		msg.SentAt = s.now().UnixMilli()
	}
	l, err := s.openLog(msg.Channel)
	if err != nil {
		return 0, err
	}
	if meta, ok := s.rt.Meta(msg.Channel); ok && meta.PayloadMaxBytes > 0 && len(msg.Data) > meta.PayloadMaxBytes {
		return 0, fmt.Errorf("%w: data is %d bytes, channel allows %d", ErrInvalidArgument, len(msg.Data), meta.PayloadMaxBytes)
	}
	payload, err := channel.Encode(msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	seqs, err := l.Append(ctx, []eventlog.AppendRecord{{Header: []byte(msg.Event), Payload: payload}})
	if err != nil {
		return 0, err
	}
	return seqs[0], nil
}

func (s *Service) openLog(name string) (*eventlog.Log, error) {
	l, err := s.rt.OpenLog(name)
	if errors.Is(err, channelmeta.ErrInvalidName) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return l, err
}

// Sink is implemented by transports to receive streamed messages.
type Sink interface {
	Send(channel.Message) error
	Flush() error
}

// Subscription is a positioned reader on one channel. It starts at the tail
// captured by Subscribe: nothing published earlier is delivered.
type Subscription struct {
	svc    *Service
	log    *eventlog.Log
	filter celFilter
	after  uint64
	batch  int
	logger log.Logger
}

// Subscribe validates the request and pins the starting position. Callers
// may acknowledge the subscription to their client before calling Run.
func (s *Service) Subscribe(channelName, filter string) (*Subscription, error) {
	if strings.TrimSpace(channelName) == "" {
		return nil, fmt.Errorf("%w: channel is required", ErrInvalidArgument)
	}
	f, err := newCELFilter(filter)
	if err != nil {
		var fe *FilterError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FilterError{Expr: filter, Err: err}
	}
	l, err := s.openLog(channelName)
	if err != nil {
		return nil, err
	}
	batch := s.rt.Config().SubscribeBuffer
	if batch <= 0 {
		batch = defaultReadBatch
	}
	return &Subscription{
		svc:    s,
		log:    l,
		filter: f,
		after:  l.LastSeq(),
		batch:  batch,
		logger: s.logger.With(log.Channel(channelName)),
	}, nil
}

// Position returns the last sequence the subscription has consumed.
func (sub *Subscription) Position() uint64 { return sub.after }

// Run streams messages to sink until ctx is done or the sink fails.
func (sub *Subscription) Run(ctx context.Context, sink Sink) error {
	sub.svc.active.Add(1)
	defer sub.svc.active.Add(-1)
	for {
		items, err := sub.log.Read(eventlog.ReadOptions{After: sub.after, Limit: sub.batch})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			if err := sub.log.WaitForAppend(ctx, sub.after); err != nil {
				return err
			}
			continue
		}
		sent := 0
		for _, it := range items {
			sub.after = it.Seq
			msg, err := channel.Decode(it.Payload)
			if err != nil {
				sub.logger.Warn("skipping undecodable entry", log.Int64("seq", int64(it.Seq)), log.Err(err))
				continue
			}
			if !sub.filter.Eval(msg) {
				continue
			}
			if err := sink.Send(msg); err != nil {
				return err
			}
			sent++
		}
		if sent > 0 {
			if err := sink.Flush(); err != nil {
				return err
			}
		}
	}
}

// ActiveSubscribers returns the number of running subscriptions.
func (s *Service) ActiveSubscribers() int64 { return s.active.Load() }

// ChannelStats describes one channel's retained range.
type ChannelStats struct {
	Name            string `json:"name"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	PayloadMaxBytes int    `json:"payloadMaxBytes"`
	FirstSeq        uint64 `json:"firstSeq"`
	LastSeq         uint64 `json:"lastSeq"`
}

// Stats lists every open channel.
func (s *Service) Stats() ([]ChannelStats, error) {
	names := s.rt.Channels()
	out := make([]ChannelStats, 0, len(names))
	for _, name := range names {
		l, err := s.rt.OpenLog(name)
		if err != nil {
			return nil, err
		}
		first, err := l.FirstSeq()
		if err != nil {
			return nil, err
		}
		meta, _ := s.rt.Meta(name)
		out = append(out, ChannelStats{
			Name:            name,
			CreatedAtMs:     meta.CreatedAtMs,
			PayloadMaxBytes: meta.PayloadMaxBytes,
			FirstSeq:        first,
			LastSeq:         l.LastSeq(),
		})
	}
	return out, nil
}

// TrimAll applies retention to every open channel and returns the number of
// entries removed.
func (s *Service) TrimAll(ctx context.Context) (int, error) {
	keep := s.rt.Config().RetainEntries
	if keep <= 0 {
		return 0, nil
	}
	total := 0
	for _, name := range s.rt.Channels() {
		l, err := s.rt.OpenLog(name)
		if err != nil {
			return total, err
		}
		n, err := l.TrimToLast(ctx, keep)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// RunRetention trims every TrimInterval until ctx is done.
func (s *Service) RunRetention(ctx context.Context) {
	interval := s.rt.Config().TrimInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.TrimAll(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("retention trim failed", log.Err(err))
				continue
			}
			if n > 0 {
				s.logger.Debug("retention trimmed entries", log.Int("count", n))
			}
		}
	}
}
