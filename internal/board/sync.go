package board

import (
	"context"
	"errors"

	"github.com/rzbill/taskboard/internal/channel"
	"github.com/rzbill/taskboard/internal/replica"
	"github.com/rzbill/taskboard/pkg/log"
)

// Join connects to channelID and subscribes to the task events. On failure
// the *channel.ConnectionError is returned and the board stays disconnected.
func (b *Board) Join(ctx context.Context, channelID string) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	if err := b.do(ctx, func() error {
		if b.handle != nil {
			return ErrAlreadyJoined
		}
		return nil
	}); err != nil {
		return err
	}

	logger := b.logger.With(log.Channel(channelID))
	h, err := b.transport.Connect(ctx, channelID)
	if err != nil {
		var ce *channel.ConnectionError
		if !errors.As(err, &ce) {
			err = &channel.ConnectionError{Transport: "unknown", Channel: channelID, Err: err}
		}
		logger.Error("channel connect failed", log.Err(err))
		return err
	}
	for _, name := range replica.Events {
		h.Subscribe(name, b.receive)
	}

	err = b.do(ctx, func() error {
		if b.handle != nil {
			return ErrAlreadyJoined
		}
		b.handle = h
		b.channelID = channelID
		return nil
	})
	if err != nil {
		_ = h.Close()
		return err
	}
	logger.Info("joined channel")
	return nil
}

// Channel returns the joined channel id, or "" before Join.
func (b *Board) Channel() string {
	var ch string
	_ = b.do(context.Background(), func() error {
		ch = b.channelID
		return nil
	})
	return ch
}

// receive is the channel handler. It runs on the transport's delivery
// goroutine and only hands the message to the loop.
func (b *Board) receive(msg channel.Message) {
	b.post(func() { b.applyRemote(msg) })
}

func (b *Board) applyRemote(msg channel.Message) {
	ev, err := replica.DecodeEvent(msg.Event, msg.Data)
	if err != nil {
		b.logger.Warn("dropping undecodable event",
			log.Str("event", msg.Event), log.Str("sender", msg.Sender), log.Err(err))
		return
	}
	if ev.Name == replica.EventUpdate && msg.Sender == b.participant {
		// A flush echo is older than keystrokes still waiting on the timer.
		if _, pending := b.sessions.Pending(ev.Task.ID); pending {
			b.logger.Debug("skipping own update echo during edit", log.Str("task", ev.Task.ID))
			return
		}
	}
	if ev.Name == replica.EventUpdate {
		if _, editing := b.committed[ev.Task.ID]; editing {
			b.committed[ev.Task.ID] = ev.Task
		}
	}
	b.mutate(replica.Apply(b.coll, ev))
}

func (b *Board) publish(ctx context.Context, ev replica.Event) {
	data, err := replica.EncodeEvent(ev)
	if err != nil {
		b.logger.Error("encode event", log.Str("event", ev.Name), log.Err(err))
		return
	}
	if err := b.handle.Publish(ctx, ev.Name, data); err != nil {
		b.logger.Warn("publish failed", log.Str("event", ev.Name), log.Err(err))
	}
}
