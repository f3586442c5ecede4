package channelsvc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/taskboard/internal/channel"
	cfgpkg "github.com/rzbill/taskboard/internal/config"
	"github.com/rzbill/taskboard/internal/runtime"
)

func newServiceForTest(t *testing.T, mutate func(*cfgpkg.RelayConfig)) *Service {
	t.Helper()
	cfg := cfgpkg.Default().Relay
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return New(rt, nil)
}

type memSink struct {
	mu      sync.Mutex
	msgs    []channel.Message
	flushes int
	got     chan struct{}
}

func newMemSink() *memSink { return &memSink{got: make(chan struct{}, 256)} }

func (s *memSink) Send(m channel.Message) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

func (s *memSink) Flush() error {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
	return nil
}

func (s *memSink) wait(t *testing.T, n int) []channel.Message {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]channel.Message(nil), s.msgs...)
}

func msg(event, data string) channel.Message {
	return channel.Message{Channel: "board", Event: event, Sender: "p1", Data: json.RawMessage(data)}
}

func runSub(t *testing.T, sub *Subscription, sink Sink) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, sink) }()
	return func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("run returned %v", err)
		}
	}
}

func TestSubscribeStartsAtTail(t *testing.T) {
	svc := newServiceForTest(t, nil)
	ctx := context.Background()
	if _, err := svc.Publish(ctx, msg("new-task", `{"id":"old"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	sub, err := svc.Subscribe("board", "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.Position() != 1 {
		t.Fatalf("expected tail position 1, got %d", sub.Position())
	}
	sink := newMemSink()
	stop := runSub(t, sub, sink)
	defer stop()

	if _, err := svc.Publish(ctx, msg("new-task", `{"id":"new"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got := sink.wait(t, 1)
	if len(got) != 1 || string(got[0].Data) != `{"id":"new"}` {
		t.Fatalf("unexpected delivery: %+v", got)
	}
	if got[0].SentAt == 0 {
		t.Fatalf("relay did not stamp sentAt")
	}
}

func TestSubscribeFilter(t *testing.T) {
	svc := newServiceForTest(t, nil)
	sub, err := svc.Subscribe("board", `event == "update-task" && data.editing == false`)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sink := newMemSink()
	stop := runSub(t, sub, sink)
	defer stop()

	ctx := context.Background()
	_, _ = svc.Publish(ctx, msg("new-task", `{"id":"a","editing":false}`))
	_, _ = svc.Publish(ctx, msg("update-task", `{"id":"a","editing":true}`))
	_, _ = svc.Publish(ctx, msg("edit-task", `"a"`))
	_, _ = svc.Publish(ctx, msg("update-task", `{"id":"a","editing":false}`))
	got := sink.wait(t, 1)
	if got[0].Event != "update-task" || string(got[0].Data) != `{"id":"a","editing":false}` {
		t.Fatalf("filter passed wrong message: %+v", got[0])
	}
	select {
	case <-sink.got:
		t.Fatalf("filter passed extra message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeRejectsBadFilter(t *testing.T) {
	svc := newServiceForTest(t, nil)
	for _, expr := range []string{`event ==`, `"just a string"`} {
		_, err := svc.Subscribe("board", expr)
		var fe *FilterError
		if !errors.As(err, &fe) {
			t.Fatalf("%q: expected FilterError, got %v", expr, err)
		}
	}
	if _, err := svc.Subscribe("", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	svc := newServiceForTest(t, nil)
	ctx := context.Background()
	if _, err := svc.Publish(ctx, channel.Message{Event: "x"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("missing channel: %v", err)
	}
	if _, err := svc.Publish(ctx, channel.Message{Channel: "board"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("missing event: %v", err)
	}
	if _, err := svc.Publish(ctx, channel.Message{Channel: "a/e/b", Event: "x"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad channel name: %v", err)
	}
	if _, err := svc.Subscribe("has space", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad subscribe channel: %v", err)
	}
}

func TestPublishEnforcesPayloadLimit(t *testing.T) {
	svc := newServiceForTest(t, func(c *cfgpkg.RelayConfig) { c.PayloadMaxBytes = 16 })
	ctx := context.Background()
	if _, err := svc.Publish(ctx, msg("new-task", `{"id":"1"}`)); err != nil {
		t.Fatalf("small payload: %v", err)
	}
	if _, err := svc.Publish(ctx, msg("new-task", `{"id":"1","title":"much too long"}`)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("oversized payload: %v", err)
	}
	stats, _ := svc.Stats()
	if len(stats) != 1 || stats[0].PayloadMaxBytes != 16 || stats[0].LastSeq != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOrderPreserved(t *testing.T) {
	svc := newServiceForTest(t, func(c *cfgpkg.RelayConfig) { c.SubscribeBuffer = 3 })
	sub, _ := svc.Subscribe("board", "")
	sink := newMemSink()
	stop := runSub(t, sub, sink)
	defer stop()
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		b, _ := json.Marshal(i)
		_, _ = svc.Publish(ctx, msg("update-task", string(b)))
	}
	got := sink.wait(t, 20)
	for i, m := range got {
		var n int
		_ = json.Unmarshal(m.Data, &n)
		if n != i {
			t.Fatalf("out of order at %d: %d", i, n)
		}
	}
}

func TestRetentionAndStats(t *testing.T) {
	svc := newServiceForTest(t, func(c *cfgpkg.RelayConfig) { c.RetainEntries = 2 })
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = svc.Publish(ctx, msg("new-task", `{}`))
	}
	n, err := svc.TrimAll(ctx)
	if err != nil || n != 3 {
		t.Fatalf("trim = %d, %v", n, err)
	}
	stats, err := svc.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 || stats[0].FirstSeq != 4 || stats[0].LastSeq != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRunRetentionStops(t *testing.T) {
	svc := newServiceForTest(t, func(c *cfgpkg.RelayConfig) {
		c.RetainEntries = 1
		c.TrimInterval = 5 * time.Millisecond
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { svc.RunRetention(ctx); close(done) }()
	for i := 0; i < 3; i++ {
		_, _ = svc.Publish(context.Background(), msg("new-task", `{}`))
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		stats, _ := svc.Stats()
		if len(stats) == 1 && stats[0].FirstSeq == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("retention loop never trimmed: %+v", stats)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
