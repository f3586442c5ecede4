package id

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func resetClock() { NowMs = func() int64 { return time.Now().UnixMilli() } }

func TestOrderingMonotonic(t *testing.T) {
	g := NewGenerator()
	NowMs = func() int64 { return 1000 }
	defer resetClock()

	a := g.Next()
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a<b")
	}
}

func TestClockRegressionGuard(t *testing.T) {
	g := NewGenerator()
	seq := int64(1000)
	NowMs = func() int64 { return seq }
	defer resetClock()

	a := g.Next()
	seq = 900
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected b>a despite clock regression")
	}
	if b.Millis() != 1000 {
		t.Fatalf("expected pinned ms 1000, got %d", b.Millis())
	}
}

func TestSequenceOverflowWaitsNextMs(t *testing.T) {
	g := NewGenerator()
	var now atomic.Int64
	now.Store(2000)
	NowMs = now.Load
	defer resetClock()

	g.lastMs = 2000
	g.sequence = maxSequence - 1

	_ = g.Next()

	done := make(chan ID)
	go func() { done <- g.Next() }()

	time.AfterFunc(10*time.Millisecond, func() { now.Store(2001) })

	select {
	case id := <-done:
		if id.Millis() != 2001 {
			t.Fatalf("expected rollover to 2001, got %d", id.Millis())
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for overflow handling")
	}
}

func TestDistinctGeneratorsDoNotCollide(t *testing.T) {
	NowMs = func() int64 { return 5000 }
	defer resetClock()

	a, b := NewGenerator(), NewGenerator()
	seen := map[ID]struct{}{}
	for i := 0; i < 100; i++ {
		for _, g := range []*Generator{a, b} {
			id := g.Next()
			if _, dup := seen[id]; dup {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = struct{}{}
		}
	}
}

func TestStringIsUUIDv7(t *testing.T) {
	g := NewGenerator()
	s := g.NextString()
	u, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("version: %d", u.Version())
	}
	if u.Variant() != uuid.RFC4122 {
		t.Fatalf("variant: %v", u.Variant())
	}
	back, err := Parse(s)
	if err != nil || back.String() != s {
		t.Fatalf("round trip: %v %s", err, back)
	}
}
