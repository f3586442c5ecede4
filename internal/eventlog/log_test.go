package eventlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pebblestore "github.com/rzbill/taskboard/internal/storage/pebble"
)

func newTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{InMemory: true})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := OpenLog(newTestDB(t), "board")
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return l
}

func appendN(t *testing.T, l *Log, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := l.Append(context.Background(), []AppendRecord{{Header: []byte("h"), Payload: []byte(fmt.Sprintf("p%d", i))}}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func TestAppendAssignsSequential(t *testing.T) {
	l := newTestLog(t)
	seqs, err := l.Append(context.Background(), []AppendRecord{{Header: []byte("h1"), Payload: []byte("p1")}, {Header: []byte("h2"), Payload: []byte("p2")}})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Fatalf("unexpected seqs: %v", seqs)
	}
	if l.LastSeq() != 2 {
		t.Fatalf("last seq = %d", l.LastSeq())
	}
}

func TestSequenceRestoredFromMeta(t *testing.T) {
	db := newTestDB(t)
	l, _ := OpenLog(db, "board")
	_, _ = l.Append(context.Background(), []AppendRecord{{Payload: []byte("x")}})
	l2, err := OpenLog(db, "board")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if l2.LastSeq() != 1 {
		t.Fatalf("expected last seq 1, got %d", l2.LastSeq())
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	db := newTestDB(t)
	a, _ := OpenLog(db, "a")
	ab, _ := OpenLog(db, "ab")
	_, _ = a.Append(context.Background(), []AppendRecord{{Payload: []byte("in a")}})
	items, err := ab.Read(ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("channel ab saw entries of a: %+v", items)
	}
}

func TestReadAfterAndLimit(t *testing.T) {
	l := newTestLog(t)
	appendN(t, l, 5)
	items, err := l.Read(ReadOptions{After: 2, Limit: 2})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(items) != 2 || items[0].Seq != 3 || string(items[1].Payload) != "p3" {
		t.Fatalf("unexpected items: %+v", items)
	}
	all, _ := l.Read(ReadOptions{})
	if len(all) != 5 || string(all[0].Header) != "h" {
		t.Fatalf("expected 5 items, got %d", len(all))
	}
}

func TestWaitForAppend(t *testing.T) {
	l := newTestLog(t)
	appendN(t, l, 1)
	if err := l.WaitForAppend(context.Background(), 0); err != nil {
		t.Fatalf("wait with existing entry: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.WaitForAppend(context.Background(), 1) }()
	time.Sleep(20 * time.Millisecond)
	appendN(t, l, 1)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter not woken")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.WaitForAppend(ctx, l.LastSeq()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestTrimToLast(t *testing.T) {
	l := newTestLog(t)
	appendN(t, l, 10)
	n, err := l.TrimToLast(context.Background(), 3)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if n != 7 {
		t.Fatalf("trimmed %d, want 7", n)
	}
	first, _ := l.FirstSeq()
	if first != 8 {
		t.Fatalf("first retained = %d", first)
	}
	items, _ := l.Read(ReadOptions{After: 2})
	if len(items) != 3 || items[0].Seq != 8 {
		t.Fatalf("reader inside trimmed range: %+v", items)
	}
	if n, _ := l.TrimToLast(context.Background(), 3); n != 0 {
		t.Fatalf("second trim removed %d", n)
	}
	appendN(t, l, 1)
	if l.LastSeq() != 11 {
		t.Fatalf("sequence regressed after trim: %d", l.LastSeq())
	}
}

func TestRecordChecksum(t *testing.T) {
	b := EncodeRecord([]byte("hdr"), []byte("payload"))
	dec, ok := DecodeRecord(b)
	if !ok || string(dec.Header) != "hdr" || string(dec.Payload) != "payload" {
		t.Fatalf("roundtrip failed: %+v %v", dec, ok)
	}
	b[len(b)-5] ^= 0xff
	if _, ok := DecodeRecord(b); ok {
		t.Fatalf("corrupt record accepted")
	}
	if _, ok := DecodeRecord([]byte{1}); ok {
		t.Fatalf("short record accepted")
	}
}

func TestKeyOrdering(t *testing.T) {
	if string(KeyLogEntry("c", 255)) >= string(KeyLogEntry("c", 256)) {
		t.Fatalf("entry keys not ordered by seq")
	}
	if seqFromKey(KeyLogEntry("c", 42)) != 42 {
		t.Fatalf("seq not recoverable from key")
	}
}
