package task

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type seqIDs struct{ n int }

func (s *seqIDs) NextString() string { s.n++; return fmt.Sprintf("id-%d", s.n) }

func fixedClock(ms int64) Clock { return func() time.Time { return time.UnixMilli(ms) } }

func TestNewAssignsIdentityAndTimestamp(t *testing.T) {
	ids := &seqIDs{}
	a, err := New("Write spec", "Draft v1", ids, fixedClock(1700))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := New("Review", "Read it", ids, fixedClock(1800))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.CreatedAt != 1700 || a.Editing {
		t.Fatalf("unexpected task: %+v", a)
	}
}

func TestNewRejectsBlankFields(t *testing.T) {
	tests := []struct{ title, desc string }{
		{"", "d"},
		{"t", ""},
		{"   ", "d"},
		{"t", "\n\t"},
	}
	for _, tt := range tests {
		if _, err := New(tt.title, tt.desc, &seqIDs{}, nil); !errors.Is(err, ErrEmptyField) {
			t.Fatalf("New(%q,%q) err = %v, want ErrEmptyField", tt.title, tt.desc, err)
		}
	}
}

func TestWithField(t *testing.T) {
	orig := Task{ID: "x", Title: "a", Description: "b"}
	got, err := orig.WithField(FieldTitle, "A")
	if err != nil || got.Title != "A" || got.Description != "b" {
		t.Fatalf("title change: %+v %v", got, err)
	}
	if orig.Title != "a" {
		t.Fatalf("original mutated")
	}
	got, err = orig.WithField(FieldDescription, "B")
	if err != nil || got.Description != "B" {
		t.Fatalf("description change: %+v %v", got, err)
	}
	if _, err := orig.WithField("owner", "z"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestWireShape(t *testing.T) {
	in := Task{ID: "t1", Title: "Write spec", Description: "Draft v1", Editing: true, CreatedAt: 1700000000000}
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"id":"t1","title":"Write spec","description":"Draft v1","editing":true,"createdAt":1700000000000}`
	if string(b) != want {
		t.Fatalf("wire shape:\n got %s\nwant %s", b, want)
	}
	out, err := Decode(b)
	if err != nil || out != in {
		t.Fatalf("decode: %+v %v", out, err)
	}
}

func TestDecodeRejectsMissingID(t *testing.T) {
	if _, err := Decode([]byte(`{"title":"x"}`)); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if _, err := Decode([]byte(`{"id":`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestIDPayload(t *testing.T) {
	b, err := EncodeID("t1")
	if err != nil || string(b) != `"t1"` {
		t.Fatalf("encode id: %s %v", b, err)
	}
	id, err := DecodeID(b)
	if err != nil || id != "t1" {
		t.Fatalf("decode id: %q %v", id, err)
	}
	if _, err := DecodeID([]byte(`""`)); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID")
	}
}
