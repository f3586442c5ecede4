package replica

import (
	"testing"

	"github.com/rzbill/taskboard/internal/task"
)

func mk(id string, created int64) task.Task {
	return task.Task{ID: id, Title: "t-" + id, Description: "d-" + id, CreatedAt: created}
}

func TestApplyCreateIdempotent(t *testing.T) {
	a := mk("a", 100)
	once := ApplyCreate(Collection{}, a)
	twice := ApplyCreate(once, a)
	if once.Len() != 1 || twice.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d and %d", once.Len(), twice.Len())
	}
	if !once.Equal(twice) {
		t.Fatalf("second create changed the collection")
	}
}

func TestApplyCreateDoesNotOverwrite(t *testing.T) {
	a := mk("a", 100)
	c := ApplyCreate(Collection{}, a)
	changed := a
	changed.Title = "other"
	c = ApplyCreate(c, changed)
	got, _ := c.Get("a")
	if got.Title != a.Title {
		t.Fatalf("create overwrote existing entry: %+v", got)
	}
}

func TestOptimisticPlusEchoDedup(t *testing.T) {
	a := mk("a", 100)
	c := ApplyCreate(Collection{}, a)               // optimistic
	c = Apply(c, Event{Name: EventCreate, Task: a}) // echo
	if c.Len() != 1 {
		t.Fatalf("expected exactly one entry, got %d", c.Len())
	}
}

func TestApplyUpdateFullReplace(t *testing.T) {
	a := mk("a", 100)
	a.Editing = true
	c := ApplyCreate(Collection{}, a)

	next := task.Task{ID: "a", Title: "new", Description: "", Editing: false, CreatedAt: 100}
	c = ApplyUpdate(c, next)
	got, _ := c.Get("a")
	if got != next {
		t.Fatalf("update was not a full replace: got %+v want %+v", got, next)
	}
}

func TestApplyUpdateCreatesWhenAbsent(t *testing.T) {
	a := mk("late", 50)
	c := ApplyUpdate(Collection{}, a)
	if got, ok := c.Get("late"); !ok || got != a {
		t.Fatalf("update before create was dropped: %+v %v", got, ok)
	}
	// a later create for the same id must not revert the update
	stale := a
	stale.Title = "older"
	c = ApplyCreate(c, stale)
	if got, _ := c.Get("late"); got.Title != a.Title {
		t.Fatalf("create reverted update: %+v", got)
	}
}

func TestApplyUpdateLastWriterWins(t *testing.T) {
	c := ApplyCreate(Collection{}, mk("a", 1))
	u1 := mk("a", 1)
	u1.Title = "from p1"
	u2 := mk("a", 1)
	u2.Description = "from p2"
	c = ApplyUpdate(ApplyUpdate(c, u1), u2)
	got, _ := c.Get("a")
	if got != u2 {
		t.Fatalf("expected last update to win entirely, got %+v", got)
	}
}

func TestApplyEditFlag(t *testing.T) {
	c := ApplyCreate(Collection{}, mk("a", 1))
	c = ApplyEditFlag(c, "a")
	if got, _ := c.Get("a"); !got.Editing {
		t.Fatalf("expected editing flag set")
	}
	before := c
	c = ApplyEditFlag(c, "missing")
	if !c.Equal(before) || c.Has("missing") {
		t.Fatalf("edit flag on unknown id must be a no-op")
	}
}

func TestApplyIsPure(t *testing.T) {
	base := ApplyCreate(Collection{}, mk("a", 1))
	_ = ApplyCreate(base, mk("b", 2))
	_ = ApplyUpdate(base, task.Task{ID: "a", Title: "x", CreatedAt: 1})
	_ = ApplyEditFlag(base, "a")
	if base.Len() != 1 {
		t.Fatalf("input collection grew to %d", base.Len())
	}
	if got, _ := base.Get("a"); got != mk("a", 1) {
		t.Fatalf("input collection mutated: %+v", got)
	}
}

func TestApplyUnknownEvent(t *testing.T) {
	base := ApplyCreate(Collection{}, mk("a", 1))
	if got := Apply(base, Event{Name: "delete-task", ID: "a"}); !got.Equal(base) {
		t.Fatalf("unknown event changed the collection")
	}
}

func TestSortedNewestFirstTiesById(t *testing.T) {
	c := Collection{}
	for _, x := range []task.Task{mk("b", 10), mk("a", 10), mk("c", 30), mk("d", 5)} {
		c = ApplyCreate(c, x)
	}
	var ids []string
	for _, x := range c.Sorted() {
		ids = append(ids, x.ID)
	}
	want := []string{"c", "a", "b", "d"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}

func TestEventRoundTrip(t *testing.T) {
	tests := []Event{
		{Name: EventCreate, Task: mk("a", 1)},
		{Name: EventUpdate, Task: mk("b", 2)},
		{Name: EventEditFlag, ID: "c"},
	}
	for _, ev := range tests {
		t.Run(ev.Name, func(t *testing.T) {
			b, err := EncodeEvent(ev)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := DecodeEvent(ev.Name, b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != ev {
				t.Fatalf("got %+v want %+v", got, ev)
			}
		})
	}
}

func TestDecodeEventRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{EventCreate, `{"title":"no id"}`},
		{EventUpdate, `not json`},
		{EventEditFlag, `{"id":"a"}`},
		{"other", `"a"`},
	}
	for _, tt := range tests {
		if _, err := DecodeEvent(tt.name, []byte(tt.data)); err == nil {
			t.Fatalf("%s %s: expected error", tt.name, tt.data)
		}
	}
}
