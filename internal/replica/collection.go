package replica

import (
	"sort"

	"github.com/rzbill/taskboard/internal/task"
)

// Collection is an immutable id → Task view. The zero value is empty and
// ready to use.
type Collection struct {
	items map[string]task.Task
}

// Get returns the task stored under id.
func (c Collection) Get(id string) (task.Task, bool) {
	t, ok := c.items[id]
	return t, ok
}

// Has reports whether id is present.
func (c Collection) Has(id string) bool {
	_, ok := c.items[id]
	return ok
}

// Len returns the number of tasks.
func (c Collection) Len() int { return len(c.items) }

// Sorted returns the display order: newest createdAt first, ties broken by
// id so every participant renders the same order.
func (c Collection) Sorted() []task.Task {
	out := make([]task.Task, 0, len(c.items))
	for _, t := range c.items {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Equal reports whether both collections hold the same tasks by value.
func (c Collection) Equal(other Collection) bool {
	if len(c.items) != len(other.items) {
		return false
	}
	for id, t := range c.items {
		o, ok := other.items[id]
		if !ok || o != t {
			return false
		}
	}
	return true
}

// with returns a copy of c where id maps to t.
func (c Collection) with(t task.Task) Collection {
	next := make(map[string]task.Task, len(c.items)+1)
	for k, v := range c.items {
		next[k] = v
	}
	next[t.ID] = t
	return Collection{items: next}
}
