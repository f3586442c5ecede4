package replica

import (
	"fmt"

	"github.com/rzbill/taskboard/internal/task"
)

// Channel event names carried by the replication protocol.
const (
	EventCreate   = "new-task"
	EventUpdate   = "update-task"
	EventEditFlag = "edit-task"
)

// Events lists every event name a participant subscribes to.
var Events = []string{EventCreate, EventUpdate, EventEditFlag}

// Event is a decoded channel message.
type Event struct {
	Name string
	// Task is set for create and update events.
	Task task.Task
	// ID is set for edit-flag events.
	ID string
}

// ApplyCreate inserts t iff no entry with t.ID exists. Applying the same
// creation twice (optimistic apply plus echo) is a no-op the second time.
func ApplyCreate(c Collection, t task.Task) Collection {
	if t.ID == "" || c.Has(t.ID) {
		return c
	}
	return c.with(t)
}

// ApplyUpdate replaces the entry at t.ID with t, creating it when absent so
// that an update delivered before its creation is not lost.
func ApplyUpdate(c Collection, t task.Task) Collection {
	if t.ID == "" {
		return c
	}
	if cur, ok := c.Get(t.ID); ok && cur == t {
		return c
	}
	return c.with(t)
}

// ApplyEditFlag marks the entry at id as being edited. Unknown ids are a no-op.
func ApplyEditFlag(c Collection, id string) Collection {
	cur, ok := c.Get(id)
	if !ok || cur.Editing {
		return c
	}
	return c.with(cur.WithEditing(true))
}

// Apply dispatches ev to the matching apply function. Unknown event names
// leave the collection unchanged.
func Apply(c Collection, ev Event) Collection {
	switch ev.Name {
	case EventCreate:
		return ApplyCreate(c, ev.Task)
	case EventUpdate:
		return ApplyUpdate(c, ev.Task)
	case EventEditFlag:
		return ApplyEditFlag(c, ev.ID)
	default:
		return c
	}
}

// DecodeEvent parses a raw channel payload for the named event.
func DecodeEvent(name string, data []byte) (Event, error) {
	switch name {
	case EventCreate, EventUpdate:
		t, err := task.Decode(data)
		if err != nil {
			return Event{}, err
		}
		return Event{Name: name, Task: t}, nil
	case EventEditFlag:
		id, err := task.DecodeID(data)
		if err != nil {
			return Event{}, err
		}
		return Event{Name: name, ID: id}, nil
	default:
		return Event{}, fmt.Errorf("replica: unknown event %q", name)
	}
}

// EncodeEvent renders the channel payload for ev.
func EncodeEvent(ev Event) ([]byte, error) {
	switch ev.Name {
	case EventCreate, EventUpdate:
		return task.Encode(ev.Task)
	case EventEditFlag:
		return task.EncodeID(ev.ID)
	default:
		return nil, fmt.Errorf("replica: unknown event %q", ev.Name)
	}
}
