package board

import (
	"context"
	"errors"
	"strings"

	"github.com/rzbill/taskboard/internal/editsession"
	"github.com/rzbill/taskboard/internal/replica"
	"github.com/rzbill/taskboard/internal/task"
	"github.com/rzbill/taskboard/pkg/log"
)

// Create adds a task and publishes it. Blank input is ignored: ok is false
// and err is nil.
func (b *Board) Create(ctx context.Context, title, description string) (t task.Task, ok bool, err error) {
	err = b.connected(ctx, func() error {
		nt, err := task.New(title, description, b.ids, b.now)
		if errors.Is(err, task.ErrEmptyField) {
			b.logger.Debug("ignoring create with blank fields")
			return nil
		}
		if err != nil {
			return err
		}
		b.insert(ctx, nt)
		t, ok = nt, true
		return nil
	})
	return t, ok, err
}

func (b *Board) insert(ctx context.Context, t task.Task) {
	b.mutate(replica.ApplyCreate(b.coll, t))
	b.publish(ctx, replica.Event{Name: replica.EventCreate, Task: t})
}

// BeginEdit opens an edit session on id and broadcasts the editing flag.
// The flag is advisory: a record already flagged by someone else can still
// be edited.
func (b *Board) BeginEdit(ctx context.Context, id string) error {
	return b.connected(ctx, func() error {
		cur, ok := b.coll.Get(id)
		if !ok {
			return ErrUnknownTask
		}
		if err := b.sessions.Begin(id); err != nil {
			return err
		}
		if cur.Editing {
			b.logger.Warn("task already flagged as being edited", log.Str("task", id))
		}
		b.committed[id] = cur
		b.publish(ctx, replica.Event{Name: replica.EventEditFlag, ID: id})
		b.mutate(replica.ApplyEditFlag(b.coll, id))
		return nil
	})
}

// Change replaces one field locally and schedules a debounced update.
func (b *Board) Change(ctx context.Context, id, field, value string) error {
	return b.connected(ctx, func() error {
		cur, ok := b.coll.Get(id)
		if !ok {
			return ErrUnknownTask
		}
		if b.sessions.State(id) != editsession.Editing {
			return editsession.ErrNotEditing
		}
		next, err := cur.WithField(field, value)
		if err != nil {
			return err
		}
		next = next.WithEditing(true)
		b.mutate(replica.ApplyUpdate(b.coll, next))
		return b.sessions.Keystroke(next)
	})
}

// flush is the debounce callback; it runs on the loop.
func (b *Board) flush(t task.Task) {
	if b.handle == nil {
		return
	}
	b.logger.Debug("flushing debounced edit", log.Str("task", t.ID))
	b.committed[t.ID] = t
	b.publish(b.bg, replica.Event{Name: replica.EventUpdate, Task: t})
}

// Save ends the edit session and publishes the final record with the
// editing flag cleared, without waiting for the debounce.
func (b *Board) Save(ctx context.Context, id string) error {
	return b.connected(ctx, func() error {
		cur, ok := b.coll.Get(id)
		if !ok {
			return ErrUnknownTask
		}
		if err := b.sessions.Save(id); err != nil {
			return err
		}
		delete(b.committed, id)
		final := cur.WithEditing(false)
		b.publish(ctx, replica.Event{Name: replica.EventUpdate, Task: final})
		b.mutate(replica.ApplyUpdate(b.coll, final))
		return nil
	})
}

// Cancel ends the edit session and drops unflushed keystrokes. The record
// rolls back to the last version other participants received and is
// republished with the editing flag cleared.
func (b *Board) Cancel(ctx context.Context, id string) error {
	return b.connected(ctx, func() error {
		if err := b.sessions.Cancel(id); err != nil {
			return err
		}
		base, ok := b.committed[id]
		delete(b.committed, id)
		if !ok {
			return nil
		}
		final := base.WithEditing(false)
		b.publish(ctx, replica.Event{Name: replica.EventUpdate, Task: final})
		b.mutate(replica.ApplyUpdate(b.coll, final))
		return nil
	})
}

// GenerateDraft asks the generator for a task and creates it. A blank
// prompt is a no-op returning the zero Task. Generation failures leave the
// board untouched.
func (b *Board) GenerateDraft(ctx context.Context, prompt string) (task.Task, error) {
	if strings.TrimSpace(prompt) == "" {
		b.logger.Debug("ignoring blank draft prompt")
		return task.Task{}, nil
	}
	if b.generator == nil {
		return task.Task{}, ErrNoGenerator
	}
	if err := b.connected(ctx, func() error { return nil }); err != nil {
		return task.Task{}, err
	}
	t, err := b.generator.RequestDraft(ctx, prompt)
	if err != nil {
		b.logger.Warn("draft generation failed", log.Err(err))
		return task.Task{}, err
	}
	err = b.connected(ctx, func() error {
		b.insert(ctx, t)
		return nil
	})
	return t, err
}

// Rewrite replaces the title and description of id with a generated,
// more formal version and publishes the result.
func (b *Board) Rewrite(ctx context.Context, id string) (task.Task, error) {
	if b.generator == nil {
		return task.Task{}, ErrNoGenerator
	}
	var cur task.Task
	err := b.connected(ctx, func() error {
		var ok bool
		if cur, ok = b.coll.Get(id); !ok {
			return ErrUnknownTask
		}
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}
	t, err := b.generator.RequestRewrite(ctx, cur)
	if err != nil {
		b.logger.Warn("rewrite failed", log.Str("task", id), log.Err(err))
		return task.Task{}, err
	}
	err = b.connected(ctx, func() error {
		b.mutate(replica.ApplyUpdate(b.coll, t))
		b.publish(ctx, replica.Event{Name: replica.EventUpdate, Task: t})
		return nil
	})
	return t, err
}

// Snapshot returns the collection in display order.
func (b *Board) Snapshot() []task.Task {
	return b.view.Load().Sorted()
}

// Get returns the local copy of id.
func (b *Board) Get(id string) (task.Task, bool) {
	return b.view.Load().Get(id)
}

// EditState reports whether this participant has an open edit session on
// id. It returns Viewing once the board is closed.
func (b *Board) EditState(id string) editsession.State {
	state := editsession.Viewing
	_ = b.do(context.Background(), func() error {
		state = b.sessions.State(id)
		return nil
	})
	return state
}
