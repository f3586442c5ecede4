// Package task defines the replicated task record, its creation and
// field-level mutation rules, and its wire shape.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Field names accepted by WithField.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
)

var (
	// ErrEmptyField is returned when a required text field is blank. Board
	// callers treat it as a silent validation failure.
	ErrEmptyField = errors.New("task: title and description are required")
	// ErrUnknownField is returned by WithField for anything but title/description.
	ErrUnknownField = errors.New("task: unknown field")
	// ErrMissingID is returned when a decoded payload carries no id.
	ErrMissingID = errors.New("task: payload has no id")
)

// Task is the replicated entity. It is a value type: every mutation helper
// returns a modified copy.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Editing     bool   `json:"editing"`
	CreatedAt   int64  `json:"createdAt"`
}

// IDSource mints collision-resistant identifiers.
type IDSource interface {
	NextString() string
}

// Clock returns the current time. time.Now satisfies it.
type Clock func() time.Time

// New assigns a fresh id and creation timestamp. Title and description must
// be non-blank.
func New(title, description string, ids IDSource, now Clock) (Task, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" {
		return Task{}, ErrEmptyField
	}
	if now == nil {
		now = time.Now
	}
	return Task{
		ID:          ids.NextString(),
		Title:       title,
		Description: description,
		Editing:     false,
		CreatedAt:   now().UnixMilli(),
	}, nil
}

// WithField returns a copy with title or description replaced.
func (t Task) WithField(field, value string) (Task, error) {
	switch field {
	case FieldTitle:
		t.Title = value
	case FieldDescription:
		t.Description = value
	default:
		return t, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return t, nil
}

// WithEditing returns a copy with the advisory editing flag set to editing.
func (t Task) WithEditing(editing bool) Task {
	t.Editing = editing
	return t
}

// Encode renders the wire shape.
func Encode(t Task) ([]byte, error) {
	return json.Marshal(t)
}

// Decode parses the wire shape. Missing text fields decode as empty strings;
// a missing id is rejected because id is the sole merge key.
func Decode(b []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(b, &t); err != nil {
		return Task{}, fmt.Errorf("task: decode: %w", err)
	}
	if t.ID == "" {
		return Task{}, ErrMissingID
	}
	return t, nil
}

// EncodeID renders an edit-flag payload: the bare id as a JSON string.
func EncodeID(id string) ([]byte, error) {
	return json.Marshal(id)
}

// DecodeID parses an edit-flag payload.
func DecodeID(b []byte) (string, error) {
	var id string
	if err := json.Unmarshal(b, &id); err != nil {
		return "", fmt.Errorf("task: decode id: %w", err)
	}
	if id == "" {
		return "", ErrMissingID
	}
	return id, nil
}
