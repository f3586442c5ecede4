// Package channelmeta keeps per-channel metadata for the relay and decides
// which channel names are acceptable.
package channelmeta

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pebblestore "github.com/rzbill/taskboard/internal/storage/pebble"
)

// MaxNameLen bounds channel names.
const MaxNameLen = 128

// ErrInvalidName is returned for names that cannot be used as a channel.
var ErrInvalidName = errors.New("channelmeta: invalid channel name")

// Meta holds channel metadata and limits.
type Meta struct {
	Name            string `json:"name"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	PayloadMaxBytes int    `json:"payloadMaxBytes"`
}

// Defaults returns the limits applied to new channels.
func Defaults() Meta {
	return Meta{PayloadMaxBytes: 64 << 10}
}

var metaPrefix = []byte("chmeta/")

func metaKey(name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(name))
	k = append(k, metaPrefix...)
	k = append(k, name...)
	return k
}

// ValidateName accepts 1..MaxNameLen characters from [A-Za-z0-9._:-]. The
// event log embeds names in keys, so separators such as '/' are refused.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return fmt.Errorf("%w: length must be 1..%d", ErrInvalidName, MaxNameLen)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == ':', c == '-':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, c)
		}
	}
	return nil
}

// Ensure creates the channel's meta record if absent and returns the
// effective meta. Idempotent: an existing record is returned unchanged.
// A zero payloadMax selects Defaults().
func Ensure(db *pebblestore.DB, name string, payloadMax int, now func() time.Time) (Meta, error) {
	if err := ValidateName(name); err != nil {
		return Meta{}, err
	}
	key := metaKey(name)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// fallthrough to rewrite if corrupted
	}
	m := Defaults()
	if payloadMax > 0 {
		m.PayloadMaxBytes = payloadMax
	}
	if now == nil {
		now = time.Now
	}
	m.Name = name
	m.CreatedAtMs = now().UnixMilli()
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, b); err != nil {
		return Meta{}, err
	}
	return m, nil
}
