package eventlog

import (
	"github.com/cockroachdb/pebble"
)

// ReadOptions selects a forward range of entries.
type ReadOptions struct {
	// After is exclusive; zero reads from the oldest retained entry.
	After uint64
	Limit int
}

// Item is a decoded entry.
type Item struct {
	Seq     uint64
	Header  []byte
	Payload []byte
}

// Read returns up to Limit entries with seq > After in ascending order.
// Entries that fail their checksum are skipped.
func (l *Log) Read(opts ReadOptions) ([]Item, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: KeyLogEntry(l.channel, opts.After+1),
		UpperBound: append(KeyLogEntry(l.channel, ^uint64(0)), 0x00),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var items []Item
	for ok := iter.First(); ok && (opts.Limit <= 0 || len(items) < opts.Limit); ok = iter.Next() {
		dec, valid := DecodeRecord(iter.Value())
		if !valid {
			continue
		}
		items = append(items, Item{Seq: seqFromKey(iter.Key()), Header: dec.Header, Payload: dec.Payload})
	}
	return items, iter.Error()
}

// FirstSeq returns the oldest retained sequence, or 0 when empty.
func (l *Log) FirstSeq() (uint64, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: KeyLogEntry(l.channel, 0),
		UpperBound: append(KeyLogEntry(l.channel, ^uint64(0)), 0x00),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.First() {
		return 0, iter.Error()
	}
	return seqFromKey(iter.Key()), nil
}
