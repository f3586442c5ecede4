package eventlog

import (
	"context"
)

// TrimToLast deletes all but the newest keep entries and returns how many
// were removed. Readers positioned inside the trimmed range continue from
// the oldest retained entry.
func (l *Log) TrimToLast(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	first, err := l.FirstSeq()
	if err != nil || first == 0 {
		return 0, err
	}
	last := l.LastSeq()
	if last < first || last-first+1 <= uint64(keep) {
		return 0, nil
	}
	cut := last - uint64(keep) + 1 // first retained seq
	start, end := KeyLogEntry(l.channel, first), KeyLogEntry(l.channel, cut)
	if err := l.db.DeleteRange(start, end); err != nil {
		return 0, err
	}
	return int(cut - first), nil
}
