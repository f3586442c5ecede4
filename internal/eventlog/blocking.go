package eventlog

import (
	"context"
)

// WaitForAppend blocks until the log holds an entry with seq > after or ctx
// is done.
func (l *Log) WaitForAppend(ctx context.Context, after uint64) error {
	for {
		l.mu.Lock()
		last, ch := l.lastSeq, l.notifyCh
		l.mu.Unlock()
		if last > after {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
