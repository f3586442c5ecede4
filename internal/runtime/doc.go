// Package runtime owns the relay's storage: an in-memory Pebble instance and
// one shared event log per channel.
//
//	rt, _ := runtime.Open(runtime.Options{Config: cfg.Relay})
//	defer rt.Close()
//	log, _ := rt.OpenLog("board")
//	_, _ = log.Append(ctx, []eventlog.AppendRecord{{Payload: []byte("hello")}})
package runtime
