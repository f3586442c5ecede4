// Package serverrun exposes the Run entrypoint used by the CLI to start the
// relay: an in-memory event log served over gRPC and HTTP, with a retention
// loop trimming each channel.
//
// Example:
//
//	cfg := config.Default()
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun
