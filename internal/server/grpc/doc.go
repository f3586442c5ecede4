// Package grpcserver hosts the relay's gRPC surface: the
// taskboard.relay.v1.Relay service and the standard grpc.health.v1 service,
// delegating to the shared channel service.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: cfg.Relay})
//	s := grpcserver.New(rt, channelsvc.New(rt, logger), logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50061")
package grpcserver
