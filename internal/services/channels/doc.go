// Package channelsvc implements the relay's channel facade on top of the
// internal event log. It provides publish, tail-positioned subscriptions with
// CEL filters, retention and stats, consumed by the gRPC and HTTP transports.
//
// Example:
//
//	svc := channelsvc.New(rt, logger)
//	_, _ = svc.Publish(ctx, channel.Message{Channel: "board", Event: "new-task", Data: payload})
//
//	sub, _ := svc.Subscribe("board", `event == "update-task" && data.editing == false`)
//	_ = sub.Run(ctx, mySink)
package channelsvc
