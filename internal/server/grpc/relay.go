package grpcserver

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rzbill/taskboard/internal/channel"
	"github.com/rzbill/taskboard/internal/relayapi"
	channelsvc "github.com/rzbill/taskboard/internal/services/channels"
	"github.com/rzbill/taskboard/pkg/log"
)

type relaySvc struct {
	svc    *channelsvc.Service
	logger log.Logger
}

func (s *relaySvc) Publish(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	msg, err := channel.FromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	seq, err := s.svc.Publish(ctx, msg)
	if err != nil {
		return nil, toStatus(err)
	}
	return relayapi.PublishResponse(seq), nil
}

type grpcSink struct {
	stream relayapi.SubscribeServer
}

func (g grpcSink) Send(m channel.Message) error { return g.stream.Send(channel.ToStruct(m)) }
func (g grpcSink) Flush() error                 { return nil }

func (s *relaySvc) Subscribe(req *structpb.Struct, stream relayapi.SubscribeServer) error {
	name, filter := relayapi.ParseSubscribeRequest(req)
	sub, err := s.svc.Subscribe(name, filter)
	if err != nil {
		return toStatus(err)
	}
	md := metadata.Pairs(relayapi.PositionHeader, strconv.FormatUint(sub.Position(), 10))
	if err := grpc.SendHeader(stream.Context(), md); err != nil {
		return err
	}
	s.logger.Debug("subscriber attached", log.Channel(name))
	err = sub.Run(stream.Context(), grpcSink{stream: stream})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return toStatus(err)
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var fe *channelsvc.FilterError
	switch {
	case errors.Is(err, channelsvc.ErrInvalidArgument), errors.As(err, &fe):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
