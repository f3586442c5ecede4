// Package relayapi declares the relay's gRPC surface: the
// taskboard.relay.v1.Relay service with google.protobuf.Struct messages, its
// server registration and a thin client.
//
// Messages:
//
//	Publish   request: envelope {channel, event, sender, sentAt, data}
//	          response: {seq}
//	Subscribe request: {channel, filter}
//	          stream:   envelopes
//
// The server sends response headers (PositionHeader) as soon as a
// subscription is pinned at the channel tail, so a client that waits for
// headers never misses a message published after that point.
package relayapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "taskboard.relay.v1.Relay"

// Full method names.
const (
	PublishMethod   = "/" + ServiceName + "/Publish"
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
)

// PositionHeader carries the tail sequence a subscription starts after.
const PositionHeader = "x-relay-position"

// RelayServer is implemented by the relay.
type RelayServer interface {
	Publish(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, SubscribeServer) error
}

// SubscribeServer is the server side of a Subscribe stream.
type SubscribeServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type subscribeServer struct{ grpc.ServerStream }

func (s *subscribeServer) Send(m *structpb.Struct) error { return s.ServerStream.SendMsg(m) }

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PublishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RelayServer).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RelayServer).Subscribe(in, &subscribeServer{stream})
}

// ServiceDesc describes the Relay service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "taskboard/relay/v1/relay.proto",
}

// RegisterRelayServer registers srv on s.
func RegisterRelayServer(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the Relay service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Publish sends one envelope.
func (c *Client) Publish(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PublishMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SubscribeClient is the client side of a Subscribe stream.
type SubscribeClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type subscribeClient struct{ grpc.ClientStream }

func (x *subscribeClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Subscribe opens a subscription stream.
func (c *Client) Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], SubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &subscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// SubscribeRequest builds the Subscribe request message.
func SubscribeRequest(channel, filter string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"channel": structpb.NewStringValue(channel),
		"filter":  structpb.NewStringValue(filter),
	}}
}

// ParseSubscribeRequest extracts the Subscribe request fields.
func ParseSubscribeRequest(s *structpb.Struct) (channel, filter string) {
	f := s.GetFields()
	return f["channel"].GetStringValue(), f["filter"].GetStringValue()
}

// PublishResponse builds the Publish response.
func PublishResponse(seq uint64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"seq": structpb.NewNumberValue(float64(seq)),
	}}
}

// ParsePublishResponse extracts the assigned sequence.
func ParsePublishResponse(s *structpb.Struct) uint64 {
	return uint64(s.GetFields()["seq"].GetNumberValue())
}
