package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ChatServiceName   = "gophchat.v1.Chat"
	ChatConnectMethod = "/" + ChatServiceName + "/Connect"
)

// ChatServer is the server API for the Chat service. Frames are
// google.protobuf.Struct values carrying the {event, data} envelope.
type ChatServer interface {
	Connect(stream ChatConnectServer) error
}

type ChatConnectServer interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

type chatConnectServer struct {
	grpc.ServerStream
}

func (x *chatConnectServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *chatConnectServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func chatConnectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServer).Connect(&chatConnectServer{stream})
}

// ChatServiceDesc describes gophchat.v1.Chat for grpc.Server.RegisterService.
var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       chatConnectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "gophchat/v1/chat.proto",
}

func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

// ChatConnectClient is the client side of a Connect stream.
type ChatConnectClient interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type chatConnectClient struct {
	grpc.ClientStream
}

func (x *chatConnectClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *chatConnectClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Connect opens a chat stream on cc.
func Connect(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (ChatConnectClient, error) {
	stream, err := cc.NewStream(ctx, &ChatServiceDesc.Streams[0], ChatConnectMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &chatConnectClient{stream}, nil
}
