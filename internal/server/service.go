package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "nupi.asr.v1.SpeechRecognitionService"

// Metadata keys read from the Recognize call.
const (
	MetadataMode     = "x-asr-mode"
	MetadataStreamID = "x-stream-id"
)

// SpeechRecognitionServer is the server API for the recognition service.
type SpeechRecognitionServer interface {
	// Recognize receives PCM16 chunks (an empty chunk requests a flush) and
	// streams back one message per recognition event.
	Recognize(RecognizeServer) error
}

// RecognizeServer is the server side of a Recognize stream.
type RecognizeServer interface {
	Send(*structpb.Struct) error
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ServerStream
}

type recognizeServer struct {
	grpc.ServerStream
}

func (x *recognizeServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *recognizeServer) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func recognizeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(SpeechRecognitionServer).Recognize(&recognizeServer{stream})
}

// ServiceDesc describes the recognition service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SpeechRecognitionServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Recognize",
			Handler:       recognizeHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "nupi/asr/v1/asr.proto",
}

// RegisterSpeechRecognitionServer registers srv on s.
func RegisterSpeechRecognitionServer(s grpc.ServiceRegistrar, srv SpeechRecognitionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// RecognizeClient is the client side of a Recognize stream.
type RecognizeClient interface {
	Send(*wrapperspb.BytesValue) error
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type recognizeClient struct {
	grpc.ClientStream
}

func (x *recognizeClient) Send(m *wrapperspb.BytesValue) error {
	return x.ClientStream.SendMsg(m)
}

func (x *recognizeClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Client calls the recognition service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Recognize opens a recognition stream.
func (c *Client) Recognize(ctx context.Context, opts ...grpc.CallOption) (RecognizeClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/Recognize", opts...)
	if err != nil {
		return nil, err
	}
	return &recognizeClient{stream}, nil
}
