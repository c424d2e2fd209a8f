package eegrpc

import (
	"fmt"

	"google.golang.org/grpc"
)

const serviceName = "eeproxy.v1.ServiceManager"

// ServiceManagerServer is the server-side interface for the service
// manager gRPC service. Session serves one engine for the lifetime of
// the stream.
type ServiceManagerServer interface {
	Session(grpc.ServerStream) error
}

// RegisterServiceManagerServer registers srv on a gRPC server.
func RegisterServiceManagerServer(s *grpc.Server, srv ServiceManagerServer) {
	s.RegisterService(&serviceDesc, srv)
}

func handlerSession(srv any, stream grpc.ServerStream) error {
	return srv.(ServiceManagerServer).Session(stream)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// sessionStreamDesc describes the bidirectional Session stream.
var sessionStreamDesc = grpc.StreamDesc{
	StreamName:    "Session",
	Handler:       handlerSession,
	ServerStreams: true,
	ClientStreams: true,
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ServiceManagerServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams:     []grpc.StreamDesc{sessionStreamDesc},
	Metadata:    "eeproxy/v1/service.cram",
}
