package eegrpc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"google.golang.org/grpc"

	"github.com/blockberries/eeproxy"
)

// Compile-time interface check.
var _ ServiceManagerServer = (*Server)(nil)

// AcceptFunc serves one engine. The stream ends when it returns.
type AcceptFunc func(ctx context.Context, ch eeproxy.Channel) error

// Server is the service manager side: every Session stream opened by
// an engine is handed to the accept function.
type Server struct {
	accept AcceptFunc
	gs     *grpc.Server
}

// NewServer creates a server that calls accept for every engine.
func NewServer(accept AcceptFunc, opts ...grpc.ServerOption) *Server {
	s := &Server{accept: accept, gs: grpc.NewServer(opts...)}
	RegisterServiceManagerServer(s.gs, s)
	return s
}

// Listen listens on the unix socket at path, removing a stale socket
// file first.
func Listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("eegrpc: remove stale socket %s: %w", path, err)
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("eegrpc: listen %s: %w", path, err)
	}
	return lis, nil
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	return s.gs.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.gs.GracefulStop()
}

// Session implements ServiceManagerServer. Closing the channel takes
// effect when the accept function returns.
func (s *Server) Session(stream grpc.ServerStream) error {
	ch := &streamChannel{stream: stream}
	return s.accept(stream.Context(), ch)
}
