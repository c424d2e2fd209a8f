package eegrpc

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/wire"
)

// msgStream is the subset of grpc.ClientStream and grpc.ServerStream a
// channel needs.
type msgStream interface {
	SendMsg(m any) error
	RecvMsg(m any) error
}

// streamChannel adapts a gRPC stream to eeproxy.Channel.
type streamChannel struct {
	stream msgStream
	closed atomic.Bool
	// onClose releases the stream. Called once.
	onClose func() error
}

func (c *streamChannel) Send(m *wire.Message) error {
	if c.closed.Load() {
		return eeproxy.ErrSessionClosed
	}
	if err := c.stream.SendMsg(m); err != nil {
		if c.closed.Load() || errors.Is(err, io.EOF) {
			return eeproxy.ErrSessionClosed
		}
		return fmt.Errorf("eegrpc: send %s: %w", m.Type, err)
	}
	return nil
}

func (c *streamChannel) Recv() (*wire.Message, error) {
	m := new(wire.Message)
	if err := c.stream.RecvMsg(m); err != nil {
		if errors.Is(err, io.EOF) || c.closed.Load() || status.Code(err) == codes.Canceled {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("eegrpc: recv: %w", err)
	}
	return m, nil
}

func (c *streamChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.onClose != nil {
		return c.onClose()
	}
	return nil
}
