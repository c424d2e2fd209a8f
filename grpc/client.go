package eegrpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/eeproxy"
)

// Compile-time interface check.
var _ eeproxy.Channel = (*Client)(nil)

// Client is the engine end of a Session stream.
type Client struct {
	streamChannel
	cc *grpc.ClientConn
}

// Dial connects to the service manager listening on the unix socket at
// path and opens the Session stream. The stream lives until Close;
// ctx only bounds stream setup.
func Dial(ctx context.Context, path string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(MessageCodec{}),
	))
	cc, err := grpc.NewClient("unix://"+path, opts...)
	if err != nil {
		return nil, fmt.Errorf("eegrpc: dial %s: %w", path, err)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	stream, err := cc.NewStream(streamCtx, &sessionStreamDesc, fullMethod("Session"), grpc.WaitForReady(true))
	if !stop() || err != nil {
		cancel()
		cc.Close()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("eegrpc: open session stream: %w", err)
	}

	c := &Client{cc: cc}
	c.stream = stream
	c.onClose = func() error {
		sendErr := stream.CloseSend()
		cancel()
		return errors.Join(sendErr, cc.Close())
	}
	return c, nil
}
