// Package eeproxy defines the engine side of the execution-engine
// protocol: the Handler an engine implements, the Proxy it uses to
// reach back into the service manager during an invocation, and the
// Channel both ends exchange messages over.
//
// The protocol is strictly sequential. The manager sends one Invoke at
// a time; while the handler runs, every Proxy call is a nested
// request/reply on the same channel, and the invocation ends with
// exactly one Result.
package eeproxy

import (
	"context"
	"math/big"

	"github.com/blockberries/eeproxy/types"
	"github.com/blockberries/eeproxy/wire"
)

// Proxy is the engine's view of the manager during one invocation.
// It is only valid until the handler returns.
type Proxy interface {
	// GetValue reads key from the state store. Absent keys report
	// exists=false with an empty value.
	GetValue(ctx context.Context, key []byte) (exists bool, value []byte, err error)

	// SetValue writes key. There is no reply; the write is visible to
	// subsequent GetValue calls in the same invocation.
	SetValue(ctx context.Context, key, value []byte) error

	// DeleteValue removes key.
	DeleteValue(ctx context.Context, key []byte) error

	// GetInfo returns the manager's invocation metadata, decoded
	// through the session's codec registry (normally a map[string]any
	// keyed by the types.Info* constants).
	GetInfo(ctx context.Context) (any, error)

	// GetBalance returns the balance of addr.
	GetBalance(ctx context.Context, addr types.Address) (*big.Int, error)

	// SendEvent emits an event. Every element must be encodable by the
	// session's registry; otherwise nothing is sent.
	SendEvent(ctx context.Context, indexed, data []any) error

	// Log forwards a log line to the manager.
	Log(ctx context.Context, level types.LogLevel, msg string) error
}

// Handler runs invocations. Invoke is called once per request, never
// concurrently on the same session.
//
// A returned error becomes a failed result: a *StatusError keeps its
// status, anything else is mapped by StatusOf.
type Handler interface {
	Invoke(ctx context.Context, p Proxy, req types.InvokeRequest) (types.InvokeResult, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, p Proxy, req types.InvokeRequest) (types.InvokeResult, error)

func (f HandlerFunc) Invoke(ctx context.Context, p Proxy, req types.InvokeRequest) (types.InvokeResult, error) {
	return f(ctx, p, req)
}

// Channel is a duplex carrier of protocol messages. Send and Recv may
// be called from different goroutines, but each only from one at a
// time. Recv returns io.EOF once the peer has closed.
type Channel interface {
	Send(m *wire.Message) error
	Recv() (*wire.Message, error)
	Close() error
}
