// Package session runs the engine side of an execution-engine channel:
// it announces the engine with a version message, then serves
// invocations one at a time, routing the handler's nested state store,
// info and event calls back over the same channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/codec"
	"github.com/blockberries/eeproxy/types"
	"github.com/blockberries/eeproxy/wire"
)

// Session binds one handler to one channel.
type Session struct {
	ch      eeproxy.Channel
	handler eeproxy.Handler
	reg     *codec.Registry
	log     zerolog.Logger
	guard   *Guard

	// Set once the peer has sent Close or the channel reached EOF.
	closed atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry sets the codec registry used for info values and events.
// Defaults to codec.New().
func WithRegistry(r *codec.Registry) Option {
	return func(s *Session) { s.reg = r }
}

// WithLogger sets the session logger. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// New creates a session in the Idle state.
func New(ch eeproxy.Channel, h eeproxy.Handler, opts ...Option) *Session {
	s := &Session{
		ch:      ch,
		handler: h,
		log:     zerolog.Nop(),
		guard:   NewGuard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reg == nil {
		s.reg = codec.New()
	}
	return s
}

// DefaultVersion returns the handshake payload for this process.
func DefaultVersion(engineType string) types.Version {
	return types.Version{
		Version: types.ProtocolVersion,
		PID:     uint32(os.Getpid()),
		Type:    engineType,
	}
}

// State returns the guard state name.
func (s *Session) State() string { return s.guard.State() }

// Registry returns the session's codec registry.
func (s *Session) Registry() *codec.Registry { return s.reg }

// Handshake writes the version message. It must be called exactly once,
// before Serve.
func (s *Session) Handshake(ctx context.Context, v types.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ch.Send(wire.NewVersion(v)); err != nil {
		return fmt.Errorf("session: send version: %w", err)
	}
	s.guard.Connect()
	s.log.Info().
		Uint16("version", v.Version).
		Uint32("pid", v.PID).
		Str("type", v.Type).
		Msg("engine_connected")
	return nil
}

// Serve handles invocations until the peer closes the channel (nil), the
// channel fails (wrapped error) or ctx is cancelled (ctx.Err()). A
// cancelled context closes the channel to unblock the pending receive.
func (s *Session) Serve(ctx context.Context) error {
	s.guard.Serve()
	stop := context.AfterFunc(ctx, func() { _ = s.ch.Close() })
	defer stop()

	for {
		m, err := s.ch.Recv()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if s.closed.Load() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				s.closed.Store(true)
				s.log.Info().Msg("channel_eof")
				return nil
			}
			return fmt.Errorf("session: recv: %w", err)
		}

		switch m.Type {
		case wire.MsgInvoke:
			if err := s.invoke(ctx, m.Invoke); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return err
			}
			if s.closed.Load() {
				return nil
			}
		case wire.MsgClose:
			s.closed.Store(true)
			s.log.Info().Msg("channel_closed")
			return nil
		default:
			s.log.Warn().Stringer("type", m.Type).Msg("unexpected_message")
		}
	}
}

// Run is Handshake followed by Serve.
func (s *Session) Run(ctx context.Context, v types.Version) error {
	if err := s.Handshake(ctx, v); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Close closes the underlying channel.
func (s *Session) Close() error {
	s.closed.Store(true)
	return s.ch.Close()
}

func (s *Session) invoke(ctx context.Context, inv *wire.Invoke) error {
	s.guard.BeginInvoke()

	var res types.InvokeResult
	req, err := inv.ToTypes()
	if err != nil {
		res = eeproxy.FailedResult(err, nil)
	} else {
		res = s.run(ctx, req)
	}

	s.guard.EndInvoke()
	defer s.guard.Resume()

	if res.Overran(req.Limit) {
		s.log.Warn().
			Str("method", req.Method).
			Str("used", res.Used.String()).
			Str("limit", req.Limit.String()).
			Msg("limit_overrun")
	}
	s.log.Debug().
		Str("code", req.Code).
		Str("method", req.Method).
		Stringer("status", res.Status).
		Str("used", res.Used.String()).
		Msg("invoke_result")

	if s.closed.Load() {
		// The peer is gone; there is nobody to answer.
		return nil
	}
	if err := s.ch.Send(wire.NewResult(res)); err != nil {
		return fmt.Errorf("session: send result: %w", err)
	}
	return nil
}

// run calls the handler, converting errors and panics into a failed
// result.
func (s *Session) run(ctx context.Context, req types.InvokeRequest) (res types.InvokeResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("method", req.Method).
				Interface("panic", r).
				Msg("handler_panic")
			res = eeproxy.FailedResult(fmt.Errorf("handler panic: %v", r), nil)
		}
	}()

	s.log.Debug().
		Str("code", req.Code).
		Stringer("from", req.From).
		Stringer("to", req.To).
		Str("method", req.Method).
		Msg("invoke_start")

	res, err := s.handler.Invoke(ctx, &proxy{s: s}, req)
	if err != nil {
		return eeproxy.FailedResult(err, res.Used)
	}
	if res.Used == nil {
		res.Used = new(big.Int)
	}
	return res
}
