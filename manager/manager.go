// Package manager implements the orchestrator side of an engine
// channel: it waits for the engine's version message, then issues
// invocations and answers the nested calls each one makes against a
// Backend.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/rs/zerolog"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/codec"
	"github.com/blockberries/eeproxy/types"
	"github.com/blockberries/eeproxy/wire"
)

// Backend serves the nested calls of an invocation.
type Backend interface {
	GetValue(ctx context.Context, key []byte) (types.ValueResult, error)
	SetValue(ctx context.Context, key, value []byte) error
	DeleteValue(ctx context.Context, key []byte) error
	// GetInfo returns the metadata for the invocation identified by code.
	GetInfo(ctx context.Context, code string) (map[string]any, error)
	GetBalance(ctx context.Context, addr types.Address) (*big.Int, error)
	OnEvent(ctx context.Context, code string, ev types.Event) error
}

// ErrProtocol reports a message that is not valid at this point of
// the exchange.
var ErrProtocol = errors.New("manager: protocol violation")

// Conn drives one engine over one channel.
type Conn struct {
	ch  eeproxy.Channel
	reg *codec.Registry
	log zerolog.Logger

	// Serialises invocations; the protocol allows one in flight.
	mu      sync.Mutex
	version *types.Version
}

// Option configures a Conn.
type Option func(*Conn)

// WithRegistry sets the codec registry used for info values and events.
func WithRegistry(r *codec.Registry) Option {
	return func(c *Conn) { c.reg = r }
}

// WithLogger sets the connection logger. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Conn) { c.log = l }
}

// NewConn wraps an accepted channel.
func NewConn(ch eeproxy.Channel, opts ...Option) *Conn {
	c := &Conn{ch: ch, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.reg == nil {
		c.reg = codec.New()
	}
	return c
}

// Handshake waits for the engine's version message. The version is
// advisory and is not checked against types.ProtocolVersion beyond a
// warning.
func (c *Conn) Handshake(ctx context.Context) (types.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = c.ch.Close() })
	defer stop()

	m, err := c.ch.Recv()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Version{}, ctxErr
		}
		return types.Version{}, fmt.Errorf("manager: recv version: %w", err)
	}
	if m.Type != wire.MsgVersion {
		return types.Version{}, fmt.Errorf("%w: expected Version, got %s", ErrProtocol, m.Type)
	}
	v := m.Version.ToTypes()
	c.version = &v

	ev := c.log.Info()
	if v.Version != types.ProtocolVersion {
		ev = c.log.Warn()
	}
	ev.Uint16("version", v.Version).
		Uint32("pid", v.PID).
		Str("type", v.Type).
		Msg("engine_version")
	return v, nil
}

// Version returns the handshake payload, or false before Handshake.
func (c *Conn) Version() (types.Version, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version == nil {
		return types.Version{}, false
	}
	return *c.version, true
}

// Invoke sends req and services nested calls until the engine answers.
//
// A result whose Used exceeds req.Limit is reported as
// types.StatusOutOfStep with Used clamped to the limit. A backend or
// channel error aborts the invocation; the connection should then be
// closed.
func (c *Conn) Invoke(ctx context.Context, req types.InvokeRequest, b Backend) (types.InvokeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version == nil {
		return types.InvokeResult{}, fmt.Errorf("%w: Invoke before Handshake", ErrProtocol)
	}

	stop := context.AfterFunc(ctx, func() { _ = c.ch.Close() })
	defer stop()

	res, err := c.invoke(ctx, req, b)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.InvokeResult{}, ctxErr
		}
		return types.InvokeResult{}, err
	}
	return res, nil
}

func (c *Conn) invoke(ctx context.Context, req types.InvokeRequest, b Backend) (types.InvokeResult, error) {
	log := c.log.With().Str("code", req.Code).Str("method", req.Method).Logger()
	log.Debug().Stringer("to", req.To).Msg("invoke_send")

	if err := c.ch.Send(wire.NewInvoke(req)); err != nil {
		return types.InvokeResult{}, fmt.Errorf("manager: send invoke: %w", err)
	}

	for {
		m, err := c.ch.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return types.InvokeResult{}, eeproxy.ErrSessionClosed
			}
			return types.InvokeResult{}, fmt.Errorf("manager: recv: %w", err)
		}

		switch m.Type {
		case wire.MsgResult:
			res := m.Result.ToTypes()
			if res.Overran(req.Limit) {
				log.Warn().
					Str("used", res.Used.String()).
					Str("limit", req.Limit.String()).
					Msg("limit_overrun")
				res.Status = types.StatusOutOfStep
				res.Used = new(big.Int).Set(req.Limit)
			}
			log.Debug().
				Stringer("status", res.Status).
				Str("used", res.Used.String()).
				Msg("invoke_result")
			return res, nil

		case wire.MsgGetValue:
			if m.GetValue == nil {
				return types.InvokeResult{}, fmt.Errorf("%w: GetValue without key", ErrProtocol)
			}
			v, err := b.GetValue(ctx, m.GetValue.Key)
			if err != nil {
				return types.InvokeResult{}, fmt.Errorf("manager: get value: %w", err)
			}
			if err := c.reply(wire.NewValue(v)); err != nil {
				return types.InvokeResult{}, err
			}

		case wire.MsgSetValue:
			sv := m.SetValue
			if sv.Delete {
				err = b.DeleteValue(ctx, sv.Key)
			} else {
				err = b.SetValue(ctx, sv.Key, sv.Value)
			}
			if err != nil {
				return types.InvokeResult{}, fmt.Errorf("manager: set value: %w", err)
			}

		case wire.MsgEvent:
			ev, err := m.Event.ToTypes(c.reg)
			if err != nil {
				return types.InvokeResult{}, fmt.Errorf("manager: decode event: %w", err)
			}
			if err := b.OnEvent(ctx, req.Code, ev); err != nil {
				return types.InvokeResult{}, fmt.Errorf("manager: event: %w", err)
			}

		case wire.MsgGetInfo:
			info, err := b.GetInfo(ctx, req.Code)
			if err != nil {
				return types.InvokeResult{}, fmt.Errorf("manager: get info: %w", err)
			}
			reply, err := wire.NewInfo(c.reg, info)
			if err != nil {
				return types.InvokeResult{}, fmt.Errorf("manager: encode info: %w", err)
			}
			if err := c.reply(reply); err != nil {
				return types.InvokeResult{}, err
			}

		case wire.MsgGetBalance:
			if m.GetBalance == nil {
				return types.InvokeResult{}, fmt.Errorf("%w: GetBalance without address", ErrProtocol)
			}
			addr, err := types.AddressFromBytes(m.GetBalance.Address)
			if err != nil {
				return types.InvokeResult{}, fmt.Errorf("manager: balance address: %w", err)
			}
			bal, err := b.GetBalance(ctx, addr)
			if err != nil {
				return types.InvokeResult{}, fmt.Errorf("manager: get balance: %w", err)
			}
			if err := c.reply(wire.NewBalance(bal)); err != nil {
				return types.InvokeResult{}, err
			}

		case wire.MsgLog:
			c.engineLog(log, types.LogLevel(m.Log.Level), m.Log.Message)

		case wire.MsgClose:
			return types.InvokeResult{}, eeproxy.ErrSessionClosed

		default:
			return types.InvokeResult{}, fmt.Errorf("%w: unexpected %s during invocation", ErrProtocol, m.Type)
		}
	}
}

func (c *Conn) reply(m *wire.Message) error {
	if err := c.ch.Send(m); err != nil {
		return fmt.Errorf("manager: send %s reply: %w", m.Type, err)
	}
	return nil
}

// engineLog re-emits an engine log line through the manager's logger.
func (c *Conn) engineLog(log zerolog.Logger, level types.LogLevel, msg string) {
	var ev *zerolog.Event
	switch level {
	case types.LogPanic, types.LogFatal, types.LogError:
		ev = log.Error()
	case types.LogWarn:
		ev = log.Warn()
	case types.LogInfo:
		ev = log.Info()
	case types.LogDebug:
		ev = log.Debug()
	default:
		ev = log.Trace()
	}
	ev.Str("engine_level", level.String()).Msg(msg)
}

// Close tells the engine to stop serving and closes the channel.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sendErr := c.ch.Send(wire.NewClose())
	if err := c.ch.Close(); err != nil {
		return err
	}
	if sendErr != nil && !errors.Is(sendErr, eeproxy.ErrSessionClosed) {
		return fmt.Errorf("manager: send close: %w", sendErr)
	}
	return nil
}
