package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/codec"
	"github.com/blockberries/eeproxy/types"
	"github.com/blockberries/eeproxy/wire"
)

var _ eeproxy.Proxy = (*proxy)(nil)

// proxy issues nested calls on the session's channel. Each call holds
// the guard's call slot for its full request/reply exchange.
type proxy struct {
	s *Session
}

func (p *proxy) send(ctx context.Context, m *wire.Message) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	p.s.guard.AcquireCall()
	defer p.s.guard.ReleaseCall()
	return p.write(m)
}

func (p *proxy) call(ctx context.Context, m *wire.Message) (*wire.Message, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	p.s.guard.AcquireCall()
	defer p.s.guard.ReleaseCall()

	if err := p.write(m); err != nil {
		return nil, err
	}
	reply, err := p.s.ch.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			p.s.closed.Store(true)
			return nil, eeproxy.ErrSessionClosed
		}
		return nil, fmt.Errorf("session: recv %s reply: %w", m.Type, err)
	}
	if reply.Type == wire.MsgClose {
		p.s.closed.Store(true)
		return nil, eeproxy.ErrSessionClosed
	}
	if reply.Type != m.Type {
		return nil, fmt.Errorf("session: %s reply to %s request", reply.Type, m.Type)
	}
	return reply, nil
}

func (p *proxy) check(ctx context.Context) error {
	if p.s.closed.Load() {
		return eeproxy.ErrSessionClosed
	}
	return ctx.Err()
}

func (p *proxy) write(m *wire.Message) error {
	if err := p.s.ch.Send(m); err != nil {
		return fmt.Errorf("session: send %s: %w", m.Type, err)
	}
	return nil
}

func (p *proxy) GetValue(ctx context.Context, key []byte) (bool, []byte, error) {
	reply, err := p.call(ctx, wire.NewGetValue(key))
	if err != nil {
		return false, nil, err
	}
	if reply.Value == nil {
		return false, nil, errors.New("session: GetValue reply without value")
	}
	v := reply.Value.ToTypes()
	if !v.Exists || v.Value == nil {
		return v.Exists, []byte{}, nil
	}
	return true, v.Value, nil
}

func (p *proxy) SetValue(ctx context.Context, key, value []byte) error {
	return p.send(ctx, wire.NewSetValue(key, value))
}

func (p *proxy) DeleteValue(ctx context.Context, key []byte) error {
	return p.send(ctx, wire.NewDeleteValue(key))
}

func (p *proxy) GetInfo(ctx context.Context) (any, error) {
	reply, err := p.call(ctx, wire.NewGetInfo())
	if err != nil {
		return nil, err
	}
	if reply.Info == nil {
		return nil, errors.New("session: GetInfo reply without info")
	}
	v, err := p.s.reg.DecodeAny(reply.Info.Value)
	if err != nil {
		return nil, fmt.Errorf("session: decode info: %w", err)
	}
	return v, nil
}

func (p *proxy) GetBalance(ctx context.Context, addr types.Address) (*big.Int, error) {
	reply, err := p.call(ctx, wire.NewGetBalance(addr))
	if err != nil {
		return nil, err
	}
	if reply.Balance == nil {
		return nil, errors.New("session: GetBalance reply without balance")
	}
	return codec.BigIntFromBytes(reply.Balance.Value), nil
}

// SendEvent encodes the whole event before touching the channel.
func (p *proxy) SendEvent(ctx context.Context, indexed, data []any) error {
	m, err := wire.NewEvent(p.s.reg, types.Event{Indexed: indexed, Data: data})
	if err != nil {
		return err
	}
	return p.send(ctx, m)
}

func (p *proxy) Log(ctx context.Context, level types.LogLevel, msg string) error {
	return p.send(ctx, wire.NewLog(level, msg))
}
