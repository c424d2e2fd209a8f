// Package counter implements a minimal engine that keeps a counter in
// the manager's state store.
//
// Methods:
//   - "increment": params are 8 bytes, big-endian uint64 increment
//     value. Returns the new count in the same format.
//   - "get": returns the current count.
//
// Every nested call costs one step; an invocation whose limit is too
// small fails with types.StatusOutOfStep.
package counter

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/types"
)

// Compile-time interface check.
var _ eeproxy.Handler = (*App)(nil)

// EventIncremented is emitted by every successful increment.
const EventIncremented = "Incremented(int,int)"

var countKey = []byte("count")

// App is a counter engine. It holds no state of its own.
type App struct{}

// New creates a new counter engine.
func New() *App { return &App{} }

// meter charges one step per nested call against the invocation limit.
type meter struct {
	used  *big.Int
	limit *big.Int
}

func newMeter(limit *big.Int) *meter {
	if limit == nil {
		limit = new(big.Int)
	}
	return &meter{used: new(big.Int), limit: limit}
}

func (m *meter) step() error {
	if m.used.Cmp(m.limit) >= 0 {
		return eeproxy.NewStatusError(types.StatusOutOfStep, "out of step")
	}
	m.used.Add(m.used, big.NewInt(1))
	return nil
}

func (app *App) Invoke(ctx context.Context, p eeproxy.Proxy, req types.InvokeRequest) (types.InvokeResult, error) {
	m := newMeter(req.Limit)
	var (
		count uint64
		err   error
	)
	switch req.Method {
	case "get":
		count, err = app.load(ctx, p, m)
	case "increment":
		count, err = app.increment(ctx, p, m, req.Params)
	default:
		err = eeproxy.NewStatusError(types.StatusMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
	if err != nil {
		return types.InvokeResult{Used: m.used}, err
	}
	return types.InvokeResult{
		Status: types.StatusSuccess,
		Used:   m.used,
		Result: encodeCount(count),
	}, nil
}

func (app *App) increment(ctx context.Context, p eeproxy.Proxy, m *meter, params []byte) (uint64, error) {
	inc, err := DecodeIncrement(params)
	if err != nil {
		return 0, err
	}
	count, err := app.load(ctx, p, m)
	if err != nil {
		return 0, err
	}
	count += inc

	if err := m.step(); err != nil {
		return 0, err
	}
	if err := p.SetValue(ctx, countKey, encodeCount(count)); err != nil {
		return 0, fmt.Errorf("store count: %w", err)
	}

	if err := m.step(); err != nil {
		return 0, err
	}
	err = p.SendEvent(ctx,
		[]any{EventIncremented, new(big.Int).SetUint64(inc)},
		[]any{new(big.Int).SetUint64(count)},
	)
	if err != nil {
		return 0, fmt.Errorf("emit event: %w", err)
	}
	return count, nil
}

func (app *App) load(ctx context.Context, p eeproxy.Proxy, m *meter) (uint64, error) {
	if err := m.step(); err != nil {
		return 0, err
	}
	ok, v, err := p.GetValue(ctx, countKey)
	if err != nil {
		return 0, fmt.Errorf("load count: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("stored count has %d bytes", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// IncrementParams creates increment params for the given value.
func IncrementParams(inc uint64) []byte {
	return encodeCount(inc)
}

// DecodeIncrement parses increment params.
func DecodeIncrement(params []byte) (uint64, error) {
	if len(params) != 8 {
		return 0, eeproxy.NewStatusError(types.StatusInvalidParameter,
			fmt.Sprintf("expected 8 bytes, got %d", len(params)))
	}
	return binary.BigEndian.Uint64(params), nil
}

// DecodeCount parses a result of this engine.
func DecodeCount(result []byte) (uint64, error) {
	if len(result) != 8 {
		return 0, fmt.Errorf("expected 8 bytes, got %d", len(result))
	}
	return binary.BigEndian.Uint64(result), nil
}

func encodeCount(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
