// Package eeproxytest provides test utilities for engine development:
// a configurable mock handler, an in-memory proxy for unit tests, a
// harness that runs a handler behind a real session and manager, and a
// protocol compliance suite.
package eeproxytest

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/codec"
	"github.com/blockberries/eeproxy/types"
)

// Compile-time interface checks.
var (
	_ eeproxy.Handler = (*MockHandler)(nil)
	_ eeproxy.Proxy   = (*MockProxy)(nil)
)

// MockHandler is a configurable handler. If InvokeFn is nil, every
// invocation succeeds with zero usage and an empty result.
type MockHandler struct {
	InvokeFn func(context.Context, eeproxy.Proxy, types.InvokeRequest) (types.InvokeResult, error)

	// Call counter (atomic for concurrent access).
	InvokeCalls atomic.Int64
}

func (m *MockHandler) Invoke(ctx context.Context, p eeproxy.Proxy, req types.InvokeRequest) (types.InvokeResult, error) {
	m.InvokeCalls.Add(1)
	if m.InvokeFn != nil {
		return m.InvokeFn(ctx, p, req)
	}
	return types.InvokeResult{Status: types.StatusSuccess, Used: new(big.Int), Result: []byte{}}, nil
}

// LogLine is a line recorded by MockProxy.Log.
type LogLine struct {
	Level   types.LogLevel
	Message string
}

// MockProxy is an in-memory Proxy for calling a handler directly,
// without a channel. Events are checked against Registry the same way
// a session would, so an unencodable element fails here too.
type MockProxy struct {
	mu sync.Mutex

	Registry *codec.Registry
	Info     any
	Values   map[string][]byte
	Balances map[types.Address]*big.Int
	Events   []types.Event
	Logs     []LogLine

	GetValueCalls atomic.Int64
	SetValueCalls atomic.Int64
}

// NewMockProxy creates an empty proxy using codec.New().
func NewMockProxy() *MockProxy {
	return &MockProxy{
		Registry: codec.New(),
		Values:   make(map[string][]byte),
		Balances: make(map[types.Address]*big.Int),
	}
}

func (m *MockProxy) GetValue(_ context.Context, key []byte) (bool, []byte, error) {
	m.GetValueCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Values[string(key)]
	if !ok {
		return false, []byte{}, nil
	}
	return true, append([]byte{}, v...), nil
}

func (m *MockProxy) SetValue(_ context.Context, key, value []byte) error {
	m.SetValueCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Values[string(key)] = append([]byte{}, value...)
	return nil
}

func (m *MockProxy) DeleteValue(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Values, string(key))
	return nil
}

func (m *MockProxy) GetInfo(context.Context) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Info, nil
}

func (m *MockProxy) GetBalance(_ context.Context, addr types.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.Balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (m *MockProxy) SendEvent(_ context.Context, indexed, data []any) error {
	if _, err := m.Registry.EncodeList(indexed); err != nil {
		return err
	}
	if _, err := m.Registry.EncodeList(data); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, types.Event{Indexed: indexed, Data: data})
	return nil
}

func (m *MockProxy) Log(_ context.Context, level types.LogLevel, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogLine{Level: level, Message: msg})
	return nil
}
