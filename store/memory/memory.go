// Package memory provides an in-memory manager.Backend.
package memory

import (
	"context"
	"maps"
	"math/big"
	"sync"

	"github.com/blockberries/eeproxy/manager"
	"github.com/blockberries/eeproxy/types"
)

var _ manager.Backend = (*Store)(nil)

// EventRecord is an event together with the invocation that emitted it.
type EventRecord struct {
	Code  string
	Event types.Event
}

// Store keeps state, balances and events in maps. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	kv       map[string][]byte
	balances map[types.Address]*big.Int
	events   []EventRecord
	info     map[string]any
}

// New creates an empty store. info is returned (with T.hash set to the
// invocation code) from every GetInfo call.
func New(info map[string]any) *Store {
	if info == nil {
		info = map[string]any{}
	}
	return &Store{
		kv:       make(map[string][]byte),
		balances: make(map[types.Address]*big.Int),
		info:     info,
	}
}

func (s *Store) GetValue(_ context.Context, key []byte) (types.ValueResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[string(key)]
	if !ok {
		return types.ValueResult{Exists: false, Value: []byte{}}, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return types.ValueResult{Exists: true, Value: out}, nil
}

func (s *Store) SetValue(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.kv[string(key)] = v
	return nil
}

func (s *Store) DeleteValue(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, string(key))
	return nil
}

func (s *Store) GetInfo(_ context.Context, code string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := maps.Clone(s.info)
	out[types.InfoTxHash] = []byte(code)
	return out, nil
}

func (s *Store) GetBalance(_ context.Context, addr types.Address) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// SetBalance sets the balance of addr.
func (s *Store) SetBalance(addr types.Address, v *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr] = new(big.Int).Set(v)
}

func (s *Store) OnEvent(_ context.Context, code string, ev types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, EventRecord{Code: code, Event: ev})
	return nil
}

// Events returns the events recorded so far, oldest first.
func (s *Store) Events() []EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EventRecord, len(s.events))
	copy(out, s.events)
	return out
}
