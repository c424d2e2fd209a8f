package session

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// guardState represents a state in the invocation state machine.
type guardState uint32

const (
	// stateIdle: channel not yet announced. Only Connect is allowed.
	stateIdle guardState = iota
	// stateConnected: the version message has been written.
	stateConnected
	// stateServing: waiting for the next Invoke. No nested calls.
	stateServing
	// stateExecuting: a handler is running. Nested calls are allowed,
	// one at a time.
	stateExecuting
	// stateResponded: the handler returned and its result is being
	// written. Resume goes back to Serving.
	stateResponded
)

func (s guardState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateConnected:
		return "Connected"
	case stateServing:
		return "Serving"
	case stateExecuting:
		return "Executing"
	case stateResponded:
		return "Responded"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Guard enforces the invocation state machine:
//
//	Idle -> Connected -> Serving -> Executing -> Responded -> Serving
//
// Out-of-order transitions panic. They indicate a bug in the caller,
// not a condition a peer can trigger.
type Guard struct {
	state atomic.Uint32
	// Held from BeginInvoke until Resume so that at most one
	// invocation is in flight.
	invokeMu sync.Mutex
	// Set while a nested call is outstanding.
	inCall atomic.Bool
}

// NewGuard creates a guard in the Idle state.
func NewGuard() *Guard {
	g := &Guard{}
	g.state.Store(uint32(stateIdle))
	return g
}

// State returns the current state name.
func (g *Guard) State() string {
	return guardState(g.state.Load()).String()
}

func (g *Guard) transition(op string, from, to guardState) {
	if !g.state.CompareAndSwap(uint32(from), uint32(to)) {
		panic(fmt.Sprintf("eeproxy: %s called in state %s (expected %s)",
			op, guardState(g.state.Load()), from))
	}
}

// Connect transitions Idle → Connected.
func (g *Guard) Connect() { g.transition("Connect", stateIdle, stateConnected) }

// Serve transitions Connected → Serving.
func (g *Guard) Serve() { g.transition("Serve", stateConnected, stateServing) }

// BeginInvoke transitions Serving → Executing.
// Blocks while another invocation is between BeginInvoke and Resume.
func (g *Guard) BeginInvoke() {
	g.invokeMu.Lock()
	if state := guardState(g.state.Load()); state != stateServing {
		g.invokeMu.Unlock()
		panic(fmt.Sprintf("eeproxy: BeginInvoke called in state %s (expected Serving)", state))
	}
	g.state.Store(uint32(stateExecuting))
}

// EndInvoke transitions Executing → Responded.
// Panics if a nested call is still outstanding.
func (g *Guard) EndInvoke() {
	if g.inCall.Load() {
		panic("eeproxy: EndInvoke called with a nested call outstanding")
	}
	g.transition("EndInvoke", stateExecuting, stateResponded)
}

// Resume transitions Responded → Serving.
func (g *Guard) Resume() {
	g.transition("Resume", stateResponded, stateServing)
	g.invokeMu.Unlock()
}

// AcquireCall marks the start of a nested call.
// Panics outside Executing or if another nested call is outstanding.
func (g *Guard) AcquireCall() {
	if state := guardState(g.state.Load()); state != stateExecuting {
		panic(fmt.Sprintf("eeproxy: nested call in state %s (expected Executing)", state))
	}
	if !g.inCall.CompareAndSwap(false, true) {
		panic("eeproxy: overlapping nested calls")
	}
}

// ReleaseCall marks the end of a nested call.
func (g *Guard) ReleaseCall() {
	g.inCall.Store(false)
}

// IsServing returns true if the guard is waiting for an invocation.
func (g *Guard) IsServing() bool {
	return guardState(g.state.Load()) == stateServing
}

// IsExecuting returns true while a handler is running.
func (g *Guard) IsExecuting() bool {
	return guardState(g.state.Load()) == stateExecuting
}
