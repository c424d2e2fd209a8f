package eeproxytest

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/local"
	"github.com/blockberries/eeproxy/manager"
	"github.com/blockberries/eeproxy/session"
	"github.com/blockberries/eeproxy/store/memory"
	"github.com/blockberries/eeproxy/types"
)

// DefaultLimit is the limit used by MakeRequest.
const DefaultLimit = 1000

var (
	// DefaultFrom is the caller used by MakeRequest.
	DefaultFrom = types.MustParseAddress("hx1111111111111111111111111111111111111111")
	// DefaultTo is the callee used by MakeRequest.
	DefaultTo = types.MustParseAddress("cx0004444444444444444444444444444444444444")
)

// Harness runs a handler behind a real session on one end of a local
// pipe and a manager.Conn backed by a memory store on the other.
type Harness struct {
	t       *testing.T
	conn    *manager.Conn
	sess    *session.Session
	store   *memory.Store
	version types.Version
	done    chan error
	closed  bool
}

// NewHarness starts a session for h and completes the handshake.
// The session is shut down when the test ends.
func NewHarness(t *testing.T, h eeproxy.Handler, opts ...session.Option) *Harness {
	t.Helper()

	engineEnd, managerEnd := local.Pipe()
	hs := &Harness{
		t:     t,
		conn:  manager.NewConn(managerEnd),
		sess:  session.New(engineEnd, h, opts...),
		store: memory.New(map[string]any{types.InfoBlockHeight: 1}),
		done:  make(chan error, 1),
	}
	go func() {
		hs.done <- hs.sess.Run(context.Background(), session.DefaultVersion("go"))
	}()

	v, err := hs.conn.Handshake(context.Background())
	if err != nil {
		t.Fatalf("Handshake failed: %v", err)
	}
	hs.version = v
	t.Cleanup(func() {
		if !hs.closed {
			hs.Close()
		}
	})
	return hs
}

// Session returns the engine-side session.
func (h *Harness) Session() *session.Session { return h.sess }

// Store returns the backend serving nested calls.
func (h *Harness) Store() *memory.Store { return h.store }

// Version returns the handshake payload sent by the session.
func (h *Harness) Version() types.Version { return h.version }

// Invoke runs one invocation and fails the test on a transport error.
func (h *Harness) Invoke(req types.InvokeRequest) types.InvokeResult {
	h.t.Helper()
	res, err := h.conn.Invoke(context.Background(), req, h.store)
	if err != nil {
		h.t.Fatalf("Invoke (method=%q) failed: %v", req.Method, err)
	}
	return res
}

// Call invokes method with params using MakeRequest defaults.
func (h *Harness) Call(method string, params []byte) types.InvokeResult {
	h.t.Helper()
	return h.Invoke(MakeRequest(method, params))
}

// Close ends the session and returns Serve's error.
func (h *Harness) Close() error {
	h.t.Helper()
	h.closed = true
	if err := h.conn.Close(); err != nil {
		h.t.Fatalf("Close failed: %v", err)
	}
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		h.t.Fatal("session did not stop after Close")
		return nil
	}
}

// --- Request Builders ---

// MakeRequest creates a request with default addresses, zero value and
// DefaultLimit.
func MakeRequest(method string, params []byte) types.InvokeRequest {
	return types.InvokeRequest{
		Code:   "test-" + method,
		From:   DefaultFrom,
		To:     DefaultTo,
		Value:  new(big.Int),
		Limit:  big.NewInt(DefaultLimit),
		Method: method,
		Params: params,
	}
}
