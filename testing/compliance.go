package eeproxytest

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/types"
)

// Case is one invocation the compliance suite replays.
type Case struct {
	Method string
	Params []byte
}

// RunComplianceSuite checks that a handler behaves correctly behind a
// session: one result per invocation, usage within the limit,
// sequential invocations on one channel and deterministic results.
//
// The factory function should return a fresh handler for each test.
// cases should include at least one invocation that succeeds.
func RunComplianceSuite(t *testing.T, factory func() eeproxy.Handler, cases ...Case) {
	t.Helper()
	if len(cases) == 0 {
		cases = []Case{{Method: "test"}}
	}

	t.Run("handshake_version", func(t *testing.T) {
		h := NewHarness(t, factory())
		v := h.Version()
		if v.Version != types.ProtocolVersion {
			t.Errorf("expected protocol version %d, got %d", types.ProtocolVersion, v.Version)
		}
		if v.Type == "" {
			t.Error("version type should not be empty")
		}
	})

	t.Run("used_within_limit", func(t *testing.T) {
		h := NewHarness(t, factory())
		for _, c := range cases {
			res := h.Call(c.Method, c.Params)
			if res.Used == nil {
				t.Fatalf("%s: nil Used", c.Method)
			}
			if res.Used.Sign() < 0 || res.Used.Cmp(big.NewInt(DefaultLimit)) > 0 {
				t.Errorf("%s: used %s outside [0, %d]", c.Method, res.Used, DefaultLimit)
			}
		}
	})

	t.Run("sequential_invocations", func(t *testing.T) {
		h := NewHarness(t, factory())
		for i := 0; i < 5; i++ {
			for _, c := range cases {
				h.Call(c.Method, c.Params)
			}
		}
		if h.Session().State() != "Serving" {
			t.Errorf("expected Serving between invocations, got %s", h.Session().State())
		}
	})

	t.Run("unknown_method_fails_cleanly", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.Call("no-such-method-"+t.Name(), nil)
		// The channel must still be usable afterwards.
		h.Call(cases[0].Method, cases[0].Params)
	})

	t.Run("deterministic", func(t *testing.T) {
		h1 := NewHarness(t, factory())
		h2 := NewHarness(t, factory())
		for _, c := range cases {
			r1 := h1.Call(c.Method, c.Params)
			r2 := h2.Call(c.Method, c.Params)
			if r1.Status != r2.Status || r1.Used.Cmp(r2.Used) != 0 || !bytes.Equal(r1.Result, r2.Result) {
				t.Errorf("%s: results diverge: %+v vs %+v", c.Method, r1, r2)
			}
		}
	})

	t.Run("close_ends_session", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.Call(cases[0].Method, cases[0].Params)
		if err := h.Close(); err != nil {
			t.Errorf("Serve returned %v after Close", err)
		}
	})
}
