package session_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/codec"
	"github.com/blockberries/eeproxy/local"
	"github.com/blockberries/eeproxy/session"
	"github.com/blockberries/eeproxy/types"
	"github.com/blockberries/eeproxy/wire"
)

var (
	from = types.MustParseAddress("hx1111111111111111111111111111111111111111")
	to   = types.MustParseAddress("cx0004444444444444444444444444444444444444")
)

type peer struct {
	t    *testing.T
	ch   *local.Conn
	done chan error
}

// start runs a session for h and returns the manager end after the
// version message has been received.
func start(t *testing.T, ctx context.Context, h eeproxy.Handler, opts ...session.Option) *peer {
	t.Helper()
	engineEnd, managerEnd := local.Pipe()
	s := session.New(engineEnd, h, opts...)
	p := &peer{t: t, ch: managerEnd, done: make(chan error, 1)}
	go func() { p.done <- s.Run(ctx, session.DefaultVersion("go")) }()

	m := p.recv()
	if m.Type != wire.MsgVersion {
		t.Fatalf("first message: got %s, want Version", m.Type)
	}
	if m.Version.Version != uint32(types.ProtocolVersion) || m.Version.Type != "go" || m.Version.PID == 0 {
		t.Fatalf("unexpected version payload: %+v", m.Version)
	}
	t.Cleanup(func() { managerEnd.Close() })
	return p
}

func (p *peer) send(m *wire.Message) {
	p.t.Helper()
	if err := p.ch.Send(m); err != nil {
		p.t.Fatalf("send %s failed: %v", m.Type, err)
	}
}

func (p *peer) recv() *wire.Message {
	p.t.Helper()
	m, err := p.ch.Recv()
	if err != nil {
		p.t.Fatalf("recv failed: %v", err)
	}
	return m
}

func (p *peer) expect(typ wire.MessageType) *wire.Message {
	p.t.Helper()
	m := p.recv()
	if m.Type != typ {
		p.t.Fatalf("got %s, want %s", m.Type, typ)
	}
	return m
}

func (p *peer) invoke(method string, limit int64) {
	p.t.Helper()
	p.send(wire.NewInvoke(types.InvokeRequest{
		Code:   "c1",
		From:   from,
		To:     to,
		Value:  new(big.Int),
		Limit:  big.NewInt(limit),
		Method: method,
	}))
}

func (p *peer) result() types.InvokeResult {
	p.t.Helper()
	return p.expect(wire.MsgResult).Result.ToTypes()
}

func (p *peer) wait() error {
	p.t.Helper()
	select {
	case err := <-p.done:
		return err
	case <-time.After(5 * time.Second):
		p.t.Fatal("session did not stop")
		return nil
	}
}

func fixed(used int64) eeproxy.HandlerFunc {
	return func(context.Context, eeproxy.Proxy, types.InvokeRequest) (types.InvokeResult, error) {
		return types.InvokeResult{Status: types.StatusSuccess, Used: big.NewInt(used)}, nil
	}
}

func TestSession_InvokeAtLimitThenAgain(t *testing.T) {
	p := start(t, context.Background(), fixed(10))

	p.invoke("a", 10)
	res := p.result()
	if res.Status != types.StatusSuccess || res.Used.Int64() != 10 {
		t.Fatalf("got %+v", res)
	}

	p.invoke("b", 10)
	if res := p.result(); !res.OK() {
		t.Fatalf("second invocation: got %+v", res)
	}

	p.send(wire.NewClose())
	if err := p.wait(); err != nil {
		t.Fatalf("Serve returned %v", err)
	}
}

func TestSession_StateStoreRoundTrip(t *testing.T) {
	type read struct {
		ok bool
		v  string
	}
	var reads []read
	h := eeproxy.HandlerFunc(func(ctx context.Context, px eeproxy.Proxy, req types.InvokeRequest) (types.InvokeResult, error) {
		ok, v, err := px.GetValue(ctx, []byte("hello"))
		if err != nil {
			return types.InvokeResult{}, err
		}
		reads = append(reads, read{ok, string(v)})
		if err := px.SetValue(ctx, []byte("hello"), []byte("world")); err != nil {
			return types.InvokeResult{}, err
		}
		ok, v, err = px.GetValue(ctx, []byte("hello"))
		if err != nil {
			return types.InvokeResult{}, err
		}
		reads = append(reads, read{ok, string(v)})
		return types.InvokeResult{Used: big.NewInt(3)}, nil
	})
	p := start(t, context.Background(), h)
	store := map[string]string{}

	p.invoke("rw", 10)
	m := p.expect(wire.MsgGetValue)
	_, ok := store[string(m.GetValue.Key)]
	p.send(wire.NewValue(types.ValueResult{Exists: ok, Value: []byte{}}))

	m = p.expect(wire.MsgSetValue)
	if m.SetValue.Delete {
		t.Fatal("unexpected delete flag")
	}
	store[string(m.SetValue.Key)] = string(m.SetValue.Value)

	m = p.expect(wire.MsgGetValue)
	v, ok := store[string(m.GetValue.Key)]
	p.send(wire.NewValue(types.ValueResult{Exists: ok, Value: []byte(v)}))

	if res := p.result(); !res.OK() || res.Used.Int64() != 3 {
		t.Fatalf("got %+v", res)
	}
	if len(reads) != 2 || reads[0] != (read{false, ""}) || reads[1] != (read{true, "world"}) {
		t.Fatalf("reads: %+v", reads)
	}
}

func TestSession_InfoBalanceLogAndEvent(t *testing.T) {
	var (
		info any
		bal  *big.Int
	)
	h := eeproxy.HandlerFunc(func(ctx context.Context, px eeproxy.Proxy, req types.InvokeRequest) (types.InvokeResult, error) {
		var err error
		if info, err = px.GetInfo(ctx); err != nil {
			return types.InvokeResult{}, err
		}
		if bal, err = px.GetBalance(ctx, req.From); err != nil {
			return types.InvokeResult{}, err
		}
		if err := px.Log(ctx, types.LogInfo, "hi"); err != nil {
			return types.InvokeResult{}, err
		}
		if err := px.DeleteValue(ctx, []byte("gone")); err != nil {
			return types.InvokeResult{}, err
		}
		err = px.SendEvent(ctx, []any{"LogEvent(int,str,Address)", 1, "TEST"}, []any{to})
		return types.InvokeResult{}, err
	})
	p := start(t, context.Background(), h)
	reg := codec.New()

	p.invoke("x", 10)
	p.expect(wire.MsgGetInfo)
	im, err := wire.NewInfo(reg, map[string]any{types.InfoBlockHeight: 5})
	if err != nil {
		t.Fatal(err)
	}
	p.send(im)

	m := p.expect(wire.MsgGetBalance)
	if a, _ := types.AddressFromBytes(m.GetBalance.Address); a != from {
		t.Fatalf("balance address: got %s", a)
	}
	p.send(wire.NewBalance(big.NewInt(77)))

	if m := p.expect(wire.MsgLog); m.Log.Message != "hi" || types.LogLevel(m.Log.Level) != types.LogInfo {
		t.Fatalf("log: got %+v", m.Log)
	}
	if m := p.expect(wire.MsgSetValue); !m.SetValue.Delete || string(m.SetValue.Key) != "gone" {
		t.Fatalf("delete: got %+v", m.SetValue)
	}

	m = p.expect(wire.MsgEvent)
	ev, err := m.Event.ToTypes(reg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ev.Indexed) != 3 || len(ev.Data) != 1 || ev.Data[0] != to {
		t.Fatalf("event: got %+v", ev)
	}
	for i, want := range []types.TypeTag{types.TagString, types.TagInt, types.TagString} {
		if got := m.Event.Indexed[i].Tag; got != want {
			t.Fatalf("indexed[%d] tag: got %s, want %s", i, got, want)
		}
	}

	if res := p.result(); !res.OK() || res.Used.Sign() != 0 {
		t.Fatalf("got %+v", res)
	}
	if info.(map[string]any)[types.InfoBlockHeight].(*big.Int).Int64() != 5 {
		t.Fatalf("info: got %#v", info)
	}
	if bal.Int64() != 77 {
		t.Fatalf("balance: got %s", bal)
	}
}

type opaque struct{}

func TestSession_EventWithUnknownKindSendsNothing(t *testing.T) {
	var sendErr error
	h := eeproxy.HandlerFunc(func(ctx context.Context, px eeproxy.Proxy, req types.InvokeRequest) (types.InvokeResult, error) {
		sendErr = px.SendEvent(ctx, []any{"E(int)", 1}, []any{opaque{}})
		return types.InvokeResult{}, sendErr
	})
	p := start(t, context.Background(), h)

	p.invoke("x", 10)
	// The next message is the result: no partial event was written.
	res := p.result()
	if res.Status != types.StatusInvalidParameter {
		t.Fatalf("status: got %s", res.Status)
	}
	if !errors.Is(sendErr, types.ErrUnknownType) {
		t.Fatalf("SendEvent: got %v", sendErr)
	}
}

func TestSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		fail   func() error
		status types.Status
		text   string
	}{
		{"status", func() error { return eeproxy.NewStatusError(types.StatusUser+2, "revert") }, types.StatusUser + 2, "revert"},
		{"format", func() error { _, err := types.ParseAddress("hx00"); return err }, types.StatusIllegalFormat, "IllegalFormat"},
		{"other", func() error { return errors.New("boom") }, types.StatusUnknownFailure, "boom"},
		{"panic", func() error { panic("kaboom") }, types.StatusUnknownFailure, "kaboom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := eeproxy.HandlerFunc(func(context.Context, eeproxy.Proxy, types.InvokeRequest) (types.InvokeResult, error) {
				return types.InvokeResult{}, tt.fail()
			})
			p := start(t, context.Background(), h)

			p.invoke("x", 10)
			res := p.result()
			if res.Status != tt.status {
				t.Fatalf("status: got %s, want %s", res.Status, tt.status)
			}
			if !strings.Contains(string(res.Result), tt.text) {
				t.Fatalf("result %q does not contain %q", res.Result, tt.text)
			}

			// The session keeps serving.
			p.invoke("y", 10)
			p.result()
		})
	}
}

func TestSession_BadInvokeAddress(t *testing.T) {
	p := start(t, context.Background(), fixed(1))
	p.send(&wire.Message{Type: wire.MsgInvoke, Invoke: &wire.Invoke{From: []byte{1}, To: to.Bytes()}})
	if res := p.result(); res.Status != types.StatusIllegalFormat {
		t.Fatalf("status: got %s", res.Status)
	}
}

func TestSession_UnexpectedMessageIgnored(t *testing.T) {
	p := start(t, context.Background(), fixed(1))
	p.send(wire.NewGetInfo())
	p.invoke("x", 10)
	if res := p.result(); !res.OK() {
		t.Fatalf("got %+v", res)
	}
}

func TestSession_OverrunIsReportedUnclamped(t *testing.T) {
	p := start(t, context.Background(), fixed(50))
	p.invoke("x", 10)
	if res := p.result(); res.Used.Int64() != 50 {
		t.Fatalf("used: got %s", res.Used)
	}
}

func TestSession_EOFEndsServe(t *testing.T) {
	p := start(t, context.Background(), fixed(1))
	p.ch.Close()
	if err := p.wait(); err != nil {
		t.Fatalf("Serve returned %v", err)
	}
}

func TestSession_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := start(t, ctx, fixed(1))
	cancel()
	if err := p.wait(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSession_CloseDuringInvocation(t *testing.T) {
	var callErr error
	h := eeproxy.HandlerFunc(func(ctx context.Context, px eeproxy.Proxy, req types.InvokeRequest) (types.InvokeResult, error) {
		_, _, callErr = px.GetValue(ctx, []byte("k"))
		return types.InvokeResult{}, callErr
	})
	p := start(t, context.Background(), h)

	p.invoke("x", 10)
	p.expect(wire.MsgGetValue)
	p.send(wire.NewClose())

	if err := p.wait(); err != nil {
		t.Fatalf("Serve returned %v", err)
	}
	if !errors.Is(callErr, eeproxy.ErrSessionClosed) {
		t.Fatalf("GetValue: got %v", callErr)
	}
}

func TestSession_MismatchedReply(t *testing.T) {
	var callErr error
	h := eeproxy.HandlerFunc(func(ctx context.Context, px eeproxy.Proxy, req types.InvokeRequest) (types.InvokeResult, error) {
		_, callErr = px.GetInfo(ctx)
		return types.InvokeResult{}, callErr
	})
	p := start(t, context.Background(), h)

	p.invoke("x", 10)
	p.expect(wire.MsgGetInfo)
	p.send(wire.NewBalance(big.NewInt(1)))

	if res := p.result(); res.Status != types.StatusUnknownFailure {
		t.Fatalf("status: got %s", res.Status)
	}
	if callErr == nil || !strings.Contains(callErr.Error(), "reply to GetInfo") {
		t.Fatalf("GetInfo: got %v", callErr)
	}
}

func TestSession_ProxyAfterInvocationPanics(t *testing.T) {
	var leaked eeproxy.Proxy
	h := eeproxy.HandlerFunc(func(_ context.Context, px eeproxy.Proxy, _ types.InvokeRequest) (types.InvokeResult, error) {
		leaked = px
		return types.InvokeResult{}, nil
	})
	p := start(t, context.Background(), h)
	p.invoke("x", 10)
	p.result()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for nested call outside an invocation")
		}
	}()
	_ = leaked.SetValue(context.Background(), []byte("k"), nil)
}
