package counter

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/blockberries/eeproxy"
	eeproxytest "github.com/blockberries/eeproxy/testing"
	"github.com/blockberries/eeproxy/types"
)

func TestCounter_Compliance(t *testing.T) {
	eeproxytest.RunComplianceSuite(t, func() eeproxy.Handler {
		return New()
	},
		eeproxytest.Case{Method: "increment", Params: IncrementParams(1)},
		eeproxytest.Case{Method: "get"},
	)
}

func TestCounter_Increment(t *testing.T) {
	h := eeproxytest.NewHarness(t, New())

	res := h.Call("increment", IncrementParams(5))
	if !res.OK() {
		t.Fatalf("increment failed: %s %s", res.Status, res.Result)
	}
	count, err := DecodeCount(res.Result)
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("expected count=5, got %d", count)
	}
	// load + store + event.
	if res.Used.Int64() != 3 {
		t.Errorf("expected used=3, got %s", res.Used)
	}
}

func TestCounter_MultipleIncrements(t *testing.T) {
	h := eeproxytest.NewHarness(t, New())

	h.Call("increment", IncrementParams(3))
	h.Call("increment", IncrementParams(7))

	res := h.Call("get", nil)
	count, _ := DecodeCount(res.Result)
	if count != 10 {
		t.Errorf("expected count=10, got %d", count)
	}

	evs := h.Store().Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if sig, _ := evs[1].Event.Signature(); sig != EventIncremented {
		t.Errorf("unexpected signature %q", sig)
	}
	if total := evs[1].Event.Data[0].(*big.Int); total.Int64() != 10 {
		t.Errorf("event total: got %s", total)
	}
}

func TestCounter_InvalidParams(t *testing.T) {
	h := eeproxytest.NewHarness(t, New())

	res := h.Call("increment", []byte{1, 2, 3})
	if res.Status != types.StatusInvalidParameter {
		t.Fatalf("expected InvalidParameter, got %s", res.Status)
	}

	// State unchanged.
	count, _ := DecodeCount(h.Call("get", nil).Result)
	if count != 0 {
		t.Errorf("expected count=0, got %d", count)
	}
}

func TestCounter_UnknownMethod(t *testing.T) {
	h := eeproxytest.NewHarness(t, New())
	res := h.Call("decrement", nil)
	if res.Status != types.StatusMethodNotFound {
		t.Fatalf("expected MethodNotFound, got %s", res.Status)
	}
}

func TestCounter_OutOfStep(t *testing.T) {
	h := eeproxytest.NewHarness(t, New())

	req := eeproxytest.MakeRequest("increment", IncrementParams(1))
	req.Limit = big.NewInt(2)
	res := h.Invoke(req)
	if res.Status != types.StatusOutOfStep {
		t.Fatalf("expected OutOfStep, got %s", res.Status)
	}
	if res.Used.Cmp(req.Limit) > 0 {
		t.Errorf("used %s exceeds limit %s", res.Used, req.Limit)
	}
}

func TestCounter_MockProxy(t *testing.T) {
	p := eeproxytest.NewMockProxy()
	app := New()

	res, err := app.Invoke(context.Background(), p, eeproxytest.MakeRequest("increment", IncrementParams(4)))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if count, _ := DecodeCount(res.Result); count != 4 {
		t.Errorf("expected count=4, got %d", count)
	}
	if p.SetValueCalls.Load() != 1 || len(p.Events) != 1 {
		t.Errorf("expected 1 write and 1 event, got %d and %d", p.SetValueCalls.Load(), len(p.Events))
	}

	_, err = app.Invoke(context.Background(), p, eeproxytest.MakeRequest("increment", nil))
	if s, ok := eeproxy.IsStatus(err); !ok || s.Status != types.StatusInvalidParameter {
		t.Fatalf("expected InvalidParameter status error, got %v", err)
	}
	if errors.Is(err, types.ErrIllegalFormat) {
		t.Fatal("params error should not be IllegalFormat")
	}
}
