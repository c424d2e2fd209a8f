// Package sample implements the reference test engine: every
// invocation, whatever its method, exercises each nested call once and
// succeeds with a fixed resource usage.
package sample

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/types"
)

// Compile-time interface check.
var _ eeproxy.Handler = (*Handler)(nil)

// EventSignature is the signature of the event emitted per invocation.
const EventSignature = "LogEvent(int,str,Address)"

// Used is the resource usage reported by every invocation.
var Used = big.NewInt(10)

// EventAddress is the address carried in the event data.
var EventAddress = types.MustParseAddress("cx0004444444444444444444444444444444444444")

// Handler is the sample engine.
type Handler struct {
	log zerolog.Logger
}

// New creates a sample handler that traces each step to log.
func New(log zerolog.Logger) *Handler {
	return &Handler{log: log}
}

func (h *Handler) Invoke(ctx context.Context, p eeproxy.Proxy, req types.InvokeRequest) (types.InvokeResult, error) {
	h.log.Info().
		Str("code", req.Code).
		Stringer("from", req.From).
		Stringer("to", req.To).
		Str("value", req.Value.String()).
		Str("limit", req.Limit.String()).
		Str("method", req.Method).
		Hex("params", req.Params).
		Msg("invoke_handler")

	if err := p.SetValue(ctx, []byte("hello"), []byte("world")); err != nil {
		return types.InvokeResult{}, fmt.Errorf("set_value: %w", err)
	}
	h.log.Info().Str("key", "hello").Str("value", "world").Msg("set_value")

	for _, key := range []string{"hello", "foo"} {
		ok, v, err := p.GetValue(ctx, []byte(key))
		if err != nil {
			return types.InvokeResult{}, fmt.Errorf("get_value(%s): %w", key, err)
		}
		h.log.Info().Str("key", key).Bool("exists", ok).Bytes("value", v).Msg("get_value")
	}

	info, err := p.GetInfo(ctx)
	if err != nil {
		return types.InvokeResult{}, fmt.Errorf("get_info: %w", err)
	}
	h.log.Info().Interface("info", info).Msg("get_info")

	indexed := []any{EventSignature, 1, "TEST"}
	data := []any{EventAddress}
	if err := p.SendEvent(ctx, indexed, data); err != nil {
		return types.InvokeResult{}, fmt.Errorf("send_event: %w", err)
	}
	h.log.Info().Interface("indexed", indexed).Stringer("data", EventAddress).Msg("send_event")

	return types.InvokeResult{
		Status: types.StatusSuccess,
		Used:   new(big.Int).Set(Used),
		Result: []byte{},
	}, nil
}
