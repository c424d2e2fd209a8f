package memory

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/eeproxy/types"
)

func TestStore_KV(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	v, err := s.GetValue(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.False(t, v.Exists)
	assert.Empty(t, v.Value)

	require.NoError(t, s.SetValue(ctx, []byte("hello"), []byte("world")))
	v, err = s.GetValue(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.True(t, v.Exists)
	assert.Equal(t, "world", string(v.Value))

	// The stored value is a copy.
	v.Value[0] = 'W'
	v, _ = s.GetValue(ctx, []byte("hello"))
	assert.Equal(t, "world", string(v.Value))

	require.NoError(t, s.DeleteValue(ctx, []byte("hello")))
	v, err = s.GetValue(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.False(t, v.Exists)
}

func TestStore_InfoBalanceEvents(t *testing.T) {
	ctx := context.Background()
	s := New(map[string]any{types.InfoBlockHeight: 7})

	info, err := s.GetInfo(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, 7, info[types.InfoBlockHeight])
	assert.Equal(t, []byte("code-1"), info[types.InfoTxHash])

	// GetInfo does not leak the per-call hash into the template.
	info2, _ := s.GetInfo(ctx, "code-2")
	assert.Equal(t, []byte("code-2"), info2[types.InfoTxHash])

	addr := types.MustParseAddress("hx1111111111111111111111111111111111111111")
	bal, err := s.GetBalance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())
	s.SetBalance(addr, big.NewInt(500))
	bal, _ = s.GetBalance(ctx, addr)
	assert.Equal(t, int64(500), bal.Int64())

	require.NoError(t, s.OnEvent(ctx, "code-1", types.Event{Indexed: []any{"E()"}}))
	evs := s.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "code-1", evs[0].Code)
}
