package sqlite

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/eeproxy/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path, nil)
		require.NoError(t, err, "Open() iteration %d", i)

		var version int
		require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
		assert.Equal(t, currentSchemaVersion, version)
		require.NoError(t, s.Close())
	}
}

func TestStore_KV(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	v, err := s.GetValue(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.False(t, v.Exists)
	assert.Equal(t, []byte{}, v.Value)

	require.NoError(t, s.SetValue(ctx, []byte("hello"), []byte("world")))
	v, err = s.GetValue(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.True(t, v.Exists)
	assert.Equal(t, "world", string(v.Value))

	require.NoError(t, s.SetValue(ctx, []byte("hello"), []byte("again")))
	v, _ = s.GetValue(ctx, []byte("hello"))
	assert.Equal(t, "again", string(v.Value))

	// Empty values exist.
	require.NoError(t, s.SetValue(ctx, []byte("empty"), nil))
	v, _ = s.GetValue(ctx, []byte("empty"))
	assert.True(t, v.Exists)
	assert.Empty(t, v.Value)

	require.NoError(t, s.DeleteValue(ctx, []byte("hello")))
	v, _ = s.GetValue(ctx, []byte("hello"))
	assert.False(t, v.Exists)
}

func TestStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetValue(ctx, []byte("k"), []byte("v")))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.GetValue(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "v", string(v.Value))
}

func TestStore_Info(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	owner := types.MustParseAddress("hx1111111111111111111111111111111111111111")

	require.NoError(t, s.SetInfo(ctx, types.InfoBlockHeight, 12))
	require.NoError(t, s.SetInfo(ctx, types.InfoContractOwner, owner))

	info, err := s.GetInfo(ctx, "code-9")
	require.NoError(t, err)
	assert.Equal(t, int64(12), info[types.InfoBlockHeight].(*big.Int).Int64())
	assert.Equal(t, owner, info[types.InfoContractOwner])
	assert.Equal(t, []byte("code-9"), info[types.InfoTxHash])

	err = s.SetInfo(ctx, "bad", struct{}{})
	assert.ErrorIs(t, err, types.ErrUnknownType)
}

func TestStore_Balance(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	addr := types.MustParseAddress("hx2222222222222222222222222222222222222222")

	bal, err := s.GetBalance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())

	require.NoError(t, s.SetBalance(ctx, addr, big.NewInt(1_000_000)))
	bal, err = s.GetBalance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), bal.Int64())
}

func TestStore_Events(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	addr := types.MustParseAddress("cx0004444444444444444444444444444444444444")

	require.NoError(t, s.OnEvent(ctx, "a", types.Event{
		Indexed: []any{"LogEvent(int,str,Address)", 1, "TEST"},
		Data:    []any{addr},
	}))
	require.NoError(t, s.OnEvent(ctx, "b", types.Event{Indexed: []any{"Other()"}}))

	all, err := s.Events(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "LogEvent(int,str,Address)", all[0].Signature)
	assert.Equal(t, "Other()", all[1].Signature)
	assert.Less(t, all[0].Seq, all[1].Seq)

	onlyA, err := s.Events(ctx, "a")
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	ev := onlyA[0].Event
	require.Len(t, ev.Indexed, 3)
	assert.Equal(t, "TEST", ev.Indexed[2])
	assert.Equal(t, int64(1), ev.Indexed[1].(*big.Int).Int64())
	require.Len(t, ev.Data, 1)
	assert.Equal(t, addr, ev.Data[0])
}
