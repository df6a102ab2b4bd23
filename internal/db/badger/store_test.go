package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/zoomgraph/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewInMemoryStore()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestKV_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "zg:current", []byte("run-1")))
	got, err := s.Get(ctx, "zg:current")
	require.NoError(t, err)
	assert.Equal(t, "run-1", string(got))

	require.NoError(t, s.Del(ctx, "zg:current"))
	_, err = s.Get(ctx, "zg:current")
	assert.True(t, errors.Is(err, db.ErrKeyNotFound))
}

func TestHash_Operations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.HSet(ctx, "zg:runs", map[string]string{"r1": "a", "r2": "b"}))
	require.NoError(t, s.HSetMulti(ctx, []db.HashSetItem{
		{Key: "zg:runs", Fields: map[string]string{"r3": "c"}},
		{Key: "zg:other", Fields: map[string]string{"x": "y"}},
	}))

	m, err := s.HGetAll(ctx, "zg:runs")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"r1": "a", "r2": "b", "r3": "c"}, m)

	require.NoError(t, s.HDel(ctx, "zg:runs", "r1"))
	m, err = s.HGetAll(ctx, "zg:runs")
	require.NoError(t, err)
	assert.Len(t, m, 2)

	empty, err := s.HGetAll(ctx, "zg:missing")
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Del removes every field of the hash without touching its neighbors.
	require.NoError(t, s.Del(ctx, "zg:runs"))
	m, err = s.HGetAll(ctx, "zg:runs")
	require.NoError(t, err)
	assert.Empty(t, m)
	m, err = s.HGetAll(ctx, "zg:other")
	require.NoError(t, err)
	assert.Len(t, m, 1)
}

func TestScan_MatchesBothNamespaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "zg:run:b:layout", []byte("x")))
	require.NoError(t, s.Set(ctx, "zg:run:a:clustering", []byte("x")))
	require.NoError(t, s.HSet(ctx, "zg:run:a:meta", map[string]string{"f": "v"}))
	require.NoError(t, s.Set(ctx, "other:key", []byte("x")))

	keys, err := s.Scan(ctx, "zg:run:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"zg:run:a:clustering", "zg:run:a:meta", "zg:run:b:layout"}, keys)

	_, err = s.Scan(ctx, "[")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	s, err := NewInMemoryStore()
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.WaitForReady(context.Background(), 0))
	s.Close()
	assert.Error(t, s.Ping(context.Background()))
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore(Config{})
	assert.Error(t, err)
}
