package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type payload struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

func TestMemoryCacheRoundTripsJSON(t *testing.T) {
	defer goleak.VerifyNone(t)
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := payload{Columns: []string{"a"}, Rows: [][]float64{{0.1}, {0.2}}}
	require.NoError(t, mc.Set(ctx, "run:1:table", in, time.Minute))

	var out payload
	require.NoError(t, mc.Get(ctx, "run:1:table", &out))
	assert.Equal(t, in, out)

	require.NoError(t, mc.Set(ctx, "latest", "run-1", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "latest", &s))
	assert.Equal(t, "run-1", s)

	ok, err := mc.Exists(ctx, "missing", "latest")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mc.Delete(ctx, "latest"))
	assert.ErrorIs(t, mc.Get(ctx, "latest", &s), ErrCacheMiss)
}

func TestMemoryCacheExpiryAndEviction(t *testing.T) {
	defer goleak.VerifyNone(t)
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	var v string
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))

	ok, err := mc.Expire(ctx, "a", -time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, mc.Get(ctx, "a", &v), ErrCacheMiss)

	require.NoError(t, mc.MSet(ctx, map[string]interface{}{"x": 1, "y": 2}, time.Minute))
	var n int
	require.NoError(t, mc.Get(ctx, "y", &n))
	assert.Equal(t, 2, n)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "run:abc:table", Key("run", "abc", "table"))
}
