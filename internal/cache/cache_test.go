package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	SetClient(c)
	t.Cleanup(func() {
		SetClient(nil)
		_ = c.Close()
	})
	return mr
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "account:42", AccountKey(42))
	assert.Equal(t, "blacklist:abc", BlacklistKey("abc"))
}

func TestNewClient_ParsesURL(t *testing.T) {
	c, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)
	_ = c.Close()

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}

func TestAside(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"n": calls}, nil
	}

	v, err := Aside(ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v["n"])

	v, err = Aside(ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v["n"])
	assert.Equal(t, 1, calls)

	Invalidate(ctx, "k")
	assert.False(t, mr.Exists("k"))

	v, err = Aside(ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, v["n"])
}

func TestAside_LoadErrorNotCached(t *testing.T) {
	mr := useMiniredis(t)
	_, err := Aside(context.Background(), "k", time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestAside_NoRedis(t *testing.T) {
	SetClient(nil)
	v, err := Aside(context.Background(), "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGetJSON_CorruptValueIsDropped(t *testing.T) {
	mr := useMiniredis(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var dest map[string]int
	assert.False(t, GetJSON(context.Background(), "k", &dest))
	assert.False(t, mr.Exists("k"))
}
