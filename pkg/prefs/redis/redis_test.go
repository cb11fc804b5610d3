package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewStore(client)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestStore_GetSet(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "previousDirection")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "previousDirection", "LR"))
	v, ok, err := s.Get(ctx, "previousDirection")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "LR", v)

	members, err := mr.Members(keysSet)
	require.NoError(t, err)
	assert.Equal(t, []string{"graphview:state:previousDirection"}, members)
}

func TestStore_Clear(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))
	require.NoError(t, s.Clear(ctx))

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(keysSet))

	// clearing an empty store is fine
	require.NoError(t, s.Clear(ctx))
}

func TestStore_ServerDown(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, _, err := s.Get(context.Background(), "a")
	assert.Error(t, err)
	assert.Error(t, s.Set(context.Background(), "a", "1"))
}
