package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenVersions(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	v := NewTokenVersions(rdb)

	n, err := v.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n, "unknown users start at version 0")

	n, err = v.Bump(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = v.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, mr.Exists("tokenver:u1"))

	other, err := v.Current(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, other)

	require.NoError(t, v.Forget(ctx, "u1"))
	assert.False(t, mr.Exists("tokenver:u1"))
}
