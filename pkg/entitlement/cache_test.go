package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_RoundTrip(t *testing.T) {
	cache := NewMemoryCache(64, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)

	state := NewFeatureState(1, []string{PackageAsset}, []string{"beta"})
	cache.Set(ctx, 1, state)

	got, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	assert.True(t, HasPackage(got, PackageAsset))
	assert.True(t, HasFeature(got, "beta"))

	cache.Invalidate(ctx, 1)
	_, ok = cache.Get(ctx, 1)
	assert.False(t, ok)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 42)
	assert.False(t, ok)

	state := NewFeatureState(42, []string{PackageFull}, nil)
	cache.Set(ctx, 42, state)

	got, ok := cache.Get(ctx, 42)
	require.True(t, ok)
	assert.True(t, HasPackage(got, PackageDX))

	cache.Invalidate(ctx, 42)
	_, ok = cache.Get(ctx, 42)
	assert.False(t, ok)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, time.Second)
	ctx := context.Background()

	cache.Set(ctx, 42, NewFeatureState(42, []string{PackageAsset}, nil))
	mr.FastForward(2 * time.Second)

	_, ok := cache.Get(ctx, 42)
	assert.False(t, ok)
}
