package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheService_MemoryFallback(t *testing.T) {
	t.Parallel()

	// No Redis client: everything lands in the in-memory layer.
	cache := NewCacheService(nil, time.Hour, testLogger())
	ctx := context.Background()

	_, err := cache.Get(ctx, "cert:STJ_PJ:11222333000181")
	require.Error(t, err)

	require.NoError(t, cache.Set(ctx, "cert:STJ_PJ:11222333000181", `{"stored_as":"a.pdf"}`))

	value, err := cache.Get(ctx, "cert:STJ_PJ:11222333000181")
	require.NoError(t, err)
	assert.Equal(t, `{"stored_as":"a.pdf"}`, value)
}

func TestCacheService_Expiry(t *testing.T) {
	t.Parallel()

	cache := NewCacheService(nil, -time.Second, testLogger())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "cert:STJ_PF:52998224725", "x"))

	// Entry was born expired.
	_, err := cache.Get(ctx, "cert:STJ_PF:52998224725")
	assert.Error(t, err)
}

func TestCacheService_Delete(t *testing.T) {
	t.Parallel()

	cache := NewCacheService(nil, time.Hour, testLogger())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "cert:TJGO_CIVEL:52998224725", "x"))
	require.NoError(t, cache.Delete(ctx, "cert:TJGO_CIVEL:52998224725"))

	_, err := cache.Get(ctx, "cert:TJGO_CIVEL:52998224725")
	assert.Error(t, err)
}

func TestCacheService_ClearOnlyCertEntries(t *testing.T) {
	t.Parallel()

	cache := NewCacheService(nil, time.Hour, testLogger())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "cert:STJ_PJ:11222333000181", "a"))
	require.NoError(t, cache.Set(ctx, "cert:TJGO_CRIMINAL:52998224725", "b"))
	require.NoError(t, cache.Set(ctx, "other:key", "c"))

	require.NoError(t, cache.Clear(ctx))

	_, err := cache.Get(ctx, "cert:STJ_PJ:11222333000181")
	assert.Error(t, err)
	_, err = cache.Get(ctx, "cert:TJGO_CRIMINAL:52998224725")
	assert.Error(t, err)

	value, err := cache.Get(ctx, "other:key")
	require.NoError(t, err)
	assert.Equal(t, "c", value)
}

func TestCacheService_Health(t *testing.T) {
	t.Parallel()

	cache := NewCacheService(nil, time.Hour, testLogger())
	require.NoError(t, cache.Set(context.Background(), "cert:STJ_PJ:1", "a"))

	health := cache.Health()
	assert.Equal(t, "disabled", health["redis"])
	assert.Equal(t, 1, health["memory_entries"])
}
