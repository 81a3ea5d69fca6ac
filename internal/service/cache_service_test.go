package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCacheStore struct{}

func (brokenCacheStore) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection reset")
}

func (brokenCacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("connection reset")
}

func (brokenCacheStore) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	return 0, errors.New("connection reset")
}

func TestCacheServiceDisabled(t *testing.T) {
	assert.Nil(t, NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, false))
	assert.Nil(t, NewCacheService(nil, nil, time.Minute, nil, true))
	assert.Nil(t, NewAvailabilityCache(nil, time.Minute, nil))

	var svc *CacheService
	ctx := context.Background()
	var dest map[string]int
	assert.False(t, svc.Lookup(ctx, "k", &dest))
	svc.Store(ctx, "k", map[string]int{"a": 1}, 0)
	removed, err := svc.Invalidate(ctx, "k*")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCacheRepo(), metrics, 0, nil, true)
	ctx := context.Background()

	var dest map[string]int
	assert.False(t, svc.Lookup(ctx, "availability:ay-2025:t1", &dest))
	svc.Store(ctx, "availability:ay-2025:t1", map[string]int{"free": 3}, 0)
	require.True(t, svc.Lookup(ctx, "availability:ay-2025:t1", &dest))
	assert.Equal(t, 3, dest["free"])

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))

	removed, err := svc.Invalidate(ctx, "availability:ay-2025:*")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestCacheServiceFailuresDegradeToMisses(t *testing.T) {
	svc := NewCacheService(brokenCacheStore{}, nil, time.Minute, nil, true)
	ctx := context.Background()

	var dest map[string]int
	assert.False(t, svc.Lookup(ctx, "k", &dest))
	svc.Store(ctx, "k", dest, 0)
	_, err := svc.Invalidate(ctx, "k*")
	assert.Error(t, err)
}
