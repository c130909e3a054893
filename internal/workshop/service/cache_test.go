package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheLookups(f *fixture, result string) float64 {
	return promtest.ToFloat64(f.metrics.CacheLookups.WithLabelValues(result))
}

func TestAppointmentCache_TransitionInvalidates(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	ctx := context.Background()
	f := newFixture(t)
	f.svc.SetCache(NewAppointmentCache(rdb, time.Minute, f.metrics))

	a := f.create(t)
	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Equal(t, 1.0, cacheLookups(f, "miss"))

	// 绕过服务直接改库，命中缓存时仍返回旧值
	f.repo.Put(&entity.Appointment{ID: a.ID, Code: a.Code, Status: entity.StatusPending, Notes: "alterado"})
	got, err = f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Notes)
	assert.Equal(t, 1.0, cacheLookups(f, "hit"))

	_, err = f.svc.StartWork(ctx, a.ID)
	require.NoError(t, err)
	exists, err := rdb.Exists(ctx, appointmentCachePrefix+a.ID).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "transition drops the cached detail")

	f.clock.Advance(42 * time.Second)
	got, err = f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInRepair, got.Status)
	assert.Equal(t, int64(42), got.ElapsedSeconds, "elapsed is computed at read time")
	assert.Equal(t, 2.0, cacheLookups(f, "miss"))

	got, err = f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInRepair, got.Status)
	assert.Equal(t, 2.0, cacheLookups(f, "hit"))
}

func TestAppointmentCache_CorruptEntryFallsBack(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	ctx := context.Background()
	f := newFixture(t)
	f.svc.SetCache(NewAppointmentCache(rdb, time.Minute, f.metrics))

	a := f.create(t)
	require.NoError(t, rdb.Set(ctx, appointmentCachePrefix+a.ID, "{not json", time.Minute).Err())

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Code, got.Code)
	assert.Equal(t, 1.0, cacheLookups(f, "error"))
}

func TestAppointmentCache_StaleLoadIsNotWritten(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	ctx := context.Background()
	f := newFixture(t)
	cache := NewAppointmentCache(rdb, time.Minute, f.metrics)

	stale := &entity.Appointment{ID: "os-1", Status: entity.StatusPending}
	version, ok := cache.Version(ctx, "os-1")
	require.True(t, ok)

	// 回源期间另一请求完成了迁移
	cache.Invalidate(ctx, "os-1")
	cache.Set(ctx, stale, version)
	assert.Nil(t, cache.Get(ctx, "os-1"))
	assert.Equal(t, 1.0, cacheLookups(f, "stale"))

	version, ok = cache.Version(ctx, "os-1")
	require.True(t, ok)
	cache.Set(ctx, stale, version)
	require.NotNil(t, cache.Get(ctx, "os-1"))
}

func TestAppointmentCache_RedisDownFallsBack(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	ctx := context.Background()
	f := newFixture(t)
	f.svc.SetCache(NewAppointmentCache(rdb, time.Minute, f.metrics))

	a := f.create(t)
	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, 1.0, cacheLookups(f, "error"))

	_, err = f.svc.StartWork(ctx, a.ID)
	require.NoError(t, err, "transitions do not depend on the cache")
}

func TestAppointmentCache_NilIsNoop(t *testing.T) {
	var cache *AppointmentCache
	ctx := context.Background()
	assert.Nil(t, cache.Get(ctx, "x"))
	_, ok := cache.Version(ctx, "x")
	assert.False(t, ok)
	cache.Set(ctx, &entity.Appointment{ID: "x"}, 0)
	cache.Invalidate(ctx, "x")
}
