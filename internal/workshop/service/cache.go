package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bitfantasy/oficina/internal/metrics"
	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/redis/go-redis/v9"
)

const (
	appointmentCachePrefix   = "oficina:appointment:"
	appointmentVersionPrefix = "oficina:appointment:ver:"

	// 版本号需比详情缓存活得久
	versionTTL = 24 * time.Hour
)

var errStaleEntry = errors.New("appointment changed while loading")

// AppointmentCache 工单详情缓存。工时由读取时刻重新计算，缓存内容不依赖当前时间。
// 每次失效递增版本号，回源结果只有在版本未变时才写回，避免旧数据覆盖失效。
// 所有方法对nil接收者安全。
type AppointmentCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	metrics *metrics.Server
}

func NewAppointmentCache(rdb *redis.Client, ttl time.Duration, m *metrics.Server) *AppointmentCache {
	return &AppointmentCache{rdb: rdb, ttl: ttl, metrics: m}
}

// Get 命中返回工单；未命中或redis异常返回nil，由调用方回源
func (c *AppointmentCache) Get(ctx context.Context, id string) *entity.Appointment {
	if c == nil {
		return nil
	}
	raw, err := c.rdb.Get(ctx, appointmentCachePrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.ObserveCache("miss")
		} else {
			c.metrics.ObserveCache("error")
		}
		return nil
	}

	var a entity.Appointment
	if err := json.Unmarshal(raw, &a); err != nil {
		c.metrics.ObserveCache("error")
		return nil
	}
	c.metrics.ObserveCache("hit")
	return &a
}

// Version 回源前读取的失效版本号。ok为false时不应写回
func (c *AppointmentCache) Version(ctx context.Context, id string) (version int64, ok bool) {
	if c == nil {
		return 0, false
	}
	v, err := c.rdb.Get(ctx, appointmentVersionPrefix+id).Int64()
	switch {
	case err == nil:
		return v, true
	case errors.Is(err, redis.Nil):
		return 0, true
	default:
		return 0, false
	}
}

// Set 写回回源结果。读取version之后发生过失效则放弃写入
func (c *AppointmentCache) Set(ctx context.Context, a *entity.Appointment, version int64) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}

	verKey := appointmentVersionPrefix + a.ID
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, verKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return errStaleEntry
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, appointmentCachePrefix+a.ID, raw, c.ttl)
			return nil
		})
		return err
	}, verKey)
	if errors.Is(err, errStaleEntry) || errors.Is(err, redis.TxFailedErr) {
		c.metrics.ObserveCache("stale")
	}
}

// Invalidate 递增版本号并删除详情
func (c *AppointmentCache) Invalidate(ctx context.Context, id string) {
	if c == nil {
		return
	}
	verKey := appointmentVersionPrefix + id
	c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, versionTTL)
		pipe.Del(ctx, appointmentCachePrefix+id)
		return nil
	})
}
