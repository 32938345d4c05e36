package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"

	"go-match/internal/cache"
	"go-match/internal/errs"
	"go-match/internal/models"
)

// DailyQuota 基于 Redis 的按用户按日限额计数。
// 与令牌桶不同，这里的语义是"当日硬上限"：
// - 单个 Lua 脚本完成检查与自增，杜绝两步读写的竞态
// - 已达上限时不产生任何变更，计数在日键内单调不减
// - 键带 48h 过期仅作垃圾回收，真正的重置由日键切换天然完成
type DailyQuota struct {
	client *redis.Client
}

func NewDailyQuota(c *redis.Client) *DailyQuota { return &DailyQuota{client: c} }

var quotaScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])

local cur = tonumber(redis.call('GET', key) or '0')
if cur >= limit then
  return {0, cur}
end
cur = redis.call('INCR', key)
redis.call('EXPIRE', key, 172800)
return {1, cur}
`)

// ConsumeOrReject 单步原子消费；已达 limit 时返回 QuotaExceededError。
func (q *DailyQuota) ConsumeOrReject(ctx context.Context, uid, dayKey string, limit int64) (*models.QuotaResult, error) {
	vals, err := quotaScript.Run(ctx, q.client, []string{cache.QuotaKey(uid, dayKey)}, limit).Result()
	if err != nil {
		return nil, errs.Transient("quota.consume", err)
	}
	arr := vals.([]interface{})
	count := arr[1].(int64)
	if arr[0].(int64) != 1 {
		return nil, &errs.QuotaExceededError{Limit: limit, Current: count}
	}
	return &models.QuotaResult{Count: count, Limit: limit}, nil
}

// Current 查询当前计数（只读）。
func (q *DailyQuota) Current(ctx context.Context, uid, dayKey string) (int64, error) {
	v, err := q.client.Get(ctx, cache.QuotaKey(uid, dayKey)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errs.Transient("quota.current", err)
	}
	return v, nil
}
