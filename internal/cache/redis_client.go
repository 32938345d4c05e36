package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go-match/internal/models"
)

// 本包封装了 Redis 客户端与常用键：
// - 在线状态哈希：dm:presence:<userId>（online/last_seen/typing）
// - 全局在线集合：dm:presence:online
// - 投递通道：dm:deliver:<userId>
// - 每日限额计数：dm:quota:<userId>:<dayKey>（由 ratelimit 包的 Lua 脚本维护）
var (
	redisClient *redis.Client
)

func InitRedis(addr, pass string, db int) {
	redisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})
}

func Client() *redis.Client { return redisClient }

// PresenceKey 返回用户状态哈希键；OnlineUsersKey 返回全局在线集合键；
// DeliverChannel 返回用户投递通道；QuotaKey 返回每日限额计数键。
func PresenceKey(userID string) string { return fmt.Sprintf("dm:presence:%s", userID) }
func OnlineUsersKey() string           { return "dm:presence:online" }
func DeliverChannel(userID string) string {
	return fmt.Sprintf("dm:deliver:%s", userID)
}
func QuotaKey(userID, dayKey string) string {
	return fmt.Sprintf("dm:quota:%s:%s", userID, dayKey)
}

// PresenceStore 基于 Redis 哈希的在线状态实现：
// - SetOnline：整体 upsert（online + last_seen），并维护全局在线集合
// - Heartbeat：只刷新 last_seen
// - SetTyping：写入/清除"输入中"的会话 ID
// 写入只来自状态所属用户，last-write-wins。
type PresenceStore struct{}

func NewPresenceStore() *PresenceStore { return &PresenceStore{} }

func (p *PresenceStore) SetOnline(ctx context.Context, uid string, online bool, at time.Time) error {
	pipe := redisClient.TxPipeline()
	pipe.HSet(ctx, PresenceKey(uid), "online", boolField(online), "last_seen", at.UnixMilli())
	if online {
		pipe.SAdd(ctx, OnlineUsersKey(), uid)
	} else {
		pipe.SRem(ctx, OnlineUsersKey(), uid)
		pipe.HDel(ctx, PresenceKey(uid), "typing")
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) Heartbeat(ctx context.Context, uid string, at time.Time) error {
	return redisClient.HSet(ctx, PresenceKey(uid), "last_seen", at.UnixMilli()).Err()
}

func (p *PresenceStore) SetTyping(ctx context.Context, uid, threadID string) error {
	if threadID == "" {
		return redisClient.HDel(ctx, PresenceKey(uid), "typing").Err()
	}
	return redisClient.HSet(ctx, PresenceKey(uid), "typing", threadID).Err()
}

func (p *PresenceStore) Get(ctx context.Context, uid string) (*models.PresenceRecord, error) {
	vals, err := redisClient.HGetAll(ctx, PresenceKey(uid)).Result()
	if err != nil {
		return nil, err
	}
	rec := &models.PresenceRecord{UserID: uid}
	rec.Online = vals["online"] == "1"
	rec.TypingThreadID = vals["typing"]
	if ms, ok := vals["last_seen"]; ok {
		var v int64
		_, _ = fmt.Sscanf(ms, "%d", &v)
		rec.LastSeen = time.UnixMilli(v)
	}
	return rec, nil
}

// OnlineUsers 查询全局在线集合（快照读，允许有界脏读）。
func OnlineUsers(ctx context.Context) ([]string, error) {
	return redisClient.SMembers(ctx, OnlineUsersKey()).Result()
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
