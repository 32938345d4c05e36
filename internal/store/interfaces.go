package store

import (
	"context"
	"time"

	"go-match/internal/models"
)

// 本文件定义各存储的抽象接口，便于在 MySQL / MongoDB / 内存实现之间切换。
// 约定：所有"建立新事实"的写入（喜欢边、配对、会话、幂等标记、限额计数）
// 必须由实现以单个原子动作完成（唯一约束上的 create-if-absent 或等价物），
// 不允许拆成先读后写两步。

// LikeStoreInterface 喜欢边与配对存储：
// - AddLike：幂等写入有向边，返回本次是否新建
// - HasLike：反向边探测
// - CreateMatch：规范 ID 上的 create-if-absent，首建者返回 true
type LikeStoreInterface interface {
	// AddLike 写入 LikeEdge(from,to)；已存在时为 no-op，返回 created=false。
	AddLike(ctx context.Context, from, to string, at time.Time) (created bool, err error)
	// HasLike 判断有向边 (from,to) 是否存在。
	HasLike(ctx context.Context, from, to string) (bool, error)
	// CreateMatch 在规范 ID 上创建配对；并发调用恰有一个返回 created=true。
	CreateMatch(ctx context.Context, m *models.Match) (created bool, err error)
	// GetMatch 按规范 ID 查询配对；不存在返回 nil。
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	// ListMatches 列出 uid 参与的配对，按创建时间倒序。
	ListMatches(ctx context.Context, uid string, limit int) ([]*models.Match, error)
	// ListLikers 喜欢过 to 的用户边，按创建时间倒序。
	ListLikers(ctx context.Context, to string, limit int) ([]*models.LikeEdge, error)
	// ListLiked from 发出的喜欢边，按创建时间倒序。
	ListLiked(ctx context.Context, from string, limit int) ([]*models.LikeEdge, error)
}

// ThreadStoreInterface 会话与消息存储：
// - EnsureThread：规范 ID 上的懒创建，并发安全
// - AppendMessage：追加消息并原子更新 lastMessage/readBy
// - MarkRead：成员已读标记，幂等
type ThreadStoreInterface interface {
	// EnsureThread 返回或创建无序对 (a,b) 的会话。
	EnsureThread(ctx context.Context, a, b string, at time.Time) (*models.Thread, error)
	// GetThread 按 ID 查询会话；不存在返回 nil。
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	// AppendMessage 追加消息，同一事务内更新会话摘要并把 readBy 重置为 {fromId}。
	AppendMessage(ctx context.Context, m *models.Message) error
	// MarkRead 置 readBy[uid]=true；重复调用为 no-op。
	MarkRead(ctx context.Context, threadID, uid string) error
	// ListThreadsForUser 按 lastMessage.at 倒序返回 uid 的会话。
	ListThreadsForUser(ctx context.Context, uid string, limit int) ([]*models.Thread, error)
	// ListMessages 按 (createdAt, id) 升序返回 afterID 之后的消息。
	ListMessages(ctx context.Context, threadID, afterID string, limit int) ([]*models.Message, error)
}

// LedgerStoreInterface 通用写一次幂等账本。
type LedgerStoreInterface interface {
	// TryClaim 事务性创建永久标记；同一 key 的所有并发调用恰有一个返回 true。
	TryClaim(ctx context.Context, key string, at time.Time) (bool, error)
}

// QuotaStoreInterface 按用户按日的原子限额计数。
type QuotaStoreInterface interface {
	// ConsumeOrReject 单步原子消费：已达 limit 时返回 QuotaExceededError 且不产生任何变更。
	ConsumeOrReject(ctx context.Context, uid, dayKey string, limit int64) (*models.QuotaResult, error)
	// Current 查询当前计数（只读快照）。
	Current(ctx context.Context, uid, dayKey string) (int64, error)
}

// PresenceStoreInterface 在线/输入中状态，心跳只刷新 lastSeen。
type PresenceStoreInterface interface {
	SetOnline(ctx context.Context, uid string, online bool, at time.Time) error
	Heartbeat(ctx context.Context, uid string, at time.Time) error
	SetTyping(ctx context.Context, uid, threadID string) error
	Get(ctx context.Context, uid string) (*models.PresenceRecord, error)
}

// StreakStoreInterface 连续活跃与参与度计数：
// Tick/RecordEvent 的读改写必须在单个事务（或等价互斥）内完成。
type StreakStoreInterface interface {
	// Tick 将 uid 推进到 today（models.AdvanceStreak 语义），返回更新后的记录。
	Tick(ctx context.Context, uid, today string) (*models.StreakRecord, error)
	// Get 查询记录；从未活跃的用户返回零值记录。
	Get(ctx context.Context, uid string) (*models.StreakRecord, error)
	// RecordEvent 原子自增事件计数并返回新值；跨过阈值的徽章由实现一并永久置位。
	RecordEvent(ctx context.Context, uid string, kind models.EventKind) (newCount int64, awarded []string, err error)
}

// UserStoreInterface 用户账号（身份提供方/联系方式解析/权益标记）。
type UserStoreInterface interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
	UpdateNotifyPrefs(ctx context.Context, uid string, enabled, onLike, onMatch bool) error
	SetUnlimited(ctx context.Context, uid string, unlimited bool) error
	// ResolveContact 解析 uid 的通知地址；无地址返回空串。
	ResolveContact(ctx context.Context, uid string) (string, error)
}
