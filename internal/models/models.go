package models

import "time"

// User/LikeEdge/Match/Thread/Message 等为核心领域模型。
// 配对（Match）与会话（Thread）均以无序用户对的规范键为主键，
// 保证 (A,B) 与 (B,A) 永远落在同一行上。

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// 通知偏好：全局开关 + 按事件类型开关
	NotifyEnabled bool `json:"notifyEnabled"`
	NotifyOnLike  bool `json:"notifyOnLike"`
	NotifyOnMatch bool `json:"notifyOnMatch"`

	// 付费侧只建模为一个布尔位：true 表示不受每日开聊限额约束
	Unlimited bool `json:"unlimited"`

	Online bool `json:"online,omitempty"` // 在线状态（管理后台使用）
}

// LikeEdge 有向喜欢边，键为 (from,to)，创建幂等且不可变。
type LikeEdge struct {
	FromID    string    `json:"fromId"`
	ToID      string    `json:"toId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Match 双向喜欢成立后的配对，ID 为规范对键，每个无序对至多一条。
type Match struct {
	ID        string    `json:"id"`
	MemberA   string    `json:"memberA"`
	MemberB   string    `json:"memberB"`
	CreatedAt time.Time `json:"createdAt"`
}

// Other 返回对端成员；uid 不在配对中时返回空串。
func (m *Match) Other(uid string) string {
	switch uid {
	case m.MemberA:
		return m.MemberB
	case m.MemberB:
		return m.MemberA
	}
	return ""
}

// LastMessage 会话最新一条消息的摘要，ReadBy 在每次发送后重置为 {fromId}。
type LastMessage struct {
	ID     string          `json:"id"`
	Text   string          `json:"text"`
	FromID string          `json:"fromId"`
	At     time.Time       `json:"at"`
	ReadBy map[string]bool `json:"readBy"`
}

// Thread 每个无序对唯一的会话容器，按需懒创建。
type Thread struct {
	ID          string       `json:"id"`
	MemberA     string       `json:"memberA"`
	MemberB     string       `json:"memberB"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// HasMember 判断 uid 是否为会话成员。
func (t *Thread) HasMember(uid string) bool {
	return uid != "" && (uid == t.MemberA || uid == t.MemberB)
}

// UnreadFor 未读派生（纯函数）：存在最新消息、发送者不是本人、
// 且本人尚未出现在 readBy 中时为未读。
func (t *Thread) UnreadFor(uid string) bool {
	lm := t.LastMessage
	if lm == nil {
		return false
	}
	if lm.FromID == uid {
		return false
	}
	return !lm.ReadBy[uid]
}

// Message 会话内消息，仅追加。
// ID 以服务端纳秒时间戳为前缀，(CreatedAt, ID) 构成全序，
// 同一毫秒内的多条消息也能保持发送顺序。
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	FromID    string    `json:"fromId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// PresenceRecord 在线状态记录，只由所属用户写入。
// Online 为会话生命周期内 last-write-wins 的标记，异常断开后可能残留，
// 需要严格活性的消费方应使用 OnlineWithin 按 LastSeen 派生。
type PresenceRecord struct {
	UserID         string    `json:"userId"`
	Online         bool      `json:"online"`
	LastSeen       time.Time `json:"lastSeen"`
	TypingThreadID string    `json:"typingThreadId,omitempty"`
}

// OnlineWithin 依据 LastSeen 距今时长派生活性。
func (p *PresenceRecord) OnlineWithin(maxAge time.Duration, now time.Time) bool {
	if !p.Online {
		return false
	}
	return now.Sub(p.LastSeen) <= maxAge
}

// StreakRecord 连续活跃记录与已获得的徽章（徽章只增不减）。
type StreakRecord struct {
	UserID        string          `json:"userId"`
	LastActiveDay string          `json:"lastActiveDay"` // UTC 日键，如 2025-03-09；空串表示从未活跃
	StreakCurrent int             `json:"streakCurrent"`
	StreakLongest int             `json:"streakLongest"`
	Badges        map[string]bool `json:"badges"`
}

// QuotaResult 限额消费成功后的计数快照。
type QuotaResult struct {
	Count int64 `json:"count"`
	Limit int64 `json:"limit"`
}

// IdempotencyMark 写一次即永久的处理标记，存在即表示已处理。
type IdempotencyMark struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
}
