package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"go-match/internal/errs"
	"go-match/internal/metrics"
	"go-match/internal/models"
	"go-match/internal/moderation"
	"go-match/internal/store"
)

// ThreadView 会话 + 按当前用户推导的未读标记。
type ThreadView struct {
	*models.Thread
	Unread bool `json:"unread"`
}

// ChatService 会话消息：发送、已读、列表。
// 发送路径串起成员校验、内容审核、每日开聊配额与实时投递。
type ChatService struct {
	Threads store.ThreadStoreInterface
	Users   store.UserStoreInterface   // 可选：无限额用户豁免
	Quota   store.QuotaStoreInterface  // 可选：每日新开聊配额
	Streaks store.StreakStoreInterface // 可选：参与度计数

	Validator  moderation.Validator
	DailyLimit int64

	Deliver func(ctx context.Context, uid string, payload []byte) // 可选：实时推送
}

func NewChatService(threads store.ThreadStoreInterface, quota store.QuotaStoreInterface, dailyLimit int64) *ChatService {
	return &ChatService{
		Threads:    threads,
		Quota:      quota,
		Validator:  moderation.NewBasicValidator(),
		DailyLimit: dailyLimit,
	}
}

// EnsureThread 为两个用户取或建会话。
func (s *ChatService) EnsureThread(ctx context.Context, a, b string) (*models.Thread, error) {
	if a == "" || b == "" || a == b {
		return nil, errs.InvalidArgumentf("invalid thread members")
	}
	return s.Threads.EnsureThread(ctx, a, b, time.Now())
}

// SendMessage fromID 在 threadID 中发送文本。
// 首条消息视为"今日开聊"，消耗每日配额（无限额用户除外）。
func (s *ChatService) SendMessage(ctx context.Context, threadID, fromID, text string) (*models.Message, error) {
	if threadID == "" || fromID == "" {
		return nil, errs.InvalidArgumentf("empty thread or user id")
	}

	thread, err := s.Threads.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, errs.ErrNotFound
	}
	if !thread.HasMember(fromID) {
		return nil, errs.ErrNotAMember
	}

	res := s.Validator.Validate(text)
	if !res.OK {
		return nil, errs.InvalidArgumentf("message rejected: %s", res.Reason)
	}

	now := time.Now()

	// 配额只在会话尚无消息时检查：对旧会话继续聊天不受限
	if thread.LastMessage == nil && s.Quota != nil {
		exempt, err := s.quotaExempt(ctx, fromID)
		if err != nil {
			return nil, err
		}
		if !exempt {
			if _, err := s.Quota.ConsumeOrReject(ctx, fromID, models.DayKey(now), s.DailyLimit); err != nil {
				if _, ok := errs.IsQuotaExceeded(err); ok {
					metrics.QuotaRejectsTotal.Inc()
				}
				return nil, err
			}
		}
	}

	msg := &models.Message{
		ID:        models.NewMessageID(now),
		ThreadID:  threadID,
		FromID:    fromID,
		Text:      res.Cleaned,
		CreatedAt: now,
	}

	start := time.Now()
	if err := s.Threads.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesTotal.Inc()
	metrics.MessageSendLatency.Observe(float64(time.Since(start).Milliseconds()))

	s.recordEvent(fromID, models.EventMessageSent)
	s.deliverMessage(ctx, thread, msg)

	return msg, nil
}

// MarkRead fromID 把会话标记为已读；幂等。
func (s *ChatService) MarkRead(ctx context.Context, threadID, uid string) error {
	if threadID == "" || uid == "" {
		return errs.InvalidArgumentf("empty thread or user id")
	}
	thread, err := s.Threads.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if thread == nil {
		return errs.ErrNotFound
	}
	if !thread.HasMember(uid) {
		return errs.ErrNotAMember
	}
	return s.Threads.MarkRead(ctx, threadID, uid)
}

// ListThreads uid 的会话列表，带未读推导，按最近活动倒序。
func (s *ChatService) ListThreads(ctx context.Context, uid string, limit int) ([]*ThreadView, error) {
	if uid == "" {
		return nil, errs.InvalidArgumentf("empty user id")
	}
	threads, err := s.Threads.ListThreadsForUser(ctx, uid, limit)
	if err != nil {
		return nil, err
	}
	views := make([]*ThreadView, 0, len(threads))
	for _, t := range threads {
		views = append(views, &ThreadView{Thread: t, Unread: t.UnreadFor(uid)})
	}
	return views, nil
}

// ListMessages 按 (created_at, id) 升序翻页；afterID 为空从头取。
func (s *ChatService) ListMessages(ctx context.Context, threadID, uid, afterID string, limit int) ([]*models.Message, error) {
	if threadID == "" || uid == "" {
		return nil, errs.InvalidArgumentf("empty thread or user id")
	}
	thread, err := s.Threads.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, errs.ErrNotFound
	}
	if !thread.HasMember(uid) {
		return nil, errs.ErrNotAMember
	}
	return s.Threads.ListMessages(ctx, threadID, afterID, limit)
}

func (s *ChatService) quotaExempt(ctx context.Context, uid string) (bool, error) {
	if s.Users == nil {
		return false, nil
	}
	u, err := s.Users.GetByID(ctx, uid)
	if err != nil {
		return false, err
	}
	return u != nil && u.Unlimited, nil
}

// 新消息实时推给对端（发送方由 HTTP/WS 响应自带回执）
func (s *ChatService) deliverMessage(ctx context.Context, thread *models.Thread, msg *models.Message) {
	if s.Deliver == nil {
		return
	}
	peer := thread.MemberA
	if msg.FromID == peer {
		peer = thread.MemberB
	}
	payload, _ := json.Marshal(map[string]any{"event": "message", "message": msg})
	s.Deliver(ctx, peer, payload)
}

func (s *ChatService) recordEvent(uid string, kind models.EventKind) {
	if s.Streaks == nil {
		return
	}
	if _, _, err := s.Streaks.RecordEvent(context.Background(), uid, kind); err != nil {
		log.Printf("Chat.RecordEvent error: uid=%s kind=%s err=%v", uid, kind, err)
	}
}
