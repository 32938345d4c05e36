package services

import (
	"context"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"
	"go-match/internal/store"
)

// DefaultOnlineWindow 心跳超过该时长视为离线。
const DefaultOnlineWindow = 60 * time.Second

// PresenceView 在线状态 + 按心跳时间推导的存活标记。
type PresenceView struct {
	*models.PresenceRecord
	Live bool `json:"live"` // Online 且心跳未超时
}

// PresenceService 在线状态：上下线、心跳、正在输入。
type PresenceService struct {
	Presence store.PresenceStoreInterface
	Window   time.Duration
}

func NewPresenceService(presence store.PresenceStoreInterface) *PresenceService {
	return &PresenceService{Presence: presence, Window: DefaultOnlineWindow}
}

func (s *PresenceService) SetOnline(ctx context.Context, uid string, online bool) error {
	if uid == "" {
		return errs.InvalidArgumentf("empty user id")
	}
	return s.Presence.SetOnline(ctx, uid, online, time.Now())
}

func (s *PresenceService) Heartbeat(ctx context.Context, uid string) error {
	if uid == "" {
		return errs.InvalidArgumentf("empty user id")
	}
	return s.Presence.Heartbeat(ctx, uid, time.Now())
}

// SetTyping typing=false 时清除输入标记。
func (s *PresenceService) SetTyping(ctx context.Context, uid, threadID string, typing bool) error {
	if uid == "" {
		return errs.InvalidArgumentf("empty user id")
	}
	if !typing {
		threadID = ""
	}
	return s.Presence.SetTyping(ctx, uid, threadID)
}

// Get 读取在线状态；从未上线的用户返回离线记录而非错误。
func (s *PresenceService) Get(ctx context.Context, uid string) (*PresenceView, error) {
	if uid == "" {
		return nil, errs.InvalidArgumentf("empty user id")
	}
	rec, err := s.Presence.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &models.PresenceRecord{UserID: uid}
	}
	return &PresenceView{PresenceRecord: rec, Live: rec.OnlineWithin(s.Window, time.Now())}, nil
}
