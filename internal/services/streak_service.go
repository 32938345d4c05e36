package services

import (
	"context"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"
	"go-match/internal/store"
)

// StreakService 连续活跃天数与参与度徽章。
type StreakService struct {
	Streaks store.StreakStoreInterface
}

func NewStreakService(streaks store.StreakStoreInterface) *StreakService {
	return &StreakService{Streaks: streaks}
}

// Tick 记录 uid 今日活跃；同一天重复调用幂等。
func (s *StreakService) Tick(ctx context.Context, uid string) (*models.StreakRecord, error) {
	if uid == "" {
		return nil, errs.InvalidArgumentf("empty user id")
	}
	return s.Streaks.Tick(ctx, uid, models.DayKey(time.Now()))
}

// Get 读取连续活跃记录；从未活跃的用户返回零值记录。
func (s *StreakService) Get(ctx context.Context, uid string) (*models.StreakRecord, error) {
	if uid == "" {
		return nil, errs.InvalidArgumentf("empty user id")
	}
	rec, err := s.Streaks.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &models.StreakRecord{UserID: uid}
	}
	return rec, nil
}

// RecordEvent 参与度事件计数 + 阈值徽章发放。返回新计数与本次新获得的徽章。
func (s *StreakService) RecordEvent(ctx context.Context, uid string, kind models.EventKind) (int64, []string, error) {
	if uid == "" {
		return 0, nil, errs.InvalidArgumentf("empty user id")
	}
	if !models.ValidEventKind(kind) {
		return 0, nil, errs.InvalidArgumentf("unknown event kind: %s", kind)
	}
	return s.Streaks.RecordEvent(ctx, uid, kind)
}
