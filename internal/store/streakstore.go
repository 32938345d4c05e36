package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"
)

// 连续活跃与参与度计数存储（MySQL）。
// Tick 与 RecordEvent 都是读改写，放在单个事务内并用 FOR UPDATE 行锁
// 串行化同一用户的并发调用；推进逻辑本身由 models.AdvanceStreak 承担。
type StreakStore struct{ DB *sql.DB }

func NewStreakStore(db *sql.DB) *StreakStore { return &StreakStore{DB: db} }

// Tick 将 uid 推进到 today；按日幂等。
func (s *StreakStore) Tick(ctx context.Context, uid, today string) (*models.StreakRecord, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, errs.Transient("streak.tick", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// 首次活跃的用户先占位，保证后面的 FOR UPDATE 能锁到行
	if _, err = tx.ExecContext(ctx, `INSERT IGNORE INTO streaks(user_id, last_active_day, streak_current, streak_longest, badges) VALUES(?,'',0,0,'')`, uid); err != nil {
		return nil, errs.Transient("streak.tick", err)
	}

	rec := &models.StreakRecord{UserID: uid}
	var badges string
	err = tx.QueryRowContext(ctx, `SELECT last_active_day, streak_current, streak_longest, badges FROM streaks WHERE user_id=? FOR UPDATE`, uid).
		Scan(&rec.LastActiveDay, &rec.StreakCurrent, &rec.StreakLongest, &badges)
	if err != nil {
		return nil, errs.Transient("streak.tick", err)
	}
	rec.Badges = decodeBadges(badges)

	if models.AdvanceStreak(rec, today) {
		if _, err = tx.ExecContext(ctx, `UPDATE streaks SET last_active_day=?, streak_current=?, streak_longest=?, badges=?, updated_at=? WHERE user_id=?`,
			rec.LastActiveDay, rec.StreakCurrent, rec.StreakLongest, encodeBadges(rec.Badges), time.Now(), uid); err != nil {
			return nil, errs.Transient("streak.tick", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, errs.Transient("streak.tick", err)
	}
	return rec, nil
}

// Get 查询记录；从未活跃的用户返回零值记录。
func (s *StreakStore) Get(ctx context.Context, uid string) (*models.StreakRecord, error) {
	rec := &models.StreakRecord{UserID: uid, Badges: map[string]bool{}}
	var badges string
	err := s.DB.QueryRowContext(ctx, `SELECT last_active_day, streak_current, streak_longest, badges FROM streaks WHERE user_id=?`, uid).
		Scan(&rec.LastActiveDay, &rec.StreakCurrent, &rec.StreakLongest, &badges)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, nil
		}
		return nil, errs.Transient("streak.get", err)
	}
	rec.Badges = decodeBadges(badges)
	return rec, nil
}

// RecordEvent 原子自增事件计数；计数首次跨过阈值时把对应徽章并入 streaks.badges。
func (s *StreakStore) RecordEvent(ctx context.Context, uid string, kind models.EventKind) (int64, []string, error) {
	if !models.ValidEventKind(kind) {
		return 0, nil, errs.InvalidArgumentf("unknown event kind %q", kind)
	}
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, nil, errs.Transient("streak.event", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO event_counters(user_id, kind, count) VALUES(?,?,1) ON DUPLICATE KEY UPDATE count=count+1`, uid, string(kind)); err != nil {
		return 0, nil, errs.Transient("streak.event", err)
	}
	var count int64
	if err = tx.QueryRowContext(ctx, `SELECT count FROM event_counters WHERE user_id=? AND kind=? FOR UPDATE`, uid, string(kind)).Scan(&count); err != nil {
		return 0, nil, errs.Transient("streak.event", err)
	}

	// 达标徽章并入 streaks.badges（只增不减）
	earned := models.BadgesForCount(kind, count)
	var awarded []string
	if len(earned) > 0 {
		if _, err = tx.ExecContext(ctx, `INSERT IGNORE INTO streaks(user_id, last_active_day, streak_current, streak_longest, badges) VALUES(?,'',0,0,'')`, uid); err != nil {
			return 0, nil, errs.Transient("streak.event", err)
		}
		var badges string
		if err = tx.QueryRowContext(ctx, `SELECT badges FROM streaks WHERE user_id=? FOR UPDATE`, uid).Scan(&badges); err != nil {
			return 0, nil, errs.Transient("streak.event", err)
		}
		held := decodeBadges(badges)
		for _, b := range earned {
			if !held[b] {
				held[b] = true
				awarded = append(awarded, b)
			}
		}
		if len(awarded) > 0 {
			if _, err = tx.ExecContext(ctx, `UPDATE streaks SET badges=?, updated_at=? WHERE user_id=?`, encodeBadges(held), time.Now(), uid); err != nil {
				return 0, nil, errs.Transient("streak.event", err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, nil, errs.Transient("streak.event", err)
	}
	return count, awarded, nil
}

// badges 列以逗号分隔存储，集合语义在内存侧维护。
func decodeBadges(s string) map[string]bool {
	out := map[string]bool{}
	for _, b := range strings.Split(s, ",") {
		if b != "" {
			out[b] = true
		}
	}
	return out
}

func encodeBadges(m map[string]bool) string {
	var parts []string
	for b, ok := range m {
		if ok {
			parts = append(parts, b)
		}
	}
	// 稳定存储顺序便于比对
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
