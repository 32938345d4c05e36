package store

import (
	"context"
	"database/sql"
	"time"

	"go-match/internal/errs"
)

// 通用写一次幂等账本（MySQL）。
// idempotency_marks 主键为 key，INSERT IGNORE 即"首写者获胜"：
// rows-affected=1 的调用方才被允许执行受保护的副作用。标记永久保留。
type LedgerStore struct{ DB *sql.DB }

func NewLedgerStore(db *sql.DB) *LedgerStore { return &LedgerStore{DB: db} }

// TryClaim 尝试占用 key；跨所有并发调用方恰有一个返回 true。
func (s *LedgerStore) TryClaim(ctx context.Context, key string, at time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `INSERT IGNORE INTO idempotency_marks(mark_key, created_at) VALUES(?,?)`, key, at)
	if err != nil {
		return false, errs.Transient("ledger.claim", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
