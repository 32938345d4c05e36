package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"
)

// 喜欢边与配对存储（MySQL）。
// 约束：
// - likes 表主键 (from_id, to_id)，INSERT IGNORE 保障幂等
// - matches 表主键为规范对键 id，INSERT IGNORE 即 create-if-absent：
//   并发互相喜欢时恰有一个写入者拿到 rows-affected=1
type LikeStore struct{ DB *sql.DB }

func NewLikeStore(db *sql.DB) *LikeStore { return &LikeStore{DB: db} }

// AddLike 幂等写入有向边；返回本次是否新建。
func (s *LikeStore) AddLike(ctx context.Context, from, to string, at time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `INSERT IGNORE INTO likes(from_id, to_id, created_at) VALUES(?,?,?)`, from, to, at)
	if err != nil {
		return false, errs.Transient("like.add", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// HasLike 判断有向边是否存在。
func (s *LikeStore) HasLike(ctx context.Context, from, to string) (bool, error) {
	var x int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM likes WHERE from_id=? AND to_id=?`, from, to).Scan(&x)
	if err != nil {
		return false, errs.Transient("like.has", err)
	}
	return x >= 1, nil
}

// CreateMatch 规范 ID 上的 create-if-absent；首建者返回 true。
func (s *LikeStore) CreateMatch(ctx context.Context, m *models.Match) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `INSERT IGNORE INTO matches(id, member_a, member_b, created_at) VALUES(?,?,?,?)`, m.ID, m.MemberA, m.MemberB, m.CreatedAt)
	if err != nil {
		return false, errs.Transient("match.create", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// GetMatch 按 ID 查询；不存在返回 nil。
func (s *LikeStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, member_a, member_b, created_at FROM matches WHERE id=?`, id)
	m := &models.Match{}
	if err := row.Scan(&m.ID, &m.MemberA, &m.MemberB, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Transient("match.get", err)
	}
	return m, nil
}

// ListMatches 列出 uid 参与的配对（创建时间倒序）。
func (s *LikeStore) ListMatches(ctx context.Context, uid string, limit int) ([]*models.Match, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, member_a, member_b, created_at FROM matches WHERE member_a=? OR member_b=? ORDER BY created_at DESC LIMIT ?`, uid, uid, limit)
	if err != nil {
		return nil, errs.Transient("match.list", err)
	}
	defer rows.Close()
	var out []*models.Match
	for rows.Next() {
		m := &models.Match{}
		if err := rows.Scan(&m.ID, &m.MemberA, &m.MemberB, &m.CreatedAt); err != nil {
			return nil, errs.Transient("match.list", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListLikers 喜欢过 to 的边（创建时间倒序）。
func (s *LikeStore) ListLikers(ctx context.Context, to string, limit int) ([]*models.LikeEdge, error) {
	return s.listEdges(ctx, `SELECT from_id, to_id, created_at FROM likes WHERE to_id=? ORDER BY created_at DESC LIMIT ?`, to, limit)
}

// ListLiked from 发出的边（创建时间倒序）。
func (s *LikeStore) ListLiked(ctx context.Context, from string, limit int) ([]*models.LikeEdge, error) {
	return s.listEdges(ctx, `SELECT from_id, to_id, created_at FROM likes WHERE from_id=? ORDER BY created_at DESC LIMIT ?`, from, limit)
}

func (s *LikeStore) listEdges(ctx context.Context, query, id string, limit int) ([]*models.LikeEdge, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, query, id, limit)
	if err != nil {
		return nil, errs.Transient("like.list", err)
	}
	defer rows.Close()
	var out []*models.LikeEdge
	for rows.Next() {
		e := &models.LikeEdge{}
		if err := rows.Scan(&e.FromID, &e.ToID, &e.CreatedAt); err != nil {
			return nil, errs.Transient("like.list", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
