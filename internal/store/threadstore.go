package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"
)

// 会话与消息存储（MySQL）。
// 约束：
// - threads 表主键为规范对键 id，INSERT IGNORE 保障并发 EnsureThread 只建一行
// - messages 表主键 id 带纳秒时间戳前缀，idx_thread_created 支撑按序拉取
// - AppendMessage 在单个事务内写消息并刷新 threads 的 last_* 摘要与已读位
type ThreadStore struct{ DB *sql.DB }

func NewThreadStore(db *sql.DB) *ThreadStore { return &ThreadStore{DB: db} }

// EnsureThread 返回或创建无序对 (a,b) 的会话。
func (s *ThreadStore) EnsureThread(ctx context.Context, a, b string, at time.Time) (*models.Thread, error) {
	ma, mb := models.SortPair(a, b)
	id := models.PairKey(a, b)
	_, err := s.DB.ExecContext(ctx, `INSERT IGNORE INTO threads(id, member_a, member_b, created_at) VALUES(?,?,?,?)`, id, ma, mb, at)
	if err != nil {
		return nil, errs.Transient("thread.ensure", err)
	}
	return s.GetThread(ctx, id)
}

// GetThread 按 ID 查询会话；不存在返回 nil。
func (s *ThreadStore) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, member_a, member_b, created_at, last_msg_id, last_msg_text, last_msg_from, last_msg_at, read_by_a, read_by_b FROM threads WHERE id=?`, id)
	t, err := scanThread(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Transient("thread.get", err)
	}
	return t, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanThread(row rowScanner) (*models.Thread, error) {
	t := &models.Thread{}
	var lmID, lmText, lmFrom sql.NullString
	var lmAt sql.NullTime
	var readA, readB int
	if err := row.Scan(&t.ID, &t.MemberA, &t.MemberB, &t.CreatedAt, &lmID, &lmText, &lmFrom, &lmAt, &readA, &readB); err != nil {
		return nil, err
	}
	if lmID.Valid {
		lm := &models.LastMessage{ID: lmID.String, Text: lmText.String, FromID: lmFrom.String, At: lmAt.Time, ReadBy: map[string]bool{}}
		if readA == 1 {
			lm.ReadBy[t.MemberA] = true
		}
		if readB == 1 {
			lm.ReadBy[t.MemberB] = true
		}
		t.LastMessage = lm
	}
	return t, nil
}

// AppendMessage 追加消息并在同一事务内刷新会话摘要；
// 已读位重置为"仅发送者已读"。
func (s *ThreadStore) AppendMessage(ctx context.Context, m *models.Message) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errs.Transient("message.append", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `INSERT INTO messages(id, thread_id, from_id, text, created_at) VALUES(?,?,?,?,?)`, m.ID, m.ThreadID, m.FromID, m.Text, m.CreatedAt); err != nil {
		return errs.Transient("message.append", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE threads SET last_msg_id=?, last_msg_text=?, last_msg_from=?, last_msg_at=?, read_by_a=IF(member_a=?,1,0), read_by_b=IF(member_b=?,1,0) WHERE id=?`, m.ID, m.Text, m.FromID, m.CreatedAt, m.FromID, m.FromID, m.ThreadID); err != nil {
		return errs.Transient("message.append", err)
	}
	if err = tx.Commit(); err != nil {
		return errs.Transient("message.append", err)
	}
	return nil
}

// MarkRead 置成员已读位；非成员由上层校验，重复调用为 no-op。
func (s *ThreadStore) MarkRead(ctx context.Context, threadID, uid string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE threads SET read_by_a=IF(member_a=?,1,read_by_a), read_by_b=IF(member_b=?,1,read_by_b) WHERE id=?`, uid, uid, threadID)
	return errs.Transient("thread.markread", err)
}

// ListThreadsForUser 按最新消息时间倒序（无消息的会话按创建时间参与排序）。
func (s *ThreadStore) ListThreadsForUser(ctx context.Context, uid string, limit int) ([]*models.Thread, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, member_a, member_b, created_at, last_msg_id, last_msg_text, last_msg_from, last_msg_at, read_by_a, read_by_b FROM threads WHERE member_a=? OR member_b=? ORDER BY COALESCE(last_msg_at, created_at) DESC LIMIT ?`, uid, uid, limit)
	if err != nil {
		return nil, errs.Transient("thread.list", err)
	}
	defer rows.Close()
	var out []*models.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, errs.Transient("thread.list", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListMessages 按 (created_at, id) 升序拉取 afterID 之后的消息。
func (s *ThreadStore) ListMessages(ctx context.Context, threadID, afterID string, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, thread_id, from_id, text, created_at FROM messages WHERE thread_id=? AND id>? ORDER BY created_at ASC, id ASC LIMIT ?`, threadID, afterID, limit)
	if err != nil {
		return nil, errs.Transient("message.list", err)
	}
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.FromID, &m.Text, &m.CreatedAt); err != nil {
			return nil, errs.Transient("message.list", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
