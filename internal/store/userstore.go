package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"
)

// 用户存储：同时充当身份提供方（ID -> 联系地址）、通知偏好
// 与付费权益标记（unlimited）的数据源。
type UserStore struct{ DB *sql.DB }

func NewUserStore(db *sql.DB) *UserStore { return &UserStore{DB: db} }

// 创建用户；通知默认全量开启
func (s *UserStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users(id, username, password, nickname, email, avatar_url, notify_enabled, notify_on_like, notify_on_match, unlimited, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,NOW(),NOW())`,
		u.ID, u.Username, u.Password, u.Nickname, u.Email, u.AvatarURL, u.NotifyEnabled, u.NotifyOnLike, u.NotifyOnMatch, u.Unlimited)
	return errs.Transient("user.create", err)
}

const userColumns = `id, username, password, nickname, email, avatar_url, notify_enabled, notify_on_like, notify_on_match, unlimited, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Password, &u.Nickname, &u.Email, &u.AvatarURL, &u.NotifyEnabled, &u.NotifyOnLike, &u.NotifyOnMatch, &u.Unlimited, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// 按 ID 查询；不存在返回 nil
func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if err != nil {
		return nil, errs.Transient("user.get", err)
	}
	return u, nil
}

// 按用户名查询
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=?`, username))
	if err != nil {
		return nil, errs.Transient("user.get", err)
	}
	return u, nil
}

// 更新资料
func (s *UserStore) UpdateProfile(ctx context.Context, u *models.User) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET nickname=?, email=?, avatar_url=?, updated_at=? WHERE id=?`, u.Nickname, u.Email, u.AvatarURL, time.Now(), u.ID)
	return errs.Transient("user.update", err)
}

// 更新通知偏好
func (s *UserStore) UpdateNotifyPrefs(ctx context.Context, uid string, enabled, onLike, onMatch bool) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET notify_enabled=?, notify_on_like=?, notify_on_match=?, updated_at=? WHERE id=?`, enabled, onLike, onMatch, time.Now(), uid)
	return errs.Transient("user.prefs", err)
}

// 设置权益标记（由计费回调写入）
func (s *UserStore) SetUnlimited(ctx context.Context, uid string, unlimited bool) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET unlimited=?, updated_at=? WHERE id=?`, unlimited, time.Now(), uid)
	return errs.Transient("user.entitle", err)
}

// ResolveContact 解析通知地址；无地址返回空串。
func (s *UserStore) ResolveContact(ctx context.Context, uid string) (string, error) {
	var email sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT email FROM users WHERE id=?`, uid).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", errs.Transient("user.contact", err)
	}
	return email.String, nil
}
