// Package memstore 提供全部存储接口的进程内实现，
// 互斥锁对应 SQL 实现的事务边界，语义与 MySQL/Mongo 实现一致。
// 用于单测与本地免依赖运行（config MessageDB=memory）。
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"
)

// LikeStore 内存版喜欢边/配对存储。
type LikeStore struct {
	mu      sync.Mutex
	edges   map[[2]string]*models.LikeEdge
	matches map[string]*models.Match
}

func NewLikeStore() *LikeStore {
	return &LikeStore{edges: map[[2]string]*models.LikeEdge{}, matches: map[string]*models.Match{}}
}

func (s *LikeStore) AddLike(_ context.Context, from, to string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{from, to}
	if _, ok := s.edges[k]; ok {
		return false, nil
	}
	s.edges[k] = &models.LikeEdge{FromID: from, ToID: to, CreatedAt: at}
	return true, nil
}

func (s *LikeStore) HasLike(_ context.Context, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[[2]string{from, to}]
	return ok, nil
}

func (s *LikeStore) CreateMatch(_ context.Context, m *models.Match) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return false, nil
	}
	cp := *m
	s.matches[m.ID] = &cp
	return true, nil
}

func (s *LikeStore) GetMatch(_ context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (s *LikeStore) ListMatches(_ context.Context, uid string, limit int) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Match
	for _, m := range s.matches {
		if m.MemberA == uid || m.MemberB == uid {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return clip(out, limit), nil
}

func (s *LikeStore) ListLikers(_ context.Context, to string, limit int) ([]*models.LikeEdge, error) {
	return s.listEdges(func(e *models.LikeEdge) bool { return e.ToID == to }, limit)
}

func (s *LikeStore) ListLiked(_ context.Context, from string, limit int) ([]*models.LikeEdge, error) {
	return s.listEdges(func(e *models.LikeEdge) bool { return e.FromID == from }, limit)
}

func (s *LikeStore) listEdges(keep func(*models.LikeEdge) bool, limit int) ([]*models.LikeEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.LikeEdge
	for _, e := range s.edges {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return clip(out, limit), nil
}

func clip[T any](in []T, limit int) []T {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if len(in) > limit {
		return in[:limit]
	}
	return in
}

// ThreadStore 内存版会话/消息存储。
type ThreadStore struct {
	mu       sync.Mutex
	threads  map[string]*models.Thread
	messages map[string][]*models.Message
}

func NewThreadStore() *ThreadStore {
	return &ThreadStore{threads: map[string]*models.Thread{}, messages: map[string][]*models.Message{}}
}

func (s *ThreadStore) EnsureThread(_ context.Context, a, b string, at time.Time) (*models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := models.PairKey(a, b)
	if t, ok := s.threads[id]; ok {
		return copyThread(t), nil
	}
	ma, mb := models.SortPair(a, b)
	t := &models.Thread{ID: id, MemberA: ma, MemberB: mb, CreatedAt: at}
	s.threads[id] = t
	return copyThread(t), nil
}

func (s *ThreadStore) GetThread(_ context.Context, id string) (*models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[id]; ok {
		return copyThread(t), nil
	}
	return nil, nil
}

func (s *ThreadStore) AppendMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[m.ThreadID]
	if !ok {
		return errs.ErrNotFound
	}
	cp := *m
	s.messages[m.ThreadID] = append(s.messages[m.ThreadID], &cp)
	t.LastMessage = &models.LastMessage{ID: m.ID, Text: m.Text, FromID: m.FromID, At: m.CreatedAt, ReadBy: map[string]bool{m.FromID: true}}
	return nil
}

func (s *ThreadStore) MarkRead(_ context.Context, threadID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return errs.ErrNotFound
	}
	if t.LastMessage != nil && t.HasMember(uid) {
		t.LastMessage.ReadBy[uid] = true
	}
	return nil
}

func (s *ThreadStore) ListThreadsForUser(_ context.Context, uid string, limit int) ([]*models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Thread
	for _, t := range s.threads {
		if t.HasMember(uid) {
			out = append(out, copyThread(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return lastAt(out[i]).After(lastAt(out[j])) })
	return clip(out, limit), nil
}

func lastAt(t *models.Thread) time.Time {
	if t.LastMessage != nil {
		return t.LastMessage.At
	}
	return t.CreatedAt
}

func (s *ThreadStore) ListMessages(_ context.Context, threadID, afterID string, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.messages[threadID] {
		if m.ID > afterID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return clip(out, limit), nil
}

func copyThread(t *models.Thread) *models.Thread {
	cp := *t
	if t.LastMessage != nil {
		lm := *t.LastMessage
		lm.ReadBy = make(map[string]bool, len(t.LastMessage.ReadBy))
		for k, v := range t.LastMessage.ReadBy {
			lm.ReadBy[k] = v
		}
		cp.LastMessage = &lm
	}
	return &cp
}

// LedgerStore 内存版写一次账本。
type LedgerStore struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

func NewLedgerStore() *LedgerStore { return &LedgerStore{marks: map[string]time.Time{}} }

func (s *LedgerStore) TryClaim(_ context.Context, key string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.marks[key]; ok {
		return false, nil
	}
	s.marks[key] = at
	return true, nil
}

// QuotaStore 内存版每日限额计数。
type QuotaStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewQuotaStore() *QuotaStore { return &QuotaStore{counts: map[string]int64{}} }

func (s *QuotaStore) ConsumeOrReject(_ context.Context, uid, dayKey string, limit int64) (*models.QuotaResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := uid + ":" + dayKey
	cur := s.counts[k]
	if cur >= limit {
		return nil, &errs.QuotaExceededError{Limit: limit, Current: cur}
	}
	s.counts[k] = cur + 1
	return &models.QuotaResult{Count: cur + 1, Limit: limit}, nil
}

func (s *QuotaStore) Current(_ context.Context, uid, dayKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[uid+":"+dayKey], nil
}

// PresenceStore 内存版在线状态。
type PresenceStore struct {
	mu      sync.Mutex
	records map[string]*models.PresenceRecord
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{records: map[string]*models.PresenceRecord{}}
}

func (s *PresenceStore) rec(uid string) *models.PresenceRecord {
	r, ok := s.records[uid]
	if !ok {
		r = &models.PresenceRecord{UserID: uid}
		s.records[uid] = r
	}
	return r
}

func (s *PresenceStore) SetOnline(_ context.Context, uid string, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rec(uid)
	r.Online = online
	r.LastSeen = at
	if !online {
		r.TypingThreadID = ""
	}
	return nil
}

func (s *PresenceStore) Heartbeat(_ context.Context, uid string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec(uid).LastSeen = at
	return nil
}

func (s *PresenceStore) SetTyping(_ context.Context, uid, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec(uid).TypingThreadID = threadID
	return nil
}

func (s *PresenceStore) Get(_ context.Context, uid string) (*models.PresenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.rec(uid)
	return &cp, nil
}

// StreakStore 内存版连续活跃/事件计数。
type StreakStore struct {
	mu       sync.Mutex
	records  map[string]*models.StreakRecord
	counters map[string]int64
}

func NewStreakStore() *StreakStore {
	return &StreakStore{records: map[string]*models.StreakRecord{}, counters: map[string]int64{}}
}

func (s *StreakStore) rec(uid string) *models.StreakRecord {
	r, ok := s.records[uid]
	if !ok {
		r = &models.StreakRecord{UserID: uid, Badges: map[string]bool{}}
		s.records[uid] = r
	}
	return r
}

func (s *StreakStore) Tick(_ context.Context, uid, today string) (*models.StreakRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rec(uid)
	models.AdvanceStreak(r, today)
	return copyStreak(r), nil
}

func (s *StreakStore) Get(_ context.Context, uid string) (*models.StreakRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyStreak(s.rec(uid)), nil
}

func (s *StreakStore) RecordEvent(_ context.Context, uid string, kind models.EventKind) (int64, []string, error) {
	if !models.ValidEventKind(kind) {
		return 0, nil, errs.InvalidArgumentf("unknown event kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := uid + ":" + string(kind)
	s.counters[k]++
	count := s.counters[k]
	r := s.rec(uid)
	var awarded []string
	for _, b := range models.BadgesForCount(kind, count) {
		if !r.Badges[b] {
			r.Badges[b] = true
			awarded = append(awarded, b)
		}
	}
	return count, awarded, nil
}

func copyStreak(r *models.StreakRecord) *models.StreakRecord {
	cp := *r
	cp.Badges = make(map[string]bool, len(r.Badges))
	for k, v := range r.Badges {
		cp.Badges[k] = v
	}
	return &cp
}

// UserStore 内存版用户存储。
type UserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewUserStore() *UserStore { return &UserStore{users: map[string]*models.User{}} }

func (s *UserStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.users {
		if x.Username == u.Username {
			return errs.InvalidArgumentf("username taken")
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *UserStore) UpdateProfile(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return errs.ErrNotFound
	}
	cur.Nickname, cur.Email, cur.AvatarURL = u.Nickname, u.Email, u.AvatarURL
	cur.UpdatedAt = time.Now()
	return nil
}

func (s *UserStore) UpdateNotifyPrefs(_ context.Context, uid string, enabled, onLike, onMatch bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return errs.ErrNotFound
	}
	u.NotifyEnabled, u.NotifyOnLike, u.NotifyOnMatch = enabled, onLike, onMatch
	return nil
}

func (s *UserStore) SetUnlimited(_ context.Context, uid string, unlimited bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return errs.ErrNotFound
	}
	u.Unlimited = unlimited
	return nil
}

func (s *UserStore) ResolveContact(_ context.Context, uid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[uid]; ok {
		return u.Email, nil
	}
	return "", nil
}
