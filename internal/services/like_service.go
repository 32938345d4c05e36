// Package services 实现业务服务：喜欢/配对、会话消息、在线状态与连续活跃。
package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"go-match/internal/errs"
	"go-match/internal/metrics"
	"go-match/internal/models"
	"go-match/internal/notify"
	"go-match/internal/store"
)

// LikeOutcome like 操作的结果。
type LikeOutcome struct {
	Outcome string        `json:"outcome"` // liked / matched
	Match   *models.Match `json:"match,omitempty"`
}

// LikeService 负责喜欢边与配对：
// - Like：幂等写边 + 反向探测 + 规范 ID 上的配对 create-if-absent
// - 配对成立时懒建会话、发布通知事件、推送实时事件
// 并发互相喜欢由存储层唯一约束收敛为恰一条配对、至多一个会话。
type LikeService struct {
	Likes   store.LikeStoreInterface
	Threads store.ThreadStoreInterface
	Streaks store.StreakStoreInterface // 可选：参与度计数

	Publisher notify.Publisher                               // 可选：通知事件
	Deliver   func(ctx context.Context, uid string, payload []byte) // 可选：实时推送
}

func NewLikeService(likes store.LikeStoreInterface, threads store.ThreadStoreInterface) *LikeService {
	return &LikeService{Likes: likes, Threads: threads}
}

// Like 记录 from -> to 的喜欢；双向成立时创建配对。
// 重复调用为幂等 no-op（仍会重新报告当前配对状态）。
func (s *LikeService) Like(ctx context.Context, from, to string) (*LikeOutcome, error) {
	if from == "" || to == "" {
		return nil, errs.InvalidArgumentf("empty user id")
	}
	if from == to {
		return nil, errs.InvalidArgumentf("cannot like yourself")
	}

	now := time.Now()
	created, err := s.Likes.AddLike(ctx, from, to, now)
	if err != nil {
		return nil, err
	}

	if created {
		s.recordEvent(from, models.EventLikeSent)
	}

	mutual, err := s.Likes.HasLike(ctx, to, from)
	if err != nil {
		return nil, err
	}
	if !mutual {
		if created {
			metrics.LikesTotal.WithLabelValues("liked").Inc()
			// 单向喜欢：对方可能希望收到提醒
			s.publish(notify.Event{Type: notify.EventLike, FromID: from, ToID: to, TS: now.UnixMilli()})
		} else {
			metrics.LikesTotal.WithLabelValues("duplicate").Inc()
		}
		return &LikeOutcome{Outcome: "liked"}, nil
	}

	ma, mb := models.SortPair(from, to)
	match := &models.Match{ID: models.PairKey(from, to), MemberA: ma, MemberB: mb, CreatedAt: now}
	first, err := s.Likes.CreateMatch(ctx, match)
	if err != nil {
		return nil, err
	}
	if !first {
		// 对向调用已经建好配对；读回真实创建时间
		if existing, err2 := s.Likes.GetMatch(ctx, match.ID); err2 == nil && existing != nil {
			match = existing
		}
		metrics.LikesTotal.WithLabelValues("duplicate").Inc()
		return &LikeOutcome{Outcome: "matched", Match: match}, nil
	}

	log.Printf("Like.Match created: id=%s a=%s b=%s", match.ID, ma, mb)
	metrics.LikesTotal.WithLabelValues("matched").Inc()

	// 会话懒创建；失败不影响配对本身，下次发消息前仍会 ensure
	if _, err := s.Threads.EnsureThread(ctx, ma, mb, now); err != nil {
		log.Printf("Like.Match ensure thread error: id=%s err=%v", match.ID, err)
	}

	s.recordEvent(ma, models.EventMatchMade)
	s.recordEvent(mb, models.EventMatchMade)

	// 提交后异步派发，不阻塞也不回滚本次写入
	s.publish(notify.Event{Type: notify.EventMatch, MatchID: match.ID, MemberA: ma, MemberB: mb, TS: now.UnixMilli()})
	s.deliverMatch(ctx, match)

	return &LikeOutcome{Outcome: "matched", Match: match}, nil
}

// ListLikers 喜欢过 uid 的边（创建时间倒序）。
func (s *LikeService) ListLikers(ctx context.Context, uid string, limit int) ([]*models.LikeEdge, error) {
	if uid == "" {
		return nil, errs.InvalidArgumentf("empty user id")
	}
	return s.Likes.ListLikers(ctx, uid, limit)
}

// ListLiked uid 发出的喜欢边（创建时间倒序）。
func (s *LikeService) ListLiked(ctx context.Context, uid string, limit int) ([]*models.LikeEdge, error) {
	if uid == "" {
		return nil, errs.InvalidArgumentf("empty user id")
	}
	return s.Likes.ListLiked(ctx, uid, limit)
}

// ListMatches uid 参与的配对（创建时间倒序）。
func (s *LikeService) ListMatches(ctx context.Context, uid string, limit int) ([]*models.Match, error) {
	if uid == "" {
		return nil, errs.InvalidArgumentf("empty user id")
	}
	return s.Likes.ListMatches(ctx, uid, limit)
}

func (s *LikeService) publish(evt notify.Event) {
	if s.Publisher != nil {
		s.Publisher.Publish(evt)
	}
}

// 配对实时事件：推给双方的投递通道
func (s *LikeService) deliverMatch(ctx context.Context, match *models.Match) {
	if s.Deliver == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{"event": "matched", "match": match})
	s.Deliver(ctx, match.MemberA, payload)
	s.Deliver(ctx, match.MemberB, payload)
}

func (s *LikeService) recordEvent(uid string, kind models.EventKind) {
	if s.Streaks == nil {
		return
	}
	if _, _, err := s.Streaks.RecordEvent(context.Background(), uid, kind); err != nil {
		log.Printf("Like.RecordEvent error: uid=%s kind=%s err=%v", uid, kind, err)
	}
}
