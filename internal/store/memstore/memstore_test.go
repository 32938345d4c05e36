package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"
)

func TestAddLikeIdempotent(t *testing.T) {
	s := NewLikeStore()
	ctx := context.Background()
	now := time.Now()

	created, err := s.AddLike(ctx, "a", "b", now)
	if err != nil || !created {
		t.Fatalf("first like: created=%v err=%v", created, err)
	}
	created, err = s.AddLike(ctx, "a", "b", now)
	if err != nil || created {
		t.Fatalf("second like must be a no-op: created=%v err=%v", created, err)
	}

	// 反向是独立的边
	if ok, _ := s.HasLike(ctx, "b", "a"); ok {
		t.Fatal("reverse edge must not exist")
	}
	edges, _ := s.ListLiked(ctx, "a", 10)
	if len(edges) != 1 {
		t.Fatalf("liked edges = %d, want 1", len(edges))
	}
}

func TestCreateMatchSingleWinner(t *testing.T) {
	s := NewLikeStore()
	ctx := context.Background()
	id := models.PairKey("a", "b")

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := &models.Match{ID: id, MemberA: "a", MemberB: "b", CreatedAt: time.Now()}
			created, err := s.CreateMatch(context.Background(), m)
			if err != nil {
				t.Errorf("CreateMatch: %v", err)
				return
			}
			if created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	got, _ := s.GetMatch(ctx, id)
	if got == nil || got.ID != id {
		t.Fatal("match must be readable after creation")
	}
}

func TestEnsureThreadConcurrent(t *testing.T) {
	s := NewThreadStore()
	const n = 32
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// 参数顺序交替，验证规范化
			var th *models.Thread
			var err error
			if i%2 == 0 {
				th, err = s.EnsureThread(context.Background(), "a", "b", time.Now())
			} else {
				th, err = s.EnsureThread(context.Background(), "b", "a", time.Now())
			}
			if err != nil {
				t.Errorf("EnsureThread: %v", err)
				return
			}
			ids[i] = th.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("all calls must converge on one thread: %v", ids)
		}
	}
}

func TestMessageOrderingAtSameTimestamp(t *testing.T) {
	s := NewThreadStore()
	ctx := context.Background()
	th, _ := s.EnsureThread(ctx, "a", "b", time.Now())

	at := time.Now()
	var sent []string
	for i := 0; i < 10; i++ {
		m := &models.Message{ID: models.NewMessageID(at), ThreadID: th.ID, FromID: "a", Text: "hi", CreatedAt: at}
		if err := s.AppendMessage(ctx, m); err != nil {
			t.Fatalf("append: %v", err)
		}
		sent = append(sent, m.ID)
	}

	got, err := s.ListMessages(ctx, th.ID, "", 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("messages = %d, want 10", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !(got[i-1].ID < got[i].ID) {
			t.Fatalf("not in (createdAt, id) order at %d: %s >= %s", i, got[i-1].ID, got[i].ID)
		}
	}

	// afterID 翻页不重复不遗漏
	rest, _ := s.ListMessages(ctx, th.ID, got[4].ID, 50)
	if len(rest) != 5 || rest[0].ID != got[5].ID {
		t.Fatalf("pagination after %s returned %d messages", got[4].ID, len(rest))
	}
}

func TestMarkReadAndLastMessage(t *testing.T) {
	s := NewThreadStore()
	ctx := context.Background()
	th, _ := s.EnsureThread(ctx, "a", "b", time.Now())

	m := &models.Message{ID: models.NewMessageID(time.Now()), ThreadID: th.ID, FromID: "a", Text: "hello", CreatedAt: time.Now()}
	if err := s.AppendMessage(ctx, m); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, _ := s.GetThread(ctx, th.ID)
	if got.LastMessage == nil || got.LastMessage.ID != m.ID {
		t.Fatal("last message summary not updated")
	}
	if !got.UnreadFor("b") {
		t.Fatal("receiver should have unread")
	}

	if err := s.MarkRead(ctx, th.ID, "b"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	// 重复已读是幂等的
	if err := s.MarkRead(ctx, th.ID, "b"); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	got, _ = s.GetThread(ctx, th.ID)
	if got.UnreadFor("b") {
		t.Fatal("unread must clear after mark read")
	}

	// 新消息重置已读集合
	m2 := &models.Message{ID: models.NewMessageID(time.Now()), ThreadID: th.ID, FromID: "b", Text: "hey", CreatedAt: time.Now()}
	_ = s.AppendMessage(ctx, m2)
	got, _ = s.GetThread(ctx, th.ID)
	if !got.UnreadFor("a") || got.UnreadFor("b") {
		t.Fatal("read-by must reset to sender on each send")
	}
}

func TestLedgerTryClaimExactlyOnce(t *testing.T) {
	s := NewLedgerStore()
	const n = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryClaim(context.Background(), "match:pair_a_b:a", time.Now())
			if err != nil {
				t.Errorf("TryClaim: %v", err)
				return
			}
			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if claimed != 1 {
		t.Fatalf("claimed = %d, want exactly 1", claimed)
	}

	// 不同的键互不影响
	if ok, _ := s.TryClaim(context.Background(), "match:pair_a_b:b", time.Now()); !ok {
		t.Fatal("distinct key must be claimable")
	}
}

func TestQuotaSequentialBoundary(t *testing.T) {
	s := NewQuotaStore()
	ctx := context.Background()
	const limit = 3

	for i := int64(1); i <= limit; i++ {
		res, err := s.ConsumeOrReject(ctx, "u1", "2025-03-09", limit)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if res.Count != i {
			t.Fatalf("count = %d, want %d", res.Count, i)
		}
	}

	_, err := s.ConsumeOrReject(ctx, "u1", "2025-03-09", limit)
	qe, ok := errs.IsQuotaExceeded(err)
	if !ok {
		t.Fatalf("want QuotaExceededError, got %v", err)
	}
	if qe.Limit != limit || qe.Current != limit {
		t.Fatalf("quota error = %d/%d, want %d/%d", qe.Current, qe.Limit, limit, limit)
	}

	// 拒绝不产生变更
	if cur, _ := s.Current(ctx, "u1", "2025-03-09"); cur != limit {
		t.Fatalf("current = %d after reject, want %d", cur, limit)
	}

	// 新的日键独立计数
	if _, err := s.ConsumeOrReject(ctx, "u1", "2025-03-10", limit); err != nil {
		t.Fatalf("next day must start fresh: %v", err)
	}
}

func TestQuotaConcurrentNeverExceedsLimit(t *testing.T) {
	s := NewQuotaStore()
	const limit = 3
	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ConsumeOrReject(context.Background(), "u1", "2025-03-09", limit)
			if err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
				return
			}
			if _, ok := errs.IsQuotaExceeded(err); !ok {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if granted != limit {
		t.Fatalf("granted = %d, want exactly %d", granted, limit)
	}
}

func TestStreakStoreRecordEvent(t *testing.T) {
	s := NewStreakStore()
	ctx := context.Background()

	count, awarded, err := s.RecordEvent(ctx, "u1", models.EventLikeSent)
	if err != nil || count != 1 {
		t.Fatalf("count=%d err=%v", count, err)
	}
	if len(awarded) != 1 || awarded[0] != "first_like" {
		t.Fatalf("awarded = %v, want [first_like]", awarded)
	}

	// 已有徽章不重复授予
	_, awarded, _ = s.RecordEvent(ctx, "u1", models.EventLikeSent)
	if len(awarded) != 0 {
		t.Fatalf("second like re-awarded %v", awarded)
	}

	if _, _, err := s.RecordEvent(ctx, "u1", models.EventKind("nope")); err == nil {
		t.Fatal("unknown kind must be rejected")
	}

	rec, _ := s.Get(ctx, "u1")
	if !rec.Badges["first_like"] {
		t.Fatal("badge must persist on record")
	}
}

func TestPresenceStore(t *testing.T) {
	s := NewPresenceStore()
	ctx := context.Background()
	now := time.Now()

	_ = s.SetOnline(ctx, "u1", true, now)
	_ = s.SetTyping(ctx, "u1", "pair_a_b")
	rec, _ := s.Get(ctx, "u1")
	if !rec.Online || rec.TypingThreadID != "pair_a_b" {
		t.Fatalf("rec = %+v", rec)
	}

	later := now.Add(30 * time.Second)
	_ = s.Heartbeat(ctx, "u1", later)
	rec, _ = s.Get(ctx, "u1")
	if !rec.LastSeen.Equal(later) {
		t.Fatal("heartbeat must refresh last seen")
	}

	// 下线清掉输入标记
	_ = s.SetOnline(ctx, "u1", false, later)
	rec, _ = s.Get(ctx, "u1")
	if rec.Online || rec.TypingThreadID != "" {
		t.Fatalf("offline rec = %+v", rec)
	}
}
