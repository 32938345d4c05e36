package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go-match/internal/errs"
	"go-match/internal/models"
	"go-match/internal/notify"
	"go-match/internal/store/memstore"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *capturePublisher) Publish(evt notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *capturePublisher) byType(t notify.EventType) []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notify.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newLikeServiceForTest() (*LikeService, *memstore.ThreadStore, *capturePublisher) {
	threads := memstore.NewThreadStore()
	pub := &capturePublisher{}
	svc := NewLikeService(memstore.NewLikeStore(), threads)
	svc.Streaks = memstore.NewStreakStore()
	svc.Publisher = pub
	return svc, threads, pub
}

func TestLikeValidation(t *testing.T) {
	svc, _, _ := newLikeServiceForTest()
	ctx := context.Background()

	if _, err := svc.Like(ctx, "", "b"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("empty from: %v", err)
	}
	if _, err := svc.Like(ctx, "a", "a"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("self like: %v", err)
	}
}

func TestLikeThenMutualMatch(t *testing.T) {
	svc, threads, pub := newLikeServiceForTest()
	ctx := context.Background()

	out, err := svc.Like(ctx, "a", "b")
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if out.Outcome != "liked" || out.Match != nil {
		t.Fatalf("one-way like outcome = %+v", out)
	}
	if got := pub.byType(notify.EventLike); len(got) != 1 || got[0].ToID != "b" {
		t.Fatalf("like events = %+v", got)
	}

	// 重复喜欢幂等，不再发事件
	out, err = svc.Like(ctx, "a", "b")
	if err != nil || out.Outcome != "liked" {
		t.Fatalf("repeat like: out=%+v err=%v", out, err)
	}
	if got := pub.byType(notify.EventLike); len(got) != 1 {
		t.Fatalf("repeat like must not emit another event, got %d", len(got))
	}

	// 反向喜欢成立配对
	out, err = svc.Like(ctx, "b", "a")
	if err != nil {
		t.Fatalf("mutual like: %v", err)
	}
	if out.Outcome != "matched" || out.Match == nil {
		t.Fatalf("mutual like outcome = %+v", out)
	}
	if out.Match.ID != models.PairKey("a", "b") {
		t.Fatalf("match id = %s", out.Match.ID)
	}

	// 配对即建会话
	th, _ := threads.GetThread(ctx, out.Match.ID)
	if th == nil {
		t.Fatal("thread must exist after match")
	}

	// match 事件恰好一条
	if got := pub.byType(notify.EventMatch); len(got) != 1 || got[0].MatchID != out.Match.ID {
		t.Fatalf("match events = %+v", got)
	}

	matches, _ := svc.ListMatches(ctx, "a", 10)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
}

func TestLikeAfterMatchReportsExisting(t *testing.T) {
	svc, _, pub := newLikeServiceForTest()
	ctx := context.Background()

	if _, err := svc.Like(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	first, err := svc.Like(ctx, "b", "a")
	if err != nil {
		t.Fatal(err)
	}

	// 配对后重复 like：仍报告 matched，但不重复创建
	out, err := svc.Like(ctx, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if out.Outcome != "matched" || out.Match == nil || out.Match.ID != first.Match.ID {
		t.Fatalf("repeat after match = %+v", out)
	}
	if got := pub.byType(notify.EventMatch); len(got) != 1 {
		t.Fatalf("match events = %d, want 1", len(got))
	}
}

func TestConcurrentMutualLikesSingleMatch(t *testing.T) {
	svc, threads, pub := newLikeServiceForTest()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = svc.Like(context.Background(), "a", "b")
			} else {
				_, err = svc.Like(context.Background(), "b", "a")
			}
			if err != nil {
				t.Errorf("like: %v", err)
			}
		}(i)
	}
	wg.Wait()

	matches, _ := svc.ListMatches(context.Background(), "a", 10)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want exactly 1 under race", len(matches))
	}
	th, _ := threads.GetThread(context.Background(), models.PairKey("a", "b"))
	if th == nil {
		t.Fatal("exactly one thread must exist")
	}
	if got := pub.byType(notify.EventMatch); len(got) != 1 {
		t.Fatalf("match events = %d, want 1", len(got))
	}
}
