package services

import (
	"context"
	"errors"
	"testing"

	"go-match/internal/errs"
	"go-match/internal/models"
	"go-match/internal/store/memstore"
)

func TestPresenceServiceLiveness(t *testing.T) {
	svc := NewPresenceService(memstore.NewPresenceStore())
	ctx := context.Background()

	// 从未上线的用户返回离线视图而非错误
	view, err := svc.Get(ctx, "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if view.Online || view.Live {
		t.Fatalf("ghost view = %+v", view)
	}

	if err := svc.SetOnline(ctx, "u1", true); err != nil {
		t.Fatal(err)
	}
	view, _ = svc.Get(ctx, "u1")
	if !view.Online || !view.Live {
		t.Fatalf("online view = %+v", view)
	}

	if err := svc.SetTyping(ctx, "u1", "pair_a_b", true); err != nil {
		t.Fatal(err)
	}
	view, _ = svc.Get(ctx, "u1")
	if view.TypingThreadID != "pair_a_b" {
		t.Fatalf("typing = %q", view.TypingThreadID)
	}
	// typing=false 清除标记
	_ = svc.SetTyping(ctx, "u1", "pair_a_b", false)
	view, _ = svc.Get(ctx, "u1")
	if view.TypingThreadID != "" {
		t.Fatalf("typing after clear = %q", view.TypingThreadID)
	}

	if err := svc.Heartbeat(ctx, ""); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("empty uid: %v", err)
	}
}

func TestStreakServiceTickAndEvents(t *testing.T) {
	svc := NewStreakService(memstore.NewStreakStore())
	ctx := context.Background()

	rec, err := svc.Tick(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.StreakCurrent != 1 {
		t.Fatalf("current = %d, want 1", rec.StreakCurrent)
	}
	// 同日重复 Tick 幂等
	rec, _ = svc.Tick(ctx, "u1")
	if rec.StreakCurrent != 1 {
		t.Fatalf("same-day tick changed current to %d", rec.StreakCurrent)
	}

	count, awarded, err := svc.RecordEvent(ctx, "u1", models.EventInterestSaved)
	if err != nil || count != 1 || len(awarded) != 0 {
		t.Fatalf("count=%d awarded=%v err=%v", count, awarded, err)
	}
	for i := 0; i < 4; i++ {
		count, awarded, _ = svc.RecordEvent(ctx, "u1", models.EventInterestSaved)
	}
	if count != 5 || len(awarded) != 1 || awarded[0] != "curious_5" {
		t.Fatalf("after 5 saves: count=%d awarded=%v", count, awarded)
	}

	if _, _, err := svc.RecordEvent(ctx, "u1", models.EventKind("bogus")); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("bogus kind: %v", err)
	}

	// 从未活跃的用户返回零值记录
	rec, err = svc.Get(ctx, "fresh")
	if err != nil || rec.StreakCurrent != 0 || rec.LastActiveDay != "" {
		t.Fatalf("fresh rec = %+v err=%v", rec, err)
	}
}
