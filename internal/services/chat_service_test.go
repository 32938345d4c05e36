package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"
	"go-match/internal/store/memstore"
)

func newChatServiceForTest(limit int64) (*ChatService, *memstore.UserStore) {
	users := memstore.NewUserStore()
	svc := NewChatService(memstore.NewThreadStore(), memstore.NewQuotaStore(), limit)
	svc.Users = users
	svc.Streaks = memstore.NewStreakStore()
	return svc, users
}

func TestSendMessageBasics(t *testing.T) {
	svc, _ := newChatServiceForTest(5)
	ctx := context.Background()

	th, err := svc.EnsureThread(ctx, "a", "b")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	msg, err := svc.SendMessage(ctx, th.ID, "a", "  hello  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Text != "hello" {
		t.Fatalf("text = %q, want trimmed", msg.Text)
	}

	// 非成员拒绝
	if _, err := svc.SendMessage(ctx, th.ID, "mallory", "hi"); !errors.Is(err, errs.ErrNotAMember) {
		t.Fatalf("outsider send: %v", err)
	}
	// 不存在的会话
	if _, err := svc.SendMessage(ctx, "pair_x_y", "x", "hi"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing thread: %v", err)
	}
	// 审核拒绝：清洗后为空
	if _, err := svc.SendMessage(ctx, th.ID, "a", "   "); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("blank text: %v", err)
	}
	if _, err := svc.SendMessage(ctx, th.ID, "a", strings.Repeat("x", 3000)); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("oversized text: %v", err)
	}
}

func TestQuotaOnlyChargedForNewThreads(t *testing.T) {
	svc, _ := newChatServiceForTest(2)
	ctx := context.Background()

	// 两个新会话消耗 2 个配额
	for _, peer := range []string{"b", "c"} {
		th, _ := svc.EnsureThread(ctx, "a", peer)
		if _, err := svc.SendMessage(ctx, th.ID, "a", "hi"); err != nil {
			t.Fatalf("first message to %s: %v", peer, err)
		}
		// 同一会话继续发不再计费
		for i := 0; i < 5; i++ {
			if _, err := svc.SendMessage(ctx, th.ID, "a", "more"); err != nil {
				t.Fatalf("follow-up in %s: %v", th.ID, err)
			}
		}
	}

	// 第三个新会话触发限额
	th, _ := svc.EnsureThread(ctx, "a", "d")
	_, err := svc.SendMessage(ctx, th.ID, "a", "hi")
	qe, ok := errs.IsQuotaExceeded(err)
	if !ok {
		t.Fatalf("want quota error, got %v", err)
	}
	if qe.Limit != 2 {
		t.Fatalf("limit = %d, want 2", qe.Limit)
	}

	// 被拒后没有消息写入
	msgs, _ := svc.Threads.ListMessages(ctx, th.ID, "", 10)
	if len(msgs) != 0 {
		t.Fatalf("rejected send left %d messages", len(msgs))
	}
}

func TestUnlimitedUserBypassesQuota(t *testing.T) {
	svc, users := newChatServiceForTest(1)
	ctx := context.Background()

	_ = users.CreateUser(ctx, &models.User{ID: "vip", Username: "vip", Unlimited: true})

	for _, peer := range []string{"b", "c", "d"} {
		th, _ := svc.EnsureThread(ctx, "vip", peer)
		if _, err := svc.SendMessage(ctx, th.ID, "vip", "hi"); err != nil {
			t.Fatalf("unlimited user blocked on %s: %v", peer, err)
		}
	}
}

func TestIncomingMessageDoesNotChargeReceiver(t *testing.T) {
	svc, _ := newChatServiceForTest(1)
	ctx := context.Background()

	// a 用掉唯一配额
	th, _ := svc.EnsureThread(ctx, "a", "b")
	if _, err := svc.SendMessage(ctx, th.ID, "a", "hi"); err != nil {
		t.Fatal(err)
	}

	// b 在已有会话中回复：b 的配额不受影响
	if _, err := svc.SendMessage(ctx, th.ID, "b", "hey"); err != nil {
		t.Fatalf("reply should not consume quota: %v", err)
	}
	th2, _ := svc.EnsureThread(ctx, "b", "c")
	if _, err := svc.SendMessage(ctx, th2.ID, "b", "hello"); err != nil {
		t.Fatalf("b still has own quota: %v", err)
	}
}

func TestMarkReadAndThreadList(t *testing.T) {
	svc, _ := newChatServiceForTest(10)
	ctx := context.Background()

	th1, _ := svc.EnsureThread(ctx, "a", "b")
	if _, err := svc.SendMessage(ctx, th1.ID, "a", "hi"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	th2, _ := svc.EnsureThread(ctx, "a", "c")
	if _, err := svc.SendMessage(ctx, th2.ID, "c", "yo"); err != nil {
		t.Fatal(err)
	}

	views, err := svc.ListThreads(ctx, "a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("threads = %d, want 2", len(views))
	}
	// 最近活动在前
	if views[0].ID != th2.ID {
		t.Fatalf("ordering: first = %s, want %s", views[0].ID, th2.ID)
	}
	// a 发的 th1 对 a 不算未读；c 发的 th2 对 a 未读
	for _, v := range views {
		switch v.ID {
		case th1.ID:
			if v.Unread {
				t.Fatal("own message must not be unread")
			}
		case th2.ID:
			if !v.Unread {
				t.Fatal("incoming message must be unread")
			}
		}
	}

	if err := svc.MarkRead(ctx, th2.ID, "a"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, th2.ID, "a"); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, th2.ID, "mallory"); !errors.Is(err, errs.ErrNotAMember) {
		t.Fatalf("outsider mark read: %v", err)
	}

	views, _ = svc.ListThreads(ctx, "a", 10)
	for _, v := range views {
		if v.Unread {
			t.Fatalf("thread %s still unread after read", v.ID)
		}
	}
}

func TestListMessagesMembership(t *testing.T) {
	svc, _ := newChatServiceForTest(10)
	ctx := context.Background()

	th, _ := svc.EnsureThread(ctx, "a", "b")
	for i := 0; i < 3; i++ {
		if _, err := svc.SendMessage(ctx, th.ID, "a", "hi"); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := svc.ListMessages(ctx, th.ID, "b", "", 10)
	if err != nil || len(msgs) != 3 {
		t.Fatalf("msgs=%d err=%v", len(msgs), err)
	}
	if _, err := svc.ListMessages(ctx, th.ID, "mallory", "", 10); !errors.Is(err, errs.ErrNotAMember) {
		t.Fatalf("outsider list: %v", err)
	}
}
