package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-match/internal/models"
	"go-match/internal/store/memstore"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string // 收件地址
	fail  bool
	calls int
}

func (f *fakeSender) Send(address, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, address)
	return nil
}

func newDispatcherForTest(sender Sender) (*Dispatcher, *memstore.UserStore) {
	users := memstore.NewUserStore()
	d := NewDispatcher(memstore.NewLedgerStore(), users, sender)
	return d, users
}

func addUser(t *testing.T, users *memstore.UserStore, id string, opts func(*models.User)) {
	t.Helper()
	u := &models.User{
		ID: id, Username: id, Nickname: id,
		Email:         id + "@example.com",
		NotifyEnabled: true, NotifyOnLike: true, NotifyOnMatch: true,
	}
	if opts != nil {
		opts(u)
	}
	if err := users.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
}

func TestLikeEventAtMostOnce(t *testing.T) {
	sender := &fakeSender{}
	d, users := newDispatcherForTest(sender)
	addUser(t, users, "b", nil)

	evt := Event{Type: EventLike, FromID: "a", ToID: "b", TS: time.Now().UnixMilli()}
	// 至少一次投递：同一事件处理多次
	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Handle(context.Background(), evt)
		}()
	}
	wg.Wait()

	if len(sender.sent) != 1 || sender.sent[0] != "b@example.com" {
		t.Fatalf("sent = %v, want exactly one to b", sender.sent)
	}
}

func TestMatchEventNotifiesBothMembersOnce(t *testing.T) {
	sender := &fakeSender{}
	d, users := newDispatcherForTest(sender)
	addUser(t, users, "a", nil)
	addUser(t, users, "b", nil)

	evt := Event{Type: EventMatch, MatchID: "pair_a_b", MemberA: "a", MemberB: "b", TS: time.Now().UnixMilli()}
	d.Handle(context.Background(), evt)
	d.Handle(context.Background(), evt) // 重放

	if len(sender.sent) != 2 {
		t.Fatalf("sent = %v, want one per member", sender.sent)
	}
	got := map[string]bool{sender.sent[0]: true, sender.sent[1]: true}
	if !got["a@example.com"] || !got["b@example.com"] {
		t.Fatalf("sent = %v", sender.sent)
	}
}

func TestSendFailureIsNotRetried(t *testing.T) {
	sender := &fakeSender{fail: true}
	d, users := newDispatcherForTest(sender)
	addUser(t, users, "b", nil)

	evt := Event{Type: EventLike, FromID: "a", ToID: "b"}
	d.Handle(context.Background(), evt)
	if sender.calls != 1 {
		t.Fatalf("calls = %d, want 1", sender.calls)
	}

	// 失败不释放幂等键：重放也不再尝试发送
	d.Handle(context.Background(), evt)
	if sender.calls != 1 {
		t.Fatalf("calls after replay = %d, want still 1", sender.calls)
	}
}

func TestOptOutAndMissingContactSkip(t *testing.T) {
	sender := &fakeSender{}
	d, users := newDispatcherForTest(sender)
	addUser(t, users, "mute", func(u *models.User) { u.NotifyEnabled = false })
	addUser(t, users, "nolike", func(u *models.User) { u.NotifyOnLike = false })
	addUser(t, users, "noaddr", func(u *models.User) { u.Email = "" })

	for _, uid := range []string{"mute", "nolike", "noaddr", "ghost"} {
		d.Handle(context.Background(), Event{Type: EventLike, FromID: "a", ToID: uid})
	}
	if sender.calls != 0 {
		t.Fatalf("calls = %d, want 0 for skipped recipients", sender.calls)
	}

	// 按事件类型的开关互不影响：nolike 仍然接收 match 通知
	addUser(t, users, "peer", nil)
	d.Handle(context.Background(), Event{Type: EventMatch, MatchID: "pair_nolike_peer", MemberA: "nolike", MemberB: "peer"})
	found := false
	for _, addr := range sender.sent {
		if addr == "nolike@example.com" {
			found = true
		}
	}
	if !found {
		t.Fatal("per-event opt-out must not block other event types")
	}
}
