package models

import (
	"testing"
	"time"
)

func TestPairKeyCommutative(t *testing.T) {
	if PairKey("alice", "bob") != PairKey("bob", "alice") {
		t.Fatal("pair key must not depend on argument order")
	}
	if PairKey("alice", "bob") == PairKey("alice", "carol") {
		t.Fatal("different pairs must get different keys")
	}
	a, b := SortPair("bob", "alice")
	if a != "alice" || b != "bob" {
		t.Fatalf("SortPair = (%s, %s)", a, b)
	}
}

func TestUnreadFor(t *testing.T) {
	thread := &Thread{ID: "pair_a_b", MemberA: "a", MemberB: "b"}

	// 没有消息就没有未读
	if thread.UnreadFor("a") || thread.UnreadFor("b") {
		t.Fatal("empty thread must have no unread")
	}

	thread.LastMessage = &LastMessage{ID: "m1", FromID: "a", ReadBy: map[string]bool{"a": true}}
	if thread.UnreadFor("a") {
		t.Fatal("sender must not see own message as unread")
	}
	if !thread.UnreadFor("b") {
		t.Fatal("receiver should see unread before reading")
	}

	thread.LastMessage.ReadBy["b"] = true
	if thread.UnreadFor("b") {
		t.Fatal("unread must clear after read")
	}
}

func TestMatchOther(t *testing.T) {
	m := &Match{ID: "pair_a_b", MemberA: "a", MemberB: "b"}
	if m.Other("a") != "b" || m.Other("b") != "a" {
		t.Fatal("Other should return the peer")
	}
	if m.Other("c") != "" {
		t.Fatal("Other for non-member should be empty")
	}
}

func TestOnlineWithin(t *testing.T) {
	now := time.Now()
	p := &PresenceRecord{UserID: "u1", Online: true, LastSeen: now.Add(-30 * time.Second)}
	if !p.OnlineWithin(time.Minute, now) {
		t.Fatal("recent heartbeat should count as live")
	}
	p.LastSeen = now.Add(-2 * time.Minute)
	if p.OnlineWithin(time.Minute, now) {
		t.Fatal("stale heartbeat should not count as live")
	}
	p.Online = false
	p.LastSeen = now
	if p.OnlineWithin(time.Minute, now) {
		t.Fatal("offline flag wins even with fresh heartbeat")
	}
}

func TestNewMessageIDOrdering(t *testing.T) {
	t1 := time.Unix(1700000000, 1000)
	t2 := time.Unix(1700000000, 2000)
	id1 := NewMessageID(t1)
	id2 := NewMessageID(t2)
	if !(id1 < id2) {
		t.Fatalf("ids must sort by creation time: %s vs %s", id1, id2)
	}
	if id1 == NewMessageID(t1) {
		t.Fatal("ids for the same instant must still be distinct")
	}
}
