// Package notify 实现喜欢/配对事件的通知派发：
// 事件在触发写提交后异步产生（至少一次），幂等账本把实际发送收敛为至多一次。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"go-match/internal/mq"
)

type EventType string

const (
	EventLike  EventType = "like"
	EventMatch EventType = "match"
)

// Event 通知事件载荷；Like 事件携带边的两端，Match 事件携带配对 ID 与双方成员。
type Event struct {
	Type    EventType `json:"type"`
	FromID  string    `json:"fromId,omitempty"`
	ToID    string    `json:"toId,omitempty"`
	MatchID string    `json:"matchId,omitempty"`
	MemberA string    `json:"memberA,omitempty"`
	MemberB string    `json:"memberB,omitempty"`
	TS      int64     `json:"ts"`
}

// LikeClaimKey/MatchClaimKey 幂等账本键；键布局是对外契约，变更会导致重发。
func LikeClaimKey(from, to string) string { return fmt.Sprintf("like:%s:%s", from, to) }
func MatchClaimKey(matchID, member string) string {
	return fmt.Sprintf("match:%s:%s", matchID, member)
}

// Publisher 事件发布抽象：业务写提交后调用，不得阻塞、不得回滚业务。
type Publisher interface {
	Publish(evt Event)
}

// KafkaPublisher 经 Kafka 投递事件，由独立消费者进程派发。
type KafkaPublisher struct {
	Producer *mq.KafkaProducer
}

func (p *KafkaPublisher) Publish(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("Notify.Publish marshal error: %v", err)
		return
	}
	key := evt.MatchID
	if key == "" {
		key = evt.ToID
	}
	p.Producer.Publish(payload, []byte(key))
}

// LocalPublisher 无 Kafka 时的进程内异步派发：
// 缓冲满则丢弃（通知属尽力而为，绝不反压业务写）。
type LocalPublisher struct {
	ch chan Event
}

func NewLocalPublisher(d *Dispatcher, buffer int) *LocalPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	p := &LocalPublisher{ch: make(chan Event, buffer)}
	go func() {
		for evt := range p.ch {
			d.Handle(context.Background(), evt)
		}
	}()
	return p
}

func (p *LocalPublisher) Publish(evt Event) {
	select {
	case p.ch <- evt:
	default:
		log.Printf("Notify.Publish drop: local queue full type=%s", evt.Type)
	}
}
