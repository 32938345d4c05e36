package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"go-match/internal/metrics"
	"go-match/internal/models"
	"go-match/internal/store"
)

// Dispatcher 通知派发器：
// 1) tryClaim 幂等键，抢不到直接跳过（事件可能被至少一次投递）
// 2) 解析接收方偏好与联系地址，任一不满足则跳过
// 3) 发送失败仅记日志丢弃，绝不释放已占用的键
// 派发永远发生在触发写提交之后，对业务写不可见。
type Dispatcher struct {
	Ledger store.LedgerStoreInterface
	Users  store.UserStoreInterface
	Sender Sender
}

func NewDispatcher(ledger store.LedgerStoreInterface, users store.UserStoreInterface, sender Sender) *Dispatcher {
	return &Dispatcher{Ledger: ledger, Users: users, Sender: sender}
}

// Handle 处理单个事件；任何错误都在本地消化。
func (d *Dispatcher) Handle(ctx context.Context, evt Event) {
	switch evt.Type {
	case EventLike:
		d.handleLike(ctx, evt)
	case EventMatch:
		d.handleMatch(ctx, evt)
	default:
		log.Printf("Notify.Handle unknown event type=%q", evt.Type)
	}
}

func (d *Dispatcher) handleLike(ctx context.Context, evt Event) {
	d.deliver(ctx, "like", evt.ToID, LikeClaimKey(evt.FromID, evt.ToID),
		"有人喜欢了你", "你收到了一个新的喜欢，打开应用看看是谁吧。")
}

func (d *Dispatcher) handleMatch(ctx context.Context, evt Event) {
	members := [2]string{evt.MemberA, evt.MemberB}
	for i, uid := range members {
		other := members[1-i]
		d.deliver(ctx, "match", uid, MatchClaimKey(evt.MatchID, uid),
			"配对成功", fmt.Sprintf("你和 %s 互相喜欢，现在可以开始聊天了。", d.displayName(ctx, other)))
	}
}

// deliver 偏好解析 → 占用幂等键 → 发送。
// 偏好不满足时不占键（之后开启通知的用户不受历史事件影响）；
// 键一旦占用，发送失败也不释放、不重试，受保护副作用至多执行一次。
func (d *Dispatcher) deliver(ctx context.Context, event, uid, claimKey, subject, body string) {
	u, err := d.Users.GetByID(ctx, uid)
	if err != nil || u == nil {
		log.Printf("Notify.%s user lookup failed: uid=%s err=%v", event, uid, err)
		metrics.NotifySendsTotal.WithLabelValues(event, "skipped").Inc()
		return
	}
	if !allowed(u, event) {
		metrics.NotifySendsTotal.WithLabelValues(event, "skipped").Inc()
		return
	}
	addr, err := d.Users.ResolveContact(ctx, uid)
	if err != nil || addr == "" {
		metrics.NotifySendsTotal.WithLabelValues(event, "skipped").Inc()
		return
	}
	claimed, err := d.Ledger.TryClaim(ctx, claimKey, time.Now())
	if err != nil {
		log.Printf("Notify.%s claim error: key=%s err=%v", event, claimKey, err)
		return
	}
	if !claimed {
		return
	}
	if err := d.Sender.Send(addr, subject, body); err != nil {
		// 失败即丢弃，不释放幂等键
		log.Printf("Notify.%s send failed: uid=%s err=%v", event, uid, err)
		metrics.NotifySendsTotal.WithLabelValues(event, "failed").Inc()
		return
	}
	metrics.NotifySendsTotal.WithLabelValues(event, "sent").Inc()
}

// 发送条件：全局开关 且 事件类型开关 且 地址可解析
func allowed(u *models.User, event string) bool {
	if !u.NotifyEnabled {
		return false
	}
	switch event {
	case "like":
		return u.NotifyOnLike
	case "match":
		return u.NotifyOnMatch
	}
	return false
}

func (d *Dispatcher) displayName(ctx context.Context, uid string) string {
	if u, err := d.Users.GetByID(ctx, uid); err == nil && u != nil && u.Nickname != "" {
		return u.Nickname
	}
	return "对方"
}
