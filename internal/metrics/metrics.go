package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	LikesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dm_likes_total", Help: "喜欢操作数"},
		[]string{"outcome"}, // liked / matched / duplicate
	)
	MessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dm_messages_total", Help: "消息发送数"},
	)
	QuotaRejectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dm_quota_rejects_total", Help: "每日开聊限额拒绝数"},
	)
	NotifySendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dm_notify_sends_total", Help: "通知邮件发送数"},
		[]string{"event", "result"}, // like/match × sent/failed/skipped
	)
	WSMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dm_ws_messages_total", Help: "WS上行消息数"},
		[]string{"action"},
	)
	MessageSendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dm_send_latency_ms", Help: "消息发送端到端延迟(近似)", Buckets: prometheus.LinearBuckets(5, 5, 20)},
	)
)

func Init() {
	prometheus.MustRegister(LikesTotal)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(QuotaRejectsTotal)
	prometheus.MustRegister(NotifySendsTotal)
	prometheus.MustRegister(WSMessagesTotal)
	prometheus.MustRegister(MessageSendLatency)
}
