// Package ws 提供 WebSocket 接入网关：处理认证、连接生命周期、上行动作（发送/已读/输入中/心跳）与下行分发（通过 Redis Pub/Sub）。
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"go-match/internal/auth"
	"go-match/internal/cache"
	"go-match/internal/errs"
	"go-match/internal/metrics"
	"go-match/internal/ratelimit"
	"go-match/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server 是 WebSocket 网关服务。
// - 注入会话服务 ChatSvc 完成消息入库与对端投递
// - 在线状态与心跳走 PresenceSvc，连接建立即记一次当日活跃
// - 基于 Redis 令牌桶对上行发送做速率限制，防止滥用
// - 每个连接使用单独的写锁，避免并发写触发 gorilla/websocket 冲突
type Server struct {
	JWTSecret   string
	ChatSvc     *services.ChatService
	PresenceSvc *services.PresenceService
	StreakSvc   *services.StreakService

	// 速率限制参数
	SendQPS   int
	SendBurst int
	Limiter   *ratelimit.TokenBucketLimiter
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSMessage 统一封装上行的动作与数据载荷。
// action 示例：send、read、typing、heartbeat
type WSMessage struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// SendPayload 客户端发送消息时的载荷。
type SendPayload struct {
	ThreadID string `json:"threadId"`
	Text     string `json:"text"`
}

// 已读负载
type ReadPayload struct {
	ThreadID string `json:"threadId"`
}

// 正在输入负载
type TypingPayload struct {
	ThreadID string `json:"threadId"`
	Typing   bool   `json:"typing"`
}

// Handle 处理 HTTP 升级为 WebSocket，以及该连接的读/写循环。
// - 认证：支持 URL 查询参数或 Authorization: Bearer 传递 JWT
// - 上线/下线：连接建立置在线并记当日活跃，退出自动置离线
// - 下行：订阅个人投递通道，将 Redis 消息写回客户端
func (s *Server) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	claims, err := auth.ParseJWT(s.JWTSecret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	userID := claims.UserID
	log.Printf("WS connected: user=%s", userID)
	if s.PresenceSvc != nil {
		_ = s.PresenceSvc.SetOnline(ctx, userID, true)
	}
	if s.StreakSvc != nil {
		if _, err := s.StreakSvc.Tick(ctx, userID); err != nil {
			log.Printf("WS streak tick error: user=%s err=%v", userID, err)
		}
	}
	defer func() {
		if s.PresenceSvc != nil {
			_ = s.PresenceSvc.SetOnline(context.Background(), userID, false)
		}
		log.Printf("WS disconnected: user=%s", userID)
	}()

	// 每个连接的写锁，序列化所有写操作，避免 concurrent write
	writeMu := &sync.Mutex{}

	// 订阅个人下发通道
	sub := cache.Client().Subscribe(ctx, cache.DeliverChannel(userID))
	defer sub.Close()

	// 读循环：处理客户端上行动作
	go func() {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				log.Printf("WS read error: user=%s err=%v", userID, err)
				return
			}
			if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
				continue
			}
			var m WSMessage
			if err := json.Unmarshal(data, &m); err != nil {
				log.Printf("WS unmarshal error: user=%s err=%v data=%q", userID, err, string(data))
				continue
			}
			metrics.WSMessagesTotal.WithLabelValues(m.Action).Inc()
			s.handleInbound(ctx, userID, conn, writeMu, &m)
		}
	}()

	// 写循环：将 Redis 收到的消息发给客户端
	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			log.Printf("WS redis receive error: user=%s err=%v", userID, err)
			return
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		writeMu.Lock()
		err = conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload))
		writeMu.Unlock()
		if err != nil {
			log.Printf("WS write error: user=%s err=%v", userID, err)
			return
		}
	}
}

// rateLimitAllow 使用 Redis 令牌桶对用户维度的发送做限速。
// 出错时当前实现放行。
func (s *Server) rateLimitAllow(ctx context.Context, userID string) bool {
	qps := s.SendQPS
	burst := s.SendBurst
	if qps <= 0 {
		qps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	if s.Limiter == nil {
		return true
	}
	allowed, _, _ := s.Limiter.Allow(ctx, "dm:tb:ws:send:"+userID, qps, burst)
	return allowed
}

func writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, v any) {
	b, _ := json.Marshal(v)
	writeMu.Lock()
	_ = conn.WriteMessage(websocket.TextMessage, b)
	writeMu.Unlock()
}

// handleInbound 处理上行动作：
// - send：限速 → ChatSvc.SendMessage（含成员校验、审核、开聊配额）→ 返回 ack
// - read：标记会话已读 → read_ack
// - typing：写入在线状态的输入标记并转发给对端
// - heartbeat：刷新心跳时间
func (s *Server) handleInbound(ctx context.Context, userID string, conn *websocket.Conn, writeMu *sync.Mutex, m *WSMessage) {
	switch m.Action {
	case "send":
		if !s.rateLimitAllow(ctx, userID) {
			writeJSON(conn, writeMu, gin.H{"action": "error", "data": gin.H{"code": "RATE_LIMIT"}})
			log.Printf("WS send blocked by rate limit: user=%s", userID)
			return
		}
		var p SendPayload
		if err := json.Unmarshal(m.Data, &p); err != nil {
			log.Printf("WS send payload unmarshal error: user=%s err=%v", userID, err)
			return
		}
		msg, err := s.ChatSvc.SendMessage(ctx, p.ThreadID, userID, p.Text)
		if err != nil {
			writeJSON(conn, writeMu, gin.H{"action": "error", "data": gin.H{"code": sendErrCode(err), "message": err.Error()}})
			log.Printf("WS send failed: user=%s thread=%s err=%v", userID, p.ThreadID, err)
			return
		}
		writeJSON(conn, writeMu, gin.H{"action": "ack", "data": msg})
	case "read":
		var p ReadPayload
		if err := json.Unmarshal(m.Data, &p); err != nil {
			return
		}
		if err := s.ChatSvc.MarkRead(ctx, p.ThreadID, userID); err != nil {
			writeJSON(conn, writeMu, gin.H{"action": "error", "data": gin.H{"code": sendErrCode(err), "message": err.Error()}})
			return
		}
		writeJSON(conn, writeMu, gin.H{"action": "read_ack", "data": p})
	case "typing":
		var p TypingPayload
		if err := json.Unmarshal(m.Data, &p); err != nil {
			log.Printf("WS typing unmarshal error: user=%s err=%v", userID, err)
			return
		}
		if s.PresenceSvc != nil {
			_ = s.PresenceSvc.SetTyping(ctx, userID, p.ThreadID, p.Typing)
		}
		// 输入状态转发给会话对端
		thread, err := s.ChatSvc.Threads.GetThread(ctx, p.ThreadID)
		if err != nil || thread == nil || !thread.HasMember(userID) {
			return
		}
		peer := thread.MemberA
		if peer == userID {
			peer = thread.MemberB
		}
		b, _ := json.Marshal(gin.H{"action": "typing", "data": gin.H{"threadId": p.ThreadID, "from": userID, "typing": p.Typing, "ts": time.Now().UnixMilli()}})
		if err := cache.Client().Publish(ctx, cache.DeliverChannel(peer), b).Err(); err != nil {
			log.Printf("WS typing publish error: user=%s to=%s err=%v", userID, peer, err)
		}
	case "heartbeat":
		if s.PresenceSvc != nil {
			_ = s.PresenceSvc.Heartbeat(ctx, userID)
		}
		writeJSON(conn, writeMu, gin.H{"action": "heartbeat_ack", "data": gin.H{"ts": time.Now().UnixMilli()}})
	}
}

func sendErrCode(err error) string {
	if _, ok := errs.IsQuotaExceeded(err); ok {
		return "QUOTA_EXCEEDED"
	}
	switch {
	case errors.Is(err, errs.ErrNotAMember):
		return "NOT_A_MEMBER"
	case errors.Is(err, errs.ErrNotFound):
		return "NOT_FOUND"
	default:
		return "SEND_FAILED"
	}
}
