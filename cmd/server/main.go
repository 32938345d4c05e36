package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-match/internal/auth"
	"go-match/internal/cache"
	"go-match/internal/config"
	"go-match/internal/errs"
	"go-match/internal/metrics"
	"go-match/internal/models"
	"go-match/internal/mq"
	"go-match/internal/notify"
	httpx "go-match/internal/presentation/http"
	"go-match/internal/ratelimit"
	"go-match/internal/services"
	"go-match/internal/store"
	"go-match/internal/store/memstore"
	"go-match/internal/store/mongostore"
	"go-match/internal/store/sqlstore"
	"go-match/internal/transport/tcp"
	"go-match/internal/transport/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 解析查询参数为整数
func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	value, _ := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(defaultValue)))
	return value
}

// 类型化错误到 HTTP 状态码的映射
func errStatus(err error) int {
	if _, ok := errs.IsQuotaExceeded(err); ok {
		return http.StatusTooManyRequests
	}
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func main() {
	cfg := config.Load()

	cache.InitRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if cfg.EnableMetrics {
		metrics.Init()
	}

	// 根据配置选择存储：mysql、mongodb（会话/消息走 Mongo）或 memory（单进程演示）
	var (
		likeStore   store.LikeStoreInterface
		threadStore store.ThreadStoreInterface
		ledgerStore store.LedgerStoreInterface
		streakStore store.StreakStoreInterface
		userStore   store.UserStoreInterface
		quotaStore  store.QuotaStoreInterface
	)
	switch cfg.MessageDB {
	case "memory":
		likeStore = memstore.NewLikeStore()
		threadStore = memstore.NewThreadStore()
		ledgerStore = memstore.NewLedgerStore()
		streakStore = memstore.NewStreakStore()
		userStore = memstore.NewUserStore()
		quotaStore = memstore.NewQuotaStore()
	case "mongodb":
		primaryDB := mustOpen(cfg.MySQLDSN)
		mongoDB, err := mongostore.Connect(cfg.MongoURI)
		if err != nil {
			panic(fmt.Sprintf("MongoDB connection failed: %v", err))
		}
		likeStore = store.NewLikeStore(primaryDB)
		threadStore = store.NewMongoThreadStore(mongoDB)
		ledgerStore = store.NewLedgerStore(primaryDB)
		streakStore = store.NewStreakStore(primaryDB)
		userStore = store.NewUserStore(primaryDB)
		quotaStore = ratelimit.NewDailyQuota(cache.Client())
	default: // mysql
		primaryDB := mustOpen(cfg.MySQLDSN)
		likeStore = store.NewLikeStore(primaryDB)
		threadStore = store.NewThreadStore(primaryDB)
		ledgerStore = store.NewLedgerStore(primaryDB)
		streakStore = store.NewStreakStore(primaryDB)
		userStore = store.NewUserStore(primaryDB)
		quotaStore = ratelimit.NewDailyQuota(cache.Client())
	}

	presenceSvc := services.NewPresenceService(cache.NewPresenceStore())
	streakSvc := services.NewStreakService(streakStore)

	// 实时下发：发布到目标用户的个人通道，由 WS/TCP 网关写回
	deliver := func(ctx context.Context, uid string, payload []byte) {
		_ = cache.Client().Publish(ctx, cache.DeliverChannel(uid), payload).Err()
	}

	// 通知事件：配了 Kafka 走独立消费者进程，否则进程内异步派发
	var publisher notify.Publisher
	var producer *mq.KafkaProducer
	if cfg.NotifyEnabled {
		if cfg.KafkaBrokers != "" {
			p, err := mq.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaNotifyTopic)
			if err == nil {
				producer = p
				publisher = &notify.KafkaPublisher{Producer: p}
			}
			defer func() {
				if producer != nil {
					_ = producer.Close()
				}
			}()
		}
		if publisher == nil {
			var sender notify.Sender = notify.LogSender{}
			if cfg.SMTPAddr != "" {
				sender = &notify.SMTPSender{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom, User: cfg.SMTPUser, Pass: cfg.SMTPPass}
			}
			publisher = notify.NewLocalPublisher(notify.NewDispatcher(ledgerStore, userStore, sender), 256)
		}
	}

	likeSvc := services.NewLikeService(likeStore, threadStore)
	likeSvc.Streaks = streakStore
	likeSvc.Publisher = publisher
	likeSvc.Deliver = deliver

	chatSvc := services.NewChatService(threadStore, quotaStore, cfg.DailyChatStarts)
	chatSvc.Users = userStore
	chatSvc.Streaks = streakStore
	chatSvc.Deliver = deliver

	r := gin.Default()
	// 健康/指标
	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	if cfg.EnableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	userHandler := httpx.NewUserHandler(userStore, cfg.JWTSecret)
	r.POST("/api/register", userHandler.Register)
	r.POST("/api/login", userHandler.Login)

	// 简易认证
	authn := func(c *gin.Context) (string, bool) {
		tok := c.GetHeader("Authorization")
		if len(tok) > 7 && tok[:7] == "Bearer " {
			tok = tok[7:]
		}
		cl, err := auth.ParseJWT(cfg.JWTSecret, tok)
		if err != nil {
			c.JSON(401, gin.H{"error": "unauthorized"})
			return "", false
		}
		return cl.UserID, true
	}
	// 中间件形式，供 handler 结构体使用
	authMW := func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			c.Abort()
			return
		}
		c.Set("userID", uid)
		c.Next()
	}

	r.GET("/api/users/me", authMW, userHandler.GetProfile)
	r.PUT("/api/users/me", authMW, userHandler.UpdateProfile)
	r.PUT("/api/users/me/notify", authMW, userHandler.UpdateNotifyPrefs)

	// 喜欢与配对
	r.POST("/api/likes", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		var req struct {
			ToID string `json:"toId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		out, err := likeSvc.Like(c, uid, req.ToID)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, out)
	})
	r.GET("/api/likes/received", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		edges, err := likeSvc.ListLikers(c, uid, parseIntQuery(c, "limit", 100))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"likes": edges})
	})
	r.GET("/api/likes/sent", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		edges, err := likeSvc.ListLiked(c, uid, parseIntQuery(c, "limit", 100))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"likes": edges})
	})
	r.GET("/api/matches", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		matches, err := likeSvc.ListMatches(c, uid, parseIntQuery(c, "limit", 100))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"matches": matches})
	})

	// 会话与消息
	r.POST("/api/threads", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		var req struct {
			PeerID string `json:"peerId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		// 只有已配对的双方才能开会话
		match, err := likeStore.GetMatch(c, models.PairKey(uid, req.PeerID))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		if match == nil {
			c.JSON(403, gin.H{"error": "not matched"})
			return
		}
		thread, err := chatSvc.EnsureThread(c, uid, req.PeerID)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, thread)
	})
	r.GET("/api/threads", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		views, err := chatSvc.ListThreads(c, uid, parseIntQuery(c, "limit", 100))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"threads": views})
	})
	r.POST("/api/threads/:id/messages", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		msg, err := chatSvc.SendMessage(c, c.Param("id"), uid, req.Text)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, msg)
	})
	r.GET("/api/threads/:id/messages", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		msgs, err := chatSvc.ListMessages(c, c.Param("id"), uid, c.Query("afterId"), parseIntQuery(c, "limit", 50))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"messages": msgs})
	})
	r.POST("/api/threads/:id/read", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		if err := chatSvc.MarkRead(c, c.Param("id"), uid); err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(204)
	})

	// 当日开聊配额
	r.GET("/api/quota", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		cur, err := quotaStore.Current(c, uid, models.DayKey(time.Now()))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"used": cur, "limit": cfg.DailyChatStarts})
	})

	// 在线状态
	r.GET("/api/presence/:id", func(c *gin.Context) {
		_, ok := authn(c)
		if !ok {
			return
		}
		view, err := presenceSvc.Get(c, c.Param("id"))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, view)
	})
	r.POST("/api/presence/heartbeat", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		if err := presenceSvc.Heartbeat(c, uid); err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(204)
	})

	// 连续活跃与徽章
	r.GET("/api/streaks/me", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		rec, err := streakSvc.Get(c, uid)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, rec)
	})
	r.POST("/api/streaks/tick", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		rec, err := streakSvc.Tick(c, uid)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, rec)
	})
	// 兴趣保存等客户端侧参与度事件
	r.POST("/api/events", func(c *gin.Context) {
		uid, ok := authn(c)
		if !ok {
			return
		}
		var req struct {
			Kind string `json:"kind" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		count, awarded, err := streakSvc.RecordEvent(c, uid, models.EventKind(req.Kind))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"count": count, "awarded": awarded})
	})

	// WebSocket 网关
	limiter := ratelimit.NewTokenBucketLimiter(cache.Client())
	wsServer := &ws.Server{
		JWTSecret:   cfg.JWTSecret,
		ChatSvc:     chatSvc,
		PresenceSvc: presenceSvc,
		StreakSvc:   streakSvc,
		SendQPS:     cfg.WSSendQPS,
		SendBurst:   cfg.WSSendBurst,
		Limiter:     limiter,
	}
	r.GET("/ws", wsServer.Handle)

	// TCP（可选）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go (&tcp.Server{Addr: cfg.TCPAddr, JWTSecret: cfg.JWTSecret}).Start(ctx)

	// 管理后台 API
	adminGroup := r.Group("/api/admin")
	{
		adminAuth := func(c *gin.Context) {
			authHeader := c.GetHeader("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				c.JSON(401, gin.H{"error": "未授权"})
				c.Abort()
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.ParseJWT(cfg.JWTSecret, token)
			if err != nil {
				c.JSON(401, gin.H{"error": "无效的token"})
				c.Abort()
				return
			}
			u, err := userStore.GetByID(c, claims.UserID)
			if err != nil || u == nil || u.Username != "admin" {
				c.JSON(401, gin.H{"error": "管理员权限不足"})
				c.Abort()
				return
			}
			c.Set("adminUserID", claims.UserID)
			c.Next()
		}

		adminGroup.Use(adminAuth)
		adminGroup.GET("/stats", func(c *gin.Context) {
			onlineUsers := len(cache.Client().SMembers(c, cache.OnlineUsersKey()).Val())
			c.JSON(200, gin.H{"onlineUsers": onlineUsers})
		})
		// 无限开聊资格（付费会员等）
		adminGroup.POST("/users/:id/unlimited", func(c *gin.Context) {
			var req struct {
				Unlimited bool `json:"unlimited"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			if err := userStore.SetUnlimited(c, c.Param("id"), req.Unlimited); err != nil {
				c.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			c.Status(204)
		})
	}

	_ = r.Run(cfg.ListenAddr)
}

func mustOpen(dsn string) *sql.DB {
	db, err := sqlstore.Open(dsn)
	if err != nil {
		panic(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = db.PingContext(ctx)
	return db
}
