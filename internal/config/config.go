package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listenAddr"`
	TCPAddr    string `yaml:"tcpAddr"`
	RedisAddr  string `yaml:"redisAddr"`
	RedisDB    int    `yaml:"redisDB"`
	RedisPass  string `yaml:"redisPass"`
	MySQLDSN   string `yaml:"mysqlDSN"`
	MongoURI   string `yaml:"mongoURI"`
	JWTSecret  string `yaml:"jwtSecret"`

	// 消息存储选择：mysql、mongodb 或 memory（本地默认 mysql）
	MessageDB string `yaml:"messageDB"`

	// Kafka 配置（可选；为空则通知在进程内异步派发）
	KafkaBrokers     string `yaml:"kafkaBrokers"` // 逗号分隔
	KafkaNotifyTopic string `yaml:"kafkaNotifyTopic"`

	// 免费档每日开聊上限
	DailyChatStarts int64 `yaml:"dailyChatStarts"`

	// 通知邮件
	NotifyEnabled bool   `yaml:"notifyEnabled"`
	SMTPAddr      string `yaml:"smtpAddr"` // host:port；为空则仅记录日志
	SMTPFrom      string `yaml:"smtpFrom"`
	SMTPUser      string `yaml:"smtpUser"`
	SMTPPass      string `yaml:"smtpPass"`

	// 速率限制（WS 发送）
	WSSendQPS   int `yaml:"wsSendQPS"`
	WSSendBurst int `yaml:"wsSendBurst"`

	// 指标开关
	EnableMetrics bool `yaml:"enableMetrics"`
}

func Load() *Config {
	// 1) 默认值
	cfg := &Config{
		ListenAddr: ":8080",
		TCPAddr:    "",
		RedisAddr:  "127.0.0.1:6379",
		RedisPass:  "",
		MySQLDSN:   "root:password@tcp(127.0.0.1:3306)/gomatch?parseTime=true&loc=UTC&charset=utf8mb4",
		MongoURI:   "mongodb://127.0.0.1:27017/gomatch",
		JWTSecret:  "change-me-in-prod",

		MessageDB: "mysql",

		KafkaBrokers:     "",
		KafkaNotifyTopic: "dm-notify-events",

		DailyChatStarts: 5,

		NotifyEnabled: true,
		SMTPAddr:      "",
		SMTPFrom:      "noreply@gomatch.local",

		WSSendQPS:     20,
		WSSendBurst:   40,
		EnableMetrics: true,
	}

	// 2) YAML 覆盖（如果有）
	configPath := getEnv("DM_CONFIG_FILE", getEnv("CONFIG_FILE", "config.yml"))
	if st, err := os.Stat(configPath); err == nil && !st.IsDir() {
		if data, err2 := os.ReadFile(configPath); err2 == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	// 3) 环境变量覆盖 YAML
	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	setStr := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setInt64 := func(env string, dst *int64) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(env string, dst *bool) {
		if v := os.Getenv(env); v != "" {
			*dst = (v == "true" || v == "1" || v == "yes")
		}
	}

	setStr("DM_LISTEN_ADDR", &cfg.ListenAddr)
	setStr("DM_TCP_ADDR", &cfg.TCPAddr)
	setStr("DM_REDIS_ADDR", &cfg.RedisAddr)
	setStr("DM_REDIS_PASS", &cfg.RedisPass)
	setInt("DM_REDIS_DB", &cfg.RedisDB)
	setStr("DM_MYSQL_DSN", &cfg.MySQLDSN)
	setStr("DM_MONGO_URI", &cfg.MongoURI)
	setStr("DM_JWT_SECRET", &cfg.JWTSecret)

	setStr("DM_MESSAGE_DB", &cfg.MessageDB)

	setStr("DM_KAFKA_BROKERS", &cfg.KafkaBrokers)
	setStr("DM_KAFKA_NOTIFY_TOPIC", &cfg.KafkaNotifyTopic)

	setInt64("DM_DAILY_CHAT_STARTS", &cfg.DailyChatStarts)

	setBool("DM_NOTIFY_ENABLED", &cfg.NotifyEnabled)
	setStr("DM_SMTP_ADDR", &cfg.SMTPAddr)
	setStr("DM_SMTP_FROM", &cfg.SMTPFrom)
	setStr("DM_SMTP_USER", &cfg.SMTPUser)
	setStr("DM_SMTP_PASS", &cfg.SMTPPass)

	setInt("DM_WS_SEND_QPS", &cfg.WSSendQPS)
	setInt("DM_WS_SEND_BURST", &cfg.WSSendBurst)
	setBool("DM_ENABLE_METRICS", &cfg.EnableMetrics)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
