package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-match/internal/config"
	"go-match/internal/notify"
	"go-match/internal/store"
	"go-match/internal/store/sqlstore"

	"github.com/IBM/sarama"
)

// 通知事件的独立消费进程：
// 事件至少一次投递，幂等账本在派发端把实际发送收敛为至多一次，
// 所以消费者可以放心重启、重放。
type handler struct {
	ctx        context.Context
	dispatcher *notify.Dispatcher
}

func (h *handler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *handler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }
func (h *handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var evt notify.Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Printf("notify consumer unmarshal error: %v", err)
		} else {
			h.dispatcher.Handle(h.ctx, evt)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

func main() {
	cfg := config.Load()
	if cfg.KafkaBrokers == "" {
		log.Fatal("DM_KAFKA_BROKERS 未配置")
	}

	primaryDB := mustOpen(cfg.MySQLDSN)
	ledgerStore := store.NewLedgerStore(primaryDB)
	userStore := store.NewUserStore(primaryDB)

	var sender notify.Sender = notify.LogSender{}
	if cfg.SMTPAddr != "" {
		sender = &notify.SMTPSender{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom, User: cfg.SMTPUser, Pass: cfg.SMTPPass}
	}
	dispatcher := notify.NewDispatcher(ledgerStore, userStore, sender)

	ctx, cancel := context.WithCancel(context.Background())
	h := &handler{ctx: ctx, dispatcher: dispatcher}

	client, err := sarama.NewConsumerGroup(splitCSV(cfg.KafkaBrokers), "dm-notify-consumer", sarama.NewConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	topic := cfg.KafkaNotifyTopic
	go func() {
		for {
			if err := client.Consume(ctx, []string{topic}, h); err != nil {
				log.Printf("consume error: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()
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

func splitCSV(s string) []string {
	var out []string
	var cur string
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
		} else {
			cur += string(s[i])
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
