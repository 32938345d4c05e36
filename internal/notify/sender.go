package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Sender 邮件传输抽象；只在 tryClaim 成功后调用。
type Sender interface {
	Send(address, subject, body string) error
}

// SMTPSender 经 net/smtp 发送。Addr 形如 host:port；User 为空时不做认证。
type SMTPSender struct {
	Addr string
	From string
	User string
	Pass string
}

func (s *SMTPSender) Send(address, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + address,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")
	var auth smtp.Auth
	if s.User != "" {
		host := s.Addr
		if i := strings.Index(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.User, s.Pass, host)
	}
	if err := smtp.SendMail(s.Addr, auth, s.From, []string{address}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender 未配置 SMTP 时的降级实现：只记录日志。
type LogSender struct{}

func (LogSender) Send(address, subject, _ string) error {
	log.Printf("Notify.Send (log only): to=%s subject=%q", address, subject)
	return nil
}
