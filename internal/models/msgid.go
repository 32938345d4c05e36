package models

import (
	"crypto/rand"
	"fmt"
	"time"
)

// NewMessageID 生成消息 ID：纳秒时间戳 + 8 字节随机数。
// 时间戳前缀使 ID 的字典序与产生顺序一致，(CreatedAt, ID) 排序
// 在粗粒度时间戳相同的情况下仍保持发送顺序。
func NewMessageID(now time.Time) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("msg_%019d_%x", now.UnixNano(), b)
}
