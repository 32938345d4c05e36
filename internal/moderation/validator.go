// Package moderation 文本校验协作方的本地实现：
// 外部审核系统在本仓库中只建模为 Validate(text) 一个调用点。
package moderation

import (
	"strings"
	"unicode/utf8"
)

// Result 校验结果；OK=false 时 Reason 给出可展示的原因。
type Result struct {
	OK      bool
	Cleaned string
	Reason  string
}

// Validator 消息文本校验接口，发送前调用。
type Validator interface {
	Validate(text string) Result
}

// MaxMessageRunes 单条消息长度上限（按字符计）。
const MaxMessageRunes = 2000

// BasicValidator 默认实现：去首尾空白、压缩控制字符、长度限制与简单词表。
type BasicValidator struct {
	// Blocklist 命中即拒绝的词（小写比较）
	Blocklist []string
}

func NewBasicValidator() *BasicValidator { return &BasicValidator{} }

func (v *BasicValidator) Validate(text string) Result {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, text)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return Result{OK: false, Reason: "消息不能为空"}
	}
	if utf8.RuneCountInString(cleaned) > MaxMessageRunes {
		return Result{OK: false, Reason: "消息过长"}
	}
	lower := strings.ToLower(cleaned)
	for _, w := range v.Blocklist {
		if w != "" && strings.Contains(lower, w) {
			return Result{OK: false, Reason: "消息包含不允许的内容"}
		}
	}
	return Result{OK: true, Cleaned: cleaned}
}
