// Package errs 定义对外暴露的类型化错误：
// 所有写路径要么成功提交、要么返回这里的错误且不留下任何部分状态。
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument 参数非法：空 ID、自我喜欢、清洗后为空的文本等，同步拒绝。
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotAMember 操作者不是目标会话的成员。
	ErrNotAMember = errors.New("not a member of thread")

	// ErrAlreadyClaimed 幂等键已被他人占用（内部信号，调用方跳过副作用即可）。
	ErrAlreadyClaimed = errors.New("idempotency key already claimed")

	// ErrNotFound 目标记录不存在。
	ErrNotFound = errors.New("not found")
)

// InvalidArgumentf 构造带说明的参数错误，errors.Is(err, ErrInvalidArgument) 成立。
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

// QuotaExceededError 每日限额已用尽，携带限额与当前计数供升级提示 UI 使用。
type QuotaExceededError struct {
	Limit   int64
	Current int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded: %d/%d", e.Current, e.Limit)
}

// IsQuotaExceeded 判断并提取限额错误。
func IsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// TransientError 可重试的存储层故障；事务性保证故障时不留部分状态。
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient 包装存储错误；err 为 nil 时返回 nil。
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient 判断错误是否可重试。
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
