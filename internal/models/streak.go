package models

import "time"

// DayLayout 日键格式；所有日界计算统一使用 UTC。
const DayLayout = "2006-01-02"

// DayKey 返回 t 对应的 UTC 日键。
func DayKey(t time.Time) string { return t.UTC().Format(DayLayout) }

// GapDays 计算两个日键之间的整天数差；解析失败返回 -1。
func GapDays(from, to string) int {
	a, err1 := time.ParseInLocation(DayLayout, from, time.UTC)
	b, err2 := time.ParseInLocation(DayLayout, to, time.UTC)
	if err1 != nil || err2 != nil {
		return -1
	}
	return int(b.Sub(a) / (24 * time.Hour))
}

// 连续活跃的徽章阈值（天数 -> 徽章名）。
var streakBadges = []struct {
	Days  int
	Badge string
}{
	{3, "streak_3"},
	{7, "streak_7"},
	{30, "streak_30"},
}

// AdvanceStreak 将 rec 推进到 today（纯函数，按日幂等）：
// - 同日重复调用不改变任何计数
// - 间隔恰好 1 天则连续数 +1，否则重置为 1
// - streakLongest 只增不减；达到阈值的徽章永久置位
// 返回值表示本次调用是否产生了状态变化。
func AdvanceStreak(rec *StreakRecord, today string) bool {
	if rec.LastActiveDay == today {
		return false
	}
	if rec.LastActiveDay != "" && GapDays(rec.LastActiveDay, today) == 1 {
		rec.StreakCurrent++
	} else {
		rec.StreakCurrent = 1
	}
	if rec.StreakCurrent > rec.StreakLongest {
		rec.StreakLongest = rec.StreakCurrent
	}
	rec.LastActiveDay = today
	if rec.Badges == nil {
		rec.Badges = make(map[string]bool)
	}
	for _, sb := range streakBadges {
		if rec.StreakCurrent >= sb.Days {
			rec.Badges[sb.Badge] = true
		}
	}
	return true
}

// EventKind 参与度事件类型。用类型化枚举替代事件名到统计路径的字符串分支，
// 计数引用与徽章阈值统一由 badgeRules 驱动。
type EventKind string

const (
	EventLikeSent      EventKind = "likes_sent"
	EventMatchMade     EventKind = "matches_made"
	EventMessageSent   EventKind = "messages_sent"
	EventInterestSaved EventKind = "interests_saved"
)

// ValidEventKind 判断事件类型是否已注册。
func ValidEventKind(k EventKind) bool {
	switch k {
	case EventLikeSent, EventMatchMade, EventMessageSent, EventInterestSaved:
		return true
	}
	return false
}

// badgeRules 事件计数的徽章阈值表：计数首次跨过 Threshold 时授予 Badge。
var badgeRules = map[EventKind][]struct {
	Threshold int64
	Badge     string
}{
	EventLikeSent:      {{1, "first_like"}, {50, "likes_50"}},
	EventMatchMade:     {{1, "first_match"}, {10, "matches_10"}},
	EventMessageSent:   {{1, "first_message"}, {100, "messages_100"}},
	EventInterestSaved: {{5, "curious_5"}},
}

// BadgesForCount 返回事件计数达到 count 时应持有的全部徽章。
func BadgesForCount(kind EventKind, count int64) []string {
	var out []string
	for _, r := range badgeRules[kind] {
		if count >= r.Threshold {
			out = append(out, r.Badge)
		}
	}
	return out
}
