package domain

import (
	"strconv"
	"time"
)

// TTL 单位，取值来自前端的 expiry-unit 下拉框。
const (
	UnitMinutes = "minutes"
	UnitHours   = "hours"
	UnitDays    = "days"
)

// DefaultTTL 未知单位时使用的兜底过期时长。
const DefaultTTL = 24 * time.Hour

// TTLConfig 表示用户配置的过期时长（数量 + 单位）。
//
// Amount 保留为字符串，原样接收用户输入，解析失败回退为 1。
type TTLConfig struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

// Duration 将 TTL 配置换算为时长。
//
// 这是全系统唯一决定过期时长的地方：
//   - Amount 非数字或缺失时取 1；
//   - Unit 为 minutes/hours/days 时按 Amount 换算；
//   - Unit 未知或缺失时直接返回 24 小时（忽略 Amount）。
func (c TTLConfig) Duration() time.Duration {
	amount, err := strconv.Atoi(c.Amount)
	if err != nil || amount == 0 {
		amount = 1
	}

	switch c.Unit {
	case UnitMinutes:
		return time.Duration(amount) * time.Minute
	case UnitHours:
		return time.Duration(amount) * time.Hour
	case UnitDays:
		return time.Duration(amount) * 24 * time.Hour
	default:
		return DefaultTTL
	}
}
