package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordKind 历史记录的类型。
type RecordKind string

const (
	KindPassword RecordKind = "password"
	KindEmail    RecordKind = "email"
)

// Record 表示历史面板中的一条记录。
//
// Value 对密码记录是密码本身，对邮箱记录是邮箱地址；
// Token 仅邮箱记录携带，是远端服务商签发的访问凭证。
type Record struct {
	ID         string     `json:"id"`
	Kind       RecordKind `json:"kind"`
	Value      string     `json:"value"`
	Token      string     `json:"token,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	LastCopied *time.Time `json:"lastCopied,omitempty"`
	IsNew      bool       `json:"isNew"`
}

// NewRecord 按 TTL 配置构造一条新记录。
//
// ExpiresAt = CreatedAt + ttl，IsNew 初始为 true，
// 记录在第一次被渲染后才会清除 IsNew。
func NewRecord(now time.Time, kind RecordKind, value, token string, ttl TTLConfig) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Value:     value,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl.Duration()),
		IsNew:     true,
	}
}

// Expired 判断记录在 now 时刻是否已过期。
// ExpiresAt == now 也视为过期，过期记录不得被渲染。
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
