package storage

import (
	"context"
	"errors"
)

// 两个核心组件各自独立持久化的命名空间键。
// 键名沿用原前端的 localStorage 键，方便数据迁移比对。
const (
	KeyHistory  = "historyRecords"
	KeyAccounts = "mailAccounts"
)

// ErrBlobNotFound 指定键下没有持久化过任何数据。
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore 按字符串键读写 JSON 序列化数据块的持久化契约。
//
// 这是对浏览器 localStorage 的替代：组件启动时读取一次，
// 之后只做整体覆盖写入，不做部分合并。写入失败不重试，
// 内存状态在本次会话内保持权威。
type BlobStore interface {
	// Get 读取键下的数据块，键不存在时返回 ErrBlobNotFound。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 整体覆盖写入键下的数据块。
	Set(ctx context.Context, key string, data []byte) error

	// Close 释放底层资源。
	Close() error
}
