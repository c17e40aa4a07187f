package memory

import (
	"context"
	"sync"

	"github.com/xurst/simple-generator/internal/storage"
)

// Store 使用内存保存数据块，主要用于开发验证和测试。
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		blobs: make(map[string][]byte),
	}
}

// Get 读取键下的数据块。
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set 整体覆盖写入键下的数据块。
func (s *Store) Set(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored
	return nil
}

// Close 无资源可释放。
func (s *Store) Close() error {
	return nil
}
