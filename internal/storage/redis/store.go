package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xurst/simple-generator/internal/storage"
)

// keyPrefix 避免与同一 Redis 实例上的其他应用冲突。
const keyPrefix = "simplegen:"

// Store Redis 存储实现
type Store struct {
	client *redis.Client
}

// NewStore 创建 Redis 存储实例
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// Get 读取键下的数据块。
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrBlobNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set 整体覆盖写入键下的数据块。数据不设置过期时间，
// 过期语义由上层的清扫逻辑负责。
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, keyPrefix+key, data, 0).Err()
}

// Close 关闭 Redis 连接。
func (s *Store) Close() error {
	return s.client.Close()
}
