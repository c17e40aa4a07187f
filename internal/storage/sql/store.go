package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/xurst/simple-generator/internal/config"
	"github.com/xurst/simple-generator/internal/storage"
)

// Blob 数据块表模型
type Blob struct {
	Key       string    `gorm:"primaryKey;type:varchar(255)"`
	Value     []byte    `gorm:"type:bytea"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (Blob) TableName() string {
	return "blobs"
}

// Store PostgreSQL 存储实现（通过 GORM）
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例并自动建表
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&Blob{}); err != nil {
		return nil, fmt.Errorf("failed to migrate blobs table: %w", err)
	}

	return &Store{db: db}, nil
}

// Get 读取键下的数据块。
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var blob Blob
	err := s.db.WithContext(ctx).First(&blob, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, err
	}
	return blob.Value, nil
}

// Set 整体覆盖写入键下的数据块（upsert）。
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	blob := Blob{Key: key, Value: data, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Save(&blob).Error
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
