package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xurst/simple-generator/internal/domain"
	"github.com/xurst/simple-generator/internal/monitoring"
	"github.com/xurst/simple-generator/internal/storage"
)

// HistoryService 管理带过期时间的历史记录列表。
//
// 列表始终保持新记录在前（CreatedAt 非递增）；过期记录不会被
// 渲染，并在下一次清扫中被移除。持久化是整体覆盖写入，写入
// 失败不重试，内存列表在本次会话内保持权威。
type HistoryService struct {
	mu      sync.Mutex
	records []*domain.Record

	blobs     storage.BlobStore
	log       *zap.Logger
	metrics   *monitoring.Metrics
	now       domain.NowFunc
	ttlConfig domain.TTLConfigFunc

	sweepInterval time.Duration
	cancelSweep   context.CancelFunc
}

// NewHistoryService 创建历史记录服务。
func NewHistoryService(blobs storage.BlobStore, sweepInterval time.Duration, log *zap.Logger) *HistoryService {
	if sweepInterval <= 0 {
		sweepInterval = time.Second
	}
	return &HistoryService{
		blobs:         blobs,
		log:           log,
		now:           time.Now,
		sweepInterval: sweepInterval,
	}
}

// SetMetrics 设置监控指标（可选）
func (s *HistoryService) SetMetrics(m *monitoring.Metrics) {
	s.metrics = m
}

// SetClock 替换时间源，用于测试
func (s *HistoryService) SetClock(now domain.NowFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Load 从持久化层读取启动时的历史列表。
// 键不存在视为空列表，不算错误。
func (s *HistoryService) Load(ctx context.Context) error {
	data, err := s.blobs.Get(ctx, storage.KeyHistory)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil
		}
		return err
	}

	var records []*domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// Initialize 启动周期性的过期清扫。
//
// 每个周期执行一次清扫（清扫内部总会持久化）并触发渲染回调。
// 重复调用会先取消上一次启动的清扫循环（幂等重新初始化）。
// 返回的 stop 函数用于停止循环，测试可以不启动循环而直接调 Sweep。
func (s *HistoryService) Initialize(ttlConfig domain.TTLConfigFunc, render domain.RenderFunc) (stop func()) {
	s.mu.Lock()
	if s.cancelSweep != nil {
		s.cancelSweep()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelSweep = cancel
	s.ttlConfig = ttlConfig
	s.mu.Unlock()

	go s.sweepLoop(ctx, render)
	return cancel
}

// sweepLoop 周期清扫循环，这是本服务唯一的自主行为。
func (s *HistoryService) sweepLoop(ctx context.Context, render domain.RenderFunc) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
			if render != nil {
				render()
			}
		}
	}
}

// Add 按 TTL 配置构造一条新记录并插入列表头部。
//
// ttl 为 nil 时使用注入的用户配置。本方法只持久化，
// 不触发渲染，由调用方在变更后自行重绘。
func (s *HistoryService) Add(ctx context.Context, kind domain.RecordKind, value, token string, ttl *domain.TTLConfig) *domain.Record {
	cfg := s.resolveTTL(ttl)

	s.mu.Lock()
	record := domain.NewRecord(s.now(), kind, value, token, cfg)
	s.records = append([]*domain.Record{record}, s.records...)
	s.persistLocked(ctx)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordsAdded.Inc()
	}
	return record
}

// Insert 插入一条已经构造好的记录（例如邮箱开通流程产出的记录）。
func (s *HistoryService) Insert(ctx context.Context, record *domain.Record) {
	s.mu.Lock()
	s.records = append([]*domain.Record{record}, s.records...)
	s.persistLocked(ctx)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordsAdded.Inc()
	}
}

// Sweep 移除所有 ExpiresAt <= now 的记录。
// 无论是否有记录被移除都会持久化一次。
func (s *HistoryService) Sweep(ctx context.Context) {
	s.mu.Lock()
	now := s.now()
	kept := s.records[:0]
	expired := 0
	for _, record := range s.records {
		if record.Expired(now) {
			expired++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	s.persistLocked(ctx)
	active := len(s.records)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SweepsTotal.Inc()
		s.metrics.RecordsActive.Set(float64(active))
		if expired > 0 {
			s.metrics.RecordsExpired.Add(float64(expired))
		}
	}
}

// List 返回可供渲染的有序未过期视图。
//
// 副作用：对返回时 IsNew 为 true 的记录清除该标记——
// 一条记录恰好"新"一次，只在第一个渲染批次里。
func (s *HistoryService) List() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]domain.Record, 0, len(s.records))
	for _, record := range s.records {
		if record.Expired(now) {
			continue
		}
		out = append(out, *record)
		if record.IsNew {
			record.IsNew = false
		}
	}
	return out
}

// MarkCopied 记录用户复制了该记录的值。
func (s *HistoryService) MarkCopied(ctx context.Context, id string) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.ID == id {
			copied := s.now()
			record.LastCopied = &copied
			s.persistLocked(ctx)
			snapshot := *record
			return &snapshot, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

// resolveTTL 取调用方显式传入的 TTL，否则取用户当前配置。
func (s *HistoryService) resolveTTL(ttl *domain.TTLConfig) domain.TTLConfig {
	if ttl != nil {
		return *ttl
	}
	s.mu.Lock()
	fn := s.ttlConfig
	s.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return domain.TTLConfig{}
}

// persistLocked 把当前列表整体写入持久化层。
// 写入失败只记日志，不重试也不向上传播。
func (s *HistoryService) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.records)
	if err != nil {
		s.log.Error("failed to marshal history records", zap.Error(err))
		return
	}
	if err := s.blobs.Set(ctx, storage.KeyHistory, data); err != nil {
		s.log.Warn("failed to persist history records", zap.Error(err))
		if s.metrics != nil {
			s.metrics.PersistFailures.WithLabelValues(storage.KeyHistory).Inc()
		}
	}
}
