package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xurst/simple-generator/internal/domain"
	"github.com/xurst/simple-generator/internal/monitoring"
	"github.com/xurst/simple-generator/internal/provider"
	"github.com/xurst/simple-generator/internal/storage"
)

// MailProvider 远端一次性邮箱服务商的调用契约。
type MailProvider interface {
	ListDomains(ctx context.Context) ([]provider.Domain, error)
	CreateAccount(ctx context.Context, address, password string) (*provider.Account, error)
	IssueToken(ctx context.Context, address, password string) (string, error)
	ListMessages(ctx context.Context, token string) ([]provider.MessageSummary, error)
	GetMessage(ctx context.Context, token, messageID string) (*provider.MessageDetail, error)
	DeleteMessage(ctx context.Context, token, messageID string) error
}

// InboxService 维护一次性邮箱账号集合并与服务商同步邮件列表。
//
// 开通账号需要三个远端调用（域名查询、创建、签发令牌）全部成功，
// 任何一步重试耗尽即整体失败，不注册半成品账号。轮询逐账号
// 顺序进行，单账号失败只清空该账号的列表，不中断整体轮询。
type InboxService struct {
	mu       sync.Mutex
	accounts []*domain.MailAccount

	provider MailProvider
	blobs    storage.BlobStore
	log      *zap.Logger
	metrics  *monitoring.Metrics
	notify   domain.NotifyFunc
	render   domain.RenderFunc
	now      domain.NowFunc

	accountPassword string
	random          *rand.Rand
}

// NewInboxService 创建邮箱同步服务。
func NewInboxService(mailProvider MailProvider, blobs storage.BlobStore, accountPassword string, log *zap.Logger) *InboxService {
	return &InboxService{
		provider:        mailProvider,
		blobs:           blobs,
		log:             log,
		now:             time.Now,
		accountPassword: accountPassword,
		random:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetCallbacks 注入通知与渲染回调
func (s *InboxService) SetCallbacks(notify domain.NotifyFunc, render domain.RenderFunc) {
	s.notify = notify
	s.render = render
}

// SetMetrics 设置监控指标（可选）
func (s *InboxService) SetMetrics(m *monitoring.Metrics) {
	s.metrics = m
}

// SetClock 替换时间源，用于测试
func (s *InboxService) SetClock(now domain.NowFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Load 从持久化层读取启动时的账号列表（含缓存的邮件）。
func (s *InboxService) Load(ctx context.Context) error {
	data, err := s.blobs.Get(ctx, storage.KeyAccounts)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil
		}
		return err
	}

	var accounts []*domain.MailAccount
	if err := json.Unmarshal(data, &accounts); err != nil {
		return err
	}

	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()
	return nil
}

// CreateAccount 在服务商侧开通一个新邮箱并注册到本地。
//
// 返回一条 kind 为 email 的历史记录，由调用方插入历史列表。
// 三个开通调用（域名、创建、令牌）任何一个重试耗尽都返回
// ErrProviderUnavailable；域名列表为空返回 ErrNoDomainsAvailable。
func (s *InboxService) CreateAccount(ctx context.Context, ttl domain.TTLConfig) (*domain.Record, error) {
	domains, err := s.provider.ListDomains(ctx)
	if err != nil {
		s.recordProviderError("list_domains")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if len(domains) == 0 {
		return nil, domain.ErrNoDomainsAvailable
	}

	s.mu.Lock()
	localPart := fmt.Sprintf("user%d", s.random.Intn(100000))
	s.mu.Unlock()
	address := fmt.Sprintf("%s@%s", localPart, domains[0].Domain)

	if _, err := s.provider.CreateAccount(ctx, address, s.accountPassword); err != nil {
		s.recordProviderError("create_account")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	token, err := s.provider.IssueToken(ctx, address, s.accountPassword)
	if err != nil {
		s.recordProviderError("issue_token")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	s.mu.Lock()
	registered := s.registerLocked(address, token)
	if registered {
		s.persistLocked(ctx)
	}
	active := len(s.accounts)
	record := domain.NewRecord(s.now(), domain.KindEmail, address, token, ttl)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.AccountsCreated.Inc()
		s.metrics.AccountsActive.Set(float64(active))
	}
	s.log.Info("mail account created", zap.String("address", address))

	s.PollAll(ctx)
	return record, nil
}

// registerLocked 注册账号，地址已存在时为空操作。返回是否新注册。
func (s *InboxService) registerLocked(address, token string) bool {
	for _, account := range s.accounts {
		if account.Address == address {
			return false
		}
	}
	s.accounts = append(s.accounts, &domain.MailAccount{
		Address:  address,
		Token:    token,
		Messages: []*domain.Message{},
	})
	return true
}

// PollAll 逐账号拉取最新邮件列表并整体替换本地列表。
//
// 尽力而为：单账号拉取失败只让该账号得到空列表，不中断其余
// 账号的轮询，也不向调用方返回错误。结束后持久化并触发渲染。
func (s *InboxService) PollAll(ctx context.Context) {
	type accountRef struct {
		address string
		token   string
	}

	s.mu.Lock()
	refs := make([]accountRef, 0, len(s.accounts))
	for _, account := range s.accounts {
		refs = append(refs, accountRef{address: account.Address, token: account.Token})
	}
	s.mu.Unlock()

	// 顺序轮询，保证同一账号不会有两个并发拉取
	fetched := make(map[string][]*domain.Message, len(refs))
	for _, ref := range refs {
		summaries, err := s.provider.ListMessages(ctx, ref.token)
		if err != nil {
			s.log.Debug("message fetch failed, account gets empty list",
				zap.String("address", ref.address),
				zap.Error(err),
			)
			if s.metrics != nil {
				s.metrics.PollFailures.Inc()
			}
			fetched[ref.address] = []*domain.Message{}
			continue
		}

		messages := make([]*domain.Message, 0, len(summaries))
		for _, summary := range summaries {
			messages = append(messages, &domain.Message{
				ID:      summary.ID,
				From:    summary.From,
				Subject: summary.Subject,
			})
		}
		fetched[ref.address] = messages
	}

	s.mu.Lock()
	for _, account := range s.accounts {
		if messages, ok := fetched[account.Address]; ok {
			// 整体替换：展开状态与缓存的正文一并丢弃
			account.Messages = messages
		}
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PollsTotal.Inc()
	}
	s.renderNow()
}

// FetchBody 按需拉取单封邮件的完整正文。
//
// 第一次展开时拉取并缓存；已有缓存时直接命中。服务商返回
// 失败时结果是"缺失"而不是错误，由调用方决定如何展示。
func (s *InboxService) FetchBody(ctx context.Context, address, messageID string) (*domain.MessageBody, bool) {
	s.mu.Lock()
	account := s.findAccountLocked(address)
	if account == nil {
		s.mu.Unlock()
		return nil, false
	}
	message := account.FindMessage(messageID)
	if message == nil {
		s.mu.Unlock()
		return nil, false
	}
	if message.Body != nil {
		message.Expanded = true
		body := *message.Body
		s.mu.Unlock()
		return &body, true
	}
	token := account.Token
	s.mu.Unlock()

	detail, err := s.provider.GetMessage(ctx, token, messageID)
	if err != nil {
		s.log.Debug("message body fetch failed",
			zap.String("address", address),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return nil, false
	}

	body := &domain.MessageBody{Text: detail.Text, HTML: detail.HTML.String()}

	s.mu.Lock()
	defer s.mu.Unlock()
	// 拉取期间列表可能已被轮询替换，重新查找后再缓存
	if account := s.findAccountLocked(address); account != nil {
		if message := account.FindMessage(messageID); message != nil {
			message.Body = body
			message.Expanded = true
		}
	}
	snapshot := *body
	return &snapshot, true
}

// Collapse 折叠邮件展示。只隐藏，不清除已缓存的正文。
func (s *InboxService) Collapse(address, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.findAccountLocked(address)
	if account == nil {
		return false
	}
	message := account.FindMessage(messageID)
	if message == nil {
		return false
	}
	message.Expanded = false
	return true
}

// DeleteMessage 删除一封邮件。
//
// 远端删除是尽力而为：不重试、失败不上报；无论服务商是否
// 确认成功，本地列表都乐观移除，下一次轮询是最终事实来源。
func (s *InboxService) DeleteMessage(ctx context.Context, address, messageID string) error {
	s.mu.Lock()
	account := s.findAccountLocked(address)
	if account == nil {
		s.mu.Unlock()
		return domain.ErrAccountNotFound
	}
	token := account.Token
	s.mu.Unlock()

	if err := s.provider.DeleteMessage(ctx, token, messageID); err != nil {
		s.log.Debug("remote message delete failed, removing locally anyway",
			zap.String("address", address),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}

	s.mu.Lock()
	if account := s.findAccountLocked(address); account != nil {
		account.RemoveMessage(messageID)
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.MessagesDeleted.Inc()
	}
	s.renderNow()
	return nil
}

// DeleteAllMessages 清空所有账号的全部邮件。
//
// 逐账号顺序处理：拉取当前列表，并发发出该账号内所有删除
// 请求并等待全部完成，然后清空本地列表。最后持久化、渲染，
// 再做一次完整轮询与服务商对账。
func (s *InboxService) DeleteAllMessages(ctx context.Context) {
	type accountRef struct {
		address string
		token   string
	}

	s.mu.Lock()
	refs := make([]accountRef, 0, len(s.accounts))
	for _, account := range s.accounts {
		refs = append(refs, accountRef{address: account.Address, token: account.Token})
	}
	s.mu.Unlock()

	deleted := 0
	for _, ref := range refs {
		summaries, err := s.provider.ListMessages(ctx, ref.token)
		if err != nil {
			s.log.Debug("message fetch failed during trash-all",
				zap.String("address", ref.address),
				zap.Error(err),
			)
			continue
		}

		// 同一账号内的删除并发发出，全部等待完成；失败不重试
		g, gctx := errgroup.WithContext(ctx)
		for _, summary := range summaries {
			id := summary.ID
			g.Go(func() error {
				if err := s.provider.DeleteMessage(gctx, ref.token, id); err != nil {
					s.log.Debug("remote message delete failed",
						zap.String("address", ref.address),
						zap.String("message_id", id),
						zap.Error(err),
					)
				}
				return nil
			})
		}
		_ = g.Wait()
		deleted += len(summaries)
	}

	s.mu.Lock()
	for _, account := range s.accounts {
		account.Messages = []*domain.Message{}
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	if s.metrics != nil && deleted > 0 {
		s.metrics.MessagesDeleted.Add(float64(deleted))
	}
	s.renderNow()

	// 与服务商对账
	s.PollAll(ctx)

	if s.notify != nil {
		s.notify("all mail has been trashed.", domain.NotifySuccess)
	}
}

// Accounts 返回账号列表的渲染快照。
func (s *InboxService) Accounts() []domain.MailAccount {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.MailAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		snapshot := domain.MailAccount{
			Address:  account.Address,
			Token:    account.Token,
			Messages: make([]*domain.Message, 0, len(account.Messages)),
		}
		for _, message := range account.Messages {
			copied := *message
			snapshot.Messages = append(snapshot.Messages, &copied)
		}
		out = append(out, snapshot)
	}
	return out
}

// findAccountLocked 按地址查找账号，不存在返回 nil。
func (s *InboxService) findAccountLocked(address string) *domain.MailAccount {
	for _, account := range s.accounts {
		if account.Address == address {
			return account
		}
	}
	return nil
}

// renderNow 触发渲染回调（已注入时）。
func (s *InboxService) renderNow() {
	if s.render != nil {
		s.render()
	}
}

// recordProviderError 记录终态的服务商调用失败。
func (s *InboxService) recordProviderError(op string) {
	if s.metrics != nil {
		s.metrics.ProviderErrors.WithLabelValues(op).Inc()
	}
}

// persistLocked 把账号列表整体写入持久化层。
// 写入失败只记日志，不重试也不向上传播。
func (s *InboxService) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.accounts)
	if err != nil {
		s.log.Error("failed to marshal mail accounts", zap.Error(err))
		return
	}
	if err := s.blobs.Set(ctx, storage.KeyAccounts, data); err != nil {
		s.log.Warn("failed to persist mail accounts", zap.Error(err))
		if s.metrics != nil {
			s.metrics.PersistFailures.WithLabelValues(storage.KeyAccounts).Inc()
		}
	}
}
