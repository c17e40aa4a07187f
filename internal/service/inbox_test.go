package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xurst/simple-generator/internal/domain"
	"github.com/xurst/simple-generator/internal/provider"
	"github.com/xurst/simple-generator/internal/storage"
	"github.com/xurst/simple-generator/internal/storage/memory"
)

// fakeProvider 可编程的服务商替身
type fakeProvider struct {
	mu sync.Mutex

	domains    []provider.Domain
	domainsErr error

	createErr error
	tokenErr  error

	// 按令牌区分账号的邮件列表与错误
	messages    map[string][]provider.MessageSummary
	messagesErr map[string]error

	details   map[string]*provider.MessageDetail
	detailErr error

	deleteErr error

	getMessageCalls int
	deletedIDs      []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		domains:     []provider.Domain{{Domain: "temp.mail"}},
		messages:    map[string][]provider.MessageSummary{},
		messagesErr: map[string]error{},
		details:     map[string]*provider.MessageDetail{},
	}
}

func (f *fakeProvider) ListDomains(_ context.Context) ([]provider.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.domainsErr != nil {
		return nil, f.domainsErr
	}
	return f.domains, nil
}

func (f *fakeProvider) CreateAccount(_ context.Context, address, _ string) (*provider.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &provider.Account{ID: "acc-1", Address: address}, nil
}

func (f *fakeProvider) IssueToken(_ context.Context, address, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "token-" + address, nil
}

func (f *fakeProvider) ListMessages(_ context.Context, token string) ([]provider.MessageSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.messagesErr[token]; err != nil {
		return nil, err
	}
	return f.messages[token], nil
}

func (f *fakeProvider) GetMessage(_ context.Context, _, messageID string) (*provider.MessageDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getMessageCalls++
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	detail, ok := f.details[messageID]
	if !ok {
		return nil, errors.New("no such message")
	}
	return detail, nil
}

func (f *fakeProvider) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, messageID)
	return nil
}

func newInboxFixture(t *testing.T) (*InboxService, *fakeProvider, *memory.Store) {
	t.Helper()
	fake := newFakeProvider()
	store := memory.NewStore()
	service := NewInboxService(fake, store, "SecureTempPass123", zap.NewNop())
	return service, fake, store
}

func seedAccount(t *testing.T, service *InboxService, address, token string) {
	t.Helper()
	service.mu.Lock()
	defer service.mu.Unlock()
	require.True(t, service.registerLocked(address, token))
}

func TestInboxService_CreateAccount(t *testing.T) {
	service, _, store := newInboxFixture(t)
	ctx := context.Background()
	ttl := domain.TTLConfig{Amount: "1", Unit: domain.UnitHours}

	record, err := service.CreateAccount(ctx, ttl)
	require.NoError(t, err)

	assert.Equal(t, domain.KindEmail, record.Kind)
	assert.Contains(t, record.Value, "@temp.mail")
	assert.Equal(t, "token-"+record.Value, record.Token)
	assert.True(t, record.IsNew)

	accounts := service.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, record.Value, accounts[0].Address)

	// The new account is persisted immediately
	data, err := store.Get(ctx, storage.KeyAccounts)
	require.NoError(t, err)
	assert.Contains(t, string(data), record.Value)
}

func TestInboxService_CreateAccount_ProviderDown(t *testing.T) {
	service, fake, _ := newInboxFixture(t)
	ctx := context.Background()
	ttl := domain.TTLConfig{Amount: "1", Unit: domain.UnitHours}

	t.Run("域名查询失败", func(t *testing.T) {
		fake.domainsErr = errors.New("connection refused")
		_, err := service.CreateAccount(ctx, ttl)
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
		fake.domainsErr = nil
	})

	t.Run("域名列表为空", func(t *testing.T) {
		fake.domains = nil
		_, err := service.CreateAccount(ctx, ttl)
		assert.ErrorIs(t, err, domain.ErrNoDomainsAvailable)
		fake.domains = []provider.Domain{{Domain: "temp.mail"}}
	})

	t.Run("创建账号失败", func(t *testing.T) {
		fake.createErr = errors.New("boom")
		_, err := service.CreateAccount(ctx, ttl)
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
		fake.createErr = nil
	})

	t.Run("签发令牌失败", func(t *testing.T) {
		fake.tokenErr = errors.New("boom")
		_, err := service.CreateAccount(ctx, ttl)
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
		fake.tokenErr = nil
	})

	// No half-provisioned accounts were registered along the way
	assert.Empty(t, service.Accounts())
}

func TestInboxService_PollAll_PartialFailure(t *testing.T) {
	service, fake, _ := newInboxFixture(t)
	ctx := context.Background()

	seedAccount(t, service, "a@temp.mail", "token-a")
	seedAccount(t, service, "b@temp.mail", "token-b")

	fake.messages["token-a"] = []provider.MessageSummary{
		{ID: "m1", From: "x@example.com", Subject: "hello"},
		{ID: "m2", From: "y@example.com", Subject: "world"},
	}
	fake.messagesErr["token-b"] = errors.New("upstream 500")

	service.PollAll(ctx)

	accounts := service.Accounts()
	require.Len(t, accounts, 2)
	assert.Len(t, accounts[0].Messages, 2)
	// The failing account gets an empty list, the other is untouched
	assert.Empty(t, accounts[1].Messages)
}

func TestInboxService_PollAll_ReplacesCachedBodies(t *testing.T) {
	service, fake, _ := newInboxFixture(t)
	ctx := context.Background()

	seedAccount(t, service, "a@temp.mail", "token-a")
	fake.messages["token-a"] = []provider.MessageSummary{
		{ID: "m1", From: "x@example.com", Subject: "hello"},
	}
	fake.details["m1"] = &provider.MessageDetail{ID: "m1", Text: "body text"}

	service.PollAll(ctx)

	body, ok := service.FetchBody(ctx, "a@temp.mail", "m1")
	require.True(t, ok)
	assert.Equal(t, "body text", body.Text)

	// Polling replaces message lists wholesale: cached bodies and
	// expanded state are dropped even when the same message reappears
	service.PollAll(ctx)

	accounts := service.Accounts()
	require.Len(t, accounts[0].Messages, 1)
	assert.Nil(t, accounts[0].Messages[0].Body)
	assert.False(t, accounts[0].Messages[0].Expanded)
}

func TestInboxService_FetchBody_Caches(t *testing.T) {
	service, fake, _ := newInboxFixture(t)
	ctx := context.Background()

	seedAccount(t, service, "a@temp.mail", "token-a")
	fake.messages["token-a"] = []provider.MessageSummary{
		{ID: "m1", From: "x@example.com", Subject: "hello"},
	}
	fake.details["m1"] = &provider.MessageDetail{ID: "m1", Text: "body text", HTML: "<p>hi</p>"}
	service.PollAll(ctx)

	body, ok := service.FetchBody(ctx, "a@temp.mail", "m1")
	require.True(t, ok)
	assert.Equal(t, "body text", body.Text)
	assert.Equal(t, "<p>hi</p>", body.HTML)
	assert.Equal(t, 1, fake.getMessageCalls)

	// Collapse hides the message but keeps the cached body
	require.True(t, service.Collapse("a@temp.mail", "m1"))
	accounts := service.Accounts()
	assert.False(t, accounts[0].Messages[0].Expanded)
	assert.NotNil(t, accounts[0].Messages[0].Body)

	// Re-expanding hits the cache, not the provider
	_, ok = service.FetchBody(ctx, "a@temp.mail", "m1")
	require.True(t, ok)
	assert.Equal(t, 1, fake.getMessageCalls)
}

func TestInboxService_FetchBody_ProviderFailure(t *testing.T) {
	service, fake, _ := newInboxFixture(t)
	ctx := context.Background()

	seedAccount(t, service, "a@temp.mail", "token-a")
	fake.messages["token-a"] = []provider.MessageSummary{
		{ID: "m1", From: "x@example.com", Subject: "hello"},
	}
	service.PollAll(ctx)

	fake.detailErr = errors.New("upstream 500")
	body, ok := service.FetchBody(ctx, "a@temp.mail", "m1")
	assert.False(t, ok)
	assert.Nil(t, body)

	// Unknown account or message is also just "absent"
	_, ok = service.FetchBody(ctx, "nobody@temp.mail", "m1")
	assert.False(t, ok)
	_, ok = service.FetchBody(ctx, "a@temp.mail", "missing")
	assert.False(t, ok)
}

func TestInboxService_DeleteMessage(t *testing.T) {
	service, fake, _ := newInboxFixture(t)
	ctx := context.Background()

	seedAccount(t, service, "a@temp.mail", "token-a")
	fake.messages["token-a"] = []provider.MessageSummary{
		{ID: "m1", From: "x@example.com", Subject: "hello"},
		{ID: "m2", From: "y@example.com", Subject: "world"},
	}
	service.PollAll(ctx)

	require.NoError(t, service.DeleteMessage(ctx, "a@temp.mail", "m1"))

	accounts := service.Accounts()
	require.Len(t, accounts[0].Messages, 1)
	assert.Equal(t, "m2", accounts[0].Messages[0].ID)
	assert.Contains(t, fake.deletedIDs, "m1")
}

func TestInboxService_DeleteMessage_RemoteFailureStillRemovesLocally(t *testing.T) {
	service, fake, _ := newInboxFixture(t)
	ctx := context.Background()

	seedAccount(t, service, "a@temp.mail", "token-a")
	fake.messages["token-a"] = []provider.MessageSummary{
		{ID: "m1", From: "x@example.com", Subject: "hello"},
	}
	service.PollAll(ctx)

	// The remote delete fails but the local list is still trimmed
	fake.deleteErr = errors.New("upstream 500")
	require.NoError(t, service.DeleteMessage(ctx, "a@temp.mail", "m1"))

	accounts := service.Accounts()
	assert.Empty(t, accounts[0].Messages)
}

func TestInboxService_DeleteMessage_UnknownAccount(t *testing.T) {
	service, _, _ := newInboxFixture(t)
	err := service.DeleteMessage(context.Background(), "nobody@temp.mail", "m1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestInboxService_DeleteAllMessages(t *testing.T) {
	service, fake, _ := newInboxFixture(t)
	ctx := context.Background()

	var notified []string
	service.SetCallbacks(func(message string, kind domain.NotifyKind) {
		notified = append(notified, message)
		assert.Equal(t, domain.NotifySuccess, kind)
	}, nil)

	seedAccount(t, service, "a@temp.mail", "token-a")
	seedAccount(t, service, "b@temp.mail", "token-b")
	fake.messages["token-a"] = []provider.MessageSummary{
		{ID: "m1", From: "x@example.com", Subject: "one"},
		{ID: "m2", From: "y@example.com", Subject: "two"},
	}
	fake.messages["token-b"] = []provider.MessageSummary{
		{ID: "m3", From: "z@example.com", Subject: "three"},
	}
	service.PollAll(ctx)

	// 轮询时服务商清掉列表，模拟删除已生效
	fake.mu.Lock()
	fake.messages["token-a"] = nil
	fake.messages["token-b"] = nil
	fake.mu.Unlock()

	service.DeleteAllMessages(ctx)

	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, fake.deletedIDs)
	for _, account := range service.Accounts() {
		assert.Empty(t, account.Messages)
	}
	assert.Equal(t, []string{"all mail has been trashed."}, notified)
}

func TestInboxService_DeleteAllMessages_SkipsFailedFetch(t *testing.T) {
	service, fake, _ := newInboxFixture(t)
	ctx := context.Background()

	seedAccount(t, service, "a@temp.mail", "token-a")
	seedAccount(t, service, "b@temp.mail", "token-b")
	fake.messages["token-b"] = []provider.MessageSummary{
		{ID: "m3", From: "z@example.com", Subject: "three"},
	}
	fake.messagesErr["token-a"] = errors.New("upstream 500")

	service.DeleteAllMessages(ctx)

	// The unreachable account is skipped, the rest are still cleared
	assert.Equal(t, []string{"m3"}, fake.deletedIDs)
}

func TestInboxService_LoadRestoresAccounts(t *testing.T) {
	fake := newFakeProvider()
	store := memory.NewStore()
	ctx := context.Background()

	first := NewInboxService(fake, store, "SecureTempPass123", zap.NewNop())
	seedAccount(t, first, "a@temp.mail", "token-a")
	first.mu.Lock()
	first.persistLocked(ctx)
	first.mu.Unlock()

	second := NewInboxService(fake, store, "SecureTempPass123", zap.NewNop())
	require.NoError(t, second.Load(ctx))

	accounts := second.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "a@temp.mail", accounts[0].Address)
	assert.Equal(t, "token-a", accounts[0].Token)
}

func TestInboxService_DuplicateRegistrationIsNoop(t *testing.T) {
	service, _, _ := newInboxFixture(t)

	service.mu.Lock()
	assert.True(t, service.registerLocked("a@temp.mail", "token-a"))
	assert.False(t, service.registerLocked("a@temp.mail", "token-other"))
	service.mu.Unlock()

	accounts := service.Accounts()
	require.Len(t, accounts, 1)
	// The original token survives a duplicate registration
	assert.Equal(t, "token-a", accounts[0].Token)
}
