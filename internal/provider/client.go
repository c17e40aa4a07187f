package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xurst/simple-generator/internal/config"
)

// Domain 服务商提供的可用邮箱域名。
type Domain struct {
	Domain string `json:"domain"`
}

// Account 服务商侧创建成功的邮箱账号。
type Account struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// MessageSummary 邮件列表中的单条摘要。
type MessageSummary struct {
	ID      string
	From    string
	Subject string
}

// MessageDetail 单封邮件的完整内容。
type MessageDetail struct {
	ID   string      `json:"id"`
	Text string      `json:"text"`
	HTML htmlContent `json:"html"`
}

// htmlContent 兼容服务商把 html 返回为字符串或字符串数组两种形态。
type htmlContent string

func (h *htmlContent) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*h = htmlContent(single)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err == nil {
		joined := ""
		for _, p := range parts {
			joined += p
		}
		*h = htmlContent(joined)
		return nil
	}
	// 未知形态按空处理，正文以 text 为准
	*h = ""
	return nil
}

// String 返回拼接后的 HTML 正文。
func (h htmlContent) String() string {
	return string(h)
}

// hydraList 服务商列表响应的包装结构。
type hydraList[T any] struct {
	Members []T `json:"hydra:member"`
}

// addressPayload 邮件摘要里的发件人条目。
type addressPayload struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// messagePayload 邮件列表接口返回的原始条目。
type messagePayload struct {
	ID      string           `json:"id"`
	From    []addressPayload `json:"from"`
	Subject string           `json:"subject"`
}

// Client 一次性邮箱服务商的 HTTP/JSON 客户端。
//
// 域名查询、账号创建、令牌签发、邮件列表这四类调用统一套用
// 固定次数 + 固定间隔的有界重试；邮件详情与删除不重试，
// 由调用方按尽力而为处理。
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   int
	retryDelay time.Duration
	pageSize   int
	log        *zap.Logger
}

// NewClient 创建服务商客户端。
func NewClient(cfg config.ProviderConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		attempts:   cfg.RetryAttempts,
		retryDelay: cfg.RetryDelay,
		pageSize:   cfg.PageSize,
		log:        log,
	}
}

// ListDomains 获取可用域名列表（带重试）。
func (c *Client) ListDomains(ctx context.Context) ([]Domain, error) {
	var list hydraList[Domain]
	err := c.withRetry(ctx, "list domains", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, "/domains", "", nil, &list)
	})
	if err != nil {
		return nil, err
	}
	return list.Members, nil
}

// CreateAccount 在服务商侧创建邮箱账号（带重试）。
func (c *Client) CreateAccount(ctx context.Context, address, password string) (*Account, error) {
	body := map[string]string{"address": address, "password": password}

	var account Account
	err := c.withRetry(ctx, "create account", func(ctx context.Context) error {
		if err := c.doJSON(ctx, http.MethodPost, "/accounts", "", body, &account); err != nil {
			return err
		}
		if account.ID == "" {
			return fmt.Errorf("provider returned account without id")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// IssueToken 用地址和密码换取访问令牌（带重试）。
func (c *Client) IssueToken(ctx context.Context, address, password string) (string, error) {
	body := map[string]string{"address": address, "password": password}

	var payload struct {
		Token string `json:"token"`
	}
	err := c.withRetry(ctx, "issue token", func(ctx context.Context) error {
		if err := c.doJSON(ctx, http.MethodPost, "/token", "", body, &payload); err != nil {
			return err
		}
		if payload.Token == "" {
			return fmt.Errorf("provider returned empty token")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return payload.Token, nil
}

// ListMessages 拉取邮件列表（带重试，固定页大小）。
func (c *Client) ListMessages(ctx context.Context, token string) ([]MessageSummary, error) {
	path := fmt.Sprintf("/messages?limit=%d", c.pageSize)

	var list hydraList[messagePayload]
	err := c.withRetry(ctx, "list messages", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, path, token, nil, &list)
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]MessageSummary, 0, len(list.Members))
	for _, msg := range list.Members {
		from := "unknown"
		if len(msg.From) > 0 && msg.From[0].Address != "" {
			from = msg.From[0].Address
		}
		summaries = append(summaries, MessageSummary{
			ID:      msg.ID,
			From:    from,
			Subject: msg.Subject,
		})
	}
	return summaries, nil
}

// GetMessage 拉取单封邮件详情。不重试，失败直接返回错误。
func (c *Client) GetMessage(ctx context.Context, token, messageID string) (*MessageDetail, error) {
	var detail MessageDetail
	path := "/messages/" + url.PathEscape(messageID)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteMessage 请求服务商删除邮件。不重试，失败由调用方吞掉。
func (c *Client) DeleteMessage(ctx context.Context, token, messageID string) error {
	path := "/messages/" + url.PathEscape(messageID)
	return c.doJSON(ctx, http.MethodDelete, path, token, nil, nil)
}

// withRetry 对远端调用套用固定次数、固定间隔的有界重试。
// 最后一次尝试失败后返回原始错误。
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(c.attempts-1), retry.NewConstant(c.retryDelay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil {
			// 重试过程不产生用户可见的通知，只记日志
			c.log.Debug("provider call failed",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// doJSON 执行一次 HTTP 请求并解码 JSON 响应。
// token 非空时附加 Bearer 认证；out 为 nil 时丢弃响应体。
func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("provider returned status %d for %s %s", resp.StatusCode, method, path)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
