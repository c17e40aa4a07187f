package httptransport

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xurst/simple-generator/internal/domain"
	"github.com/xurst/simple-generator/internal/service"
)

// apiHandler 把 UI 的入口动作映射到核心服务。
type apiHandler struct {
	deps RouterDependencies
}

// generatePasswordRequest 密码生成请求
//
// 字符类型用指针以区分"未传"与"显式关闭"；
// 未传时沿用前端 modes.json 的默认值（全部开启）。
type generatePasswordRequest struct {
	Length    int               `json:"length"`
	Uppercase *bool             `json:"uppercase"`
	Lowercase *bool             `json:"lowercase"`
	Numbers   *bool             `json:"numbers"`
	Symbols   *bool             `json:"symbols"`
	TTL       *domain.TTLConfig `json:"ttl"`
}

// generateMailboxRequest 邮箱开通请求
type generateMailboxRequest struct {
	TTL *domain.TTLConfig `json:"ttl"`
}

// generatePassword 生成一个随机密码并写入历史。
func (h *apiHandler) generatePassword(c *gin.Context) {
	var req generatePasswordRequest
	// 空请求体等同于全部取默认值
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, "invalid request body")
		return
	}

	opts := service.GenerateOptions{
		Length:    req.Length,
		Uppercase: boolOrDefault(req.Uppercase, true),
		Lowercase: boolOrDefault(req.Lowercase, true),
		Numbers:   boolOrDefault(req.Numbers, true),
		Symbols:   boolOrDefault(req.Symbols, true),
	}

	password, err := h.deps.Generator.Generate(opts)
	if err != nil {
		h.notify("please select at least one character type.", domain.NotifyError)
		BadRequest(c, err.Error())
		return
	}

	record := h.deps.History.Add(c.Request.Context(), domain.KindPassword, password, "", req.TTL)

	Created(c, gin.H{
		"password": password,
		"record":   record,
	})
}

// generateMailbox 开通一个一次性邮箱并写入历史。
func (h *apiHandler) generateMailbox(c *gin.Context) {
	var req generateMailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, "invalid request body")
		return
	}

	ttl := h.resolveTTL(req.TTL)

	record, err := h.deps.Inbox.CreateAccount(c.Request.Context(), ttl)
	if err != nil {
		// 开通失败原样转发给通知层，用户只在重试耗尽后收到一次
		h.notify(err.Error(), domain.NotifyError)
		h.deps.Logger.Warn("mailbox provisioning failed", zap.Error(err))
		BadGateway(c, err.Error())
		return
	}

	h.deps.History.Insert(c.Request.Context(), record)

	Created(c, record)
}

// listHistory 返回历史记录的渲染视图。
// 这是唯一的渲染通道，记录的 isNew 在这里恰好出现一次。
func (h *apiHandler) listHistory(c *gin.Context) {
	Success(c, h.deps.History.List())
}

// copyRecord 标记记录被复制并返回要写入剪贴板的值。
// 剪贴板本身由前端负责，核心只交回值。
func (h *apiHandler) copyRecord(c *gin.Context) {
	record, err := h.deps.History.MarkCopied(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			NotFound(c, err.Error())
			return
		}
		BadRequest(c, err.Error())
		return
	}

	Success(c, gin.H{"value": record.Value})
}

// listInbox 返回全部账号及其邮件的渲染快照。
func (h *apiHandler) listInbox(c *gin.Context) {
	Success(c, h.deps.Inbox.Accounts())
}

// refreshInbox 手动触发一次全量轮询。
func (h *apiHandler) refreshInbox(c *gin.Context) {
	h.deps.Inbox.PollAll(c.Request.Context())
	h.notify("refreshed!", domain.NotifySuccess)
	Success(c, nil)
}

// messageBody 按需拉取单封邮件正文；拉取失败表现为"缺失"。
func (h *apiHandler) messageBody(c *gin.Context) {
	body, ok := h.deps.Inbox.FetchBody(c.Request.Context(), c.Param("address"), c.Param("id"))
	if !ok {
		NotFound(c, "message body unavailable")
		return
	}
	Success(c, body)
}

// collapseMessage 折叠邮件展示，保留已缓存的正文。
func (h *apiHandler) collapseMessage(c *gin.Context) {
	if !h.deps.Inbox.Collapse(c.Param("address"), c.Param("id")) {
		NotFound(c, "message not found")
		return
	}
	Success(c, nil)
}

// trashMessage 删除单封邮件，然后重新轮询对账。
func (h *apiHandler) trashMessage(c *gin.Context) {
	err := h.deps.Inbox.DeleteMessage(c.Request.Context(), c.Param("address"), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			NotFound(c, err.Error())
			return
		}
		BadRequest(c, err.Error())
		return
	}

	h.deps.Inbox.PollAll(c.Request.Context())
	h.notify("trashed!", domain.NotifySuccess)
	Success(c, nil)
}

// trashAllMail 清空所有账号的全部邮件。
func (h *apiHandler) trashAllMail(c *gin.Context) {
	h.deps.Inbox.DeleteAllMessages(c.Request.Context())
	Success(c, nil)
}

// resolveTTL 取请求里的 TTL，否则取用户当前配置。
func (h *apiHandler) resolveTTL(ttl *domain.TTLConfig) domain.TTLConfig {
	if ttl != nil {
		return *ttl
	}
	if h.deps.TTLConfig != nil {
		return h.deps.TTLConfig()
	}
	return domain.TTLConfig{}
}

// notify 触发通知回调（已注入时）。
func (h *apiHandler) notify(message string, kind domain.NotifyKind) {
	if h.deps.Notify != nil {
		h.deps.Notify(message, kind)
	}
}

// boolOrDefault 指针为空时取默认值。
func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
