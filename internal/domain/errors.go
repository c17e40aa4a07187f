package domain

import "errors"

var (
	// ErrProviderUnavailable 开通邮箱所需的远端调用在重试耗尽后仍然失败。
	ErrProviderUnavailable = errors.New("mail provider unavailable")

	// ErrNoDomainsAvailable 服务商返回了空的可用域名列表。
	ErrNoDomainsAvailable = errors.New("no available domains")

	// ErrAccountNotFound 本地不存在指定地址的邮箱账号。
	ErrAccountNotFound = errors.New("mail account not found")

	// ErrRecordNotFound 历史列表中不存在指定记录。
	ErrRecordNotFound = errors.New("history record not found")

	// ErrNoCharset 密码生成未选择任何字符类型。
	ErrNoCharset = errors.New("no character set selected")
)
