package domain

// MailAccount 表示一个已注册的一次性邮箱账号。
//
// Address 是账号的唯一标识，重复注册同一地址为空操作；
// Messages 在每次成功轮询后被整体替换，而不是增量合并。
type MailAccount struct {
	Address  string     `json:"address"`
	Token    string     `json:"token"`
	Messages []*Message `json:"messages"`
}

// FindMessage 按 ID 查找账号内的邮件，不存在时返回 nil。
func (a *MailAccount) FindMessage(id string) *Message {
	for _, msg := range a.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// RemoveMessage 从本地列表中移除指定邮件，返回是否找到。
func (a *MailAccount) RemoveMessage(id string) bool {
	for i, msg := range a.Messages {
		if msg.ID == id {
			a.Messages = append(a.Messages[:i], a.Messages[i+1:]...)
			return true
		}
	}
	return false
}

// Message 表示一次性邮箱内的一封邮件。
type Message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`

	// Expanded 是展示状态：正文已拉取且正在展示。
	Expanded bool `json:"expanded"`

	// Body 在第一次展开时惰性填充；折叠只隐藏不清除，
	// 缓存只会被下一次轮询的整体替换冲掉。
	Body *MessageBody `json:"body,omitempty"`
}

// MessageBody 邮件正文内容。
type MessageBody struct {
	Text string `json:"text"`
	HTML string `json:"html,omitempty"`
}
