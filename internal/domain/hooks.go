package domain

import "time"

// NotifyKind 通知的种类。
type NotifyKind string

const (
	NotifySuccess NotifyKind = "success"
	NotifyError   NotifyKind = "error"
)

// NotifyFunc 向用户反馈结果的回调。
// fire-and-forget：核心组件从不读取它的返回，也不依赖它做控制流。
type NotifyFunc func(message string, kind NotifyKind)

// RenderFunc 状态持久化变更后触发 UI 重绘的回调。
// 假定幂等且足够廉价，可以被高频调用。
type RenderFunc func()

// NowFunc 墙钟时间源，测试中可替换。
type NowFunc func() time.Time

// TTLConfigFunc 返回用户当前配置的过期时长。
type TTLConfigFunc func() TTLConfig
