package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 账单存储领域 --------------------------

// StatementStoredPayload 账单加密写入对象存储并登记元数据后发布.
// OwnerKey 为账户标识的哈希键，负载中不出现明文账户号.
type StatementStoredPayload struct {
	ArtifactID    string `json:"artifact_id"`
	OwnerKey      string `json:"owner_key"`
	StatementDate string `json:"statement_date"`
	ObjectKey     string `json:"object_key"`
	Size          int64  `json:"size,omitempty"`
	SHA256        string `json:"sha256,omitempty"`
}

// StatementDownloadedPayload 账单被成功解密并下载后发布.
type StatementDownloadedPayload struct {
	ArtifactID  string `json:"artifact_id"`
	OwnerKey    string `json:"owner_key"`
	TokenPrefix string `json:"token_prefix,omitempty"` // 掩码后的签名前缀
	Size        int64  `json:"size,omitempty"`
}

// -------------------------- 签名链接领域 --------------------------

// LinkIssuedPayload 下载令牌签发完成.
type LinkIssuedPayload struct {
	ArtifactID  string    `json:"artifact_id"`
	OwnerKey    string    `json:"owner_key"`
	TokenPrefix string    `json:"token_prefix,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	SingleUse   bool      `json:"single_use"`
}

// LinkDeniedPayload 下载请求被拒绝.
type LinkDeniedPayload struct {
	Reason      string `json:"reason"` // invalid_signature, expired, already_used, unknown_token
	TokenPrefix string `json:"token_prefix,omitempty"`
	RemoteAddr  string `json:"remote_addr,omitempty"`
}

// -------------------------- 下载与清理领域 --------------------------

// DownloadFailedPayload 令牌有效但对象读取或解密失败.
type DownloadFailedPayload struct {
	ArtifactID  string `json:"artifact_id,omitempty"`
	TokenPrefix string `json:"token_prefix,omitempty"`
	Error       string `json:"error"`
}

// CleanupCompletedPayload 过期令牌清理任务结果.
type CleanupCompletedPayload struct {
	Deleted  int64         `json:"deleted"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration_ns"`
	Node     string        `json:"node,omitempty"` // 抢到分布式锁的节点
}
