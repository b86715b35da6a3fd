package model

import (
	"encoding/json"
	"time"
)

// AuditAction 审计动作类型.
type AuditAction string

const (
	ActionStatementStored AuditAction = "statement.stored"   // 账单加密入库
	ActionLinkIssued      AuditAction = "link.issued"        // 下载令牌签发
	ActionLinkRejected    AuditAction = "link.rejected"      // 签发请求被拒
	ActionDownloadAllowed AuditAction = "download.allowed"   // 下载放行
	ActionDownloadDenied  AuditAction = "download.denied"    // 下载拒绝
	ActionDownloadFailed  AuditAction = "download.failed"    // 令牌有效但读取/解密失败
	ActionCleanupRun      AuditAction = "cleanup.run"        // 清理任务执行
)

// AuditEvent 审计事件. 追加写入, 不提供更新与删除路径.
type AuditEvent struct {
	ID     string      `gorm:"primaryKey;size:26" json:"id"`
	Action AuditAction `gorm:"size:32;index"      json:"action"`
	// OwnerKey 涉及的账户哈希键, 可为空(如匿名的拒绝事件).
	OwnerKey string `gorm:"size:64;index" json:"owner_key,omitempty"`
	// ArtifactID 涉及的账单, 可为空.
	ArtifactID string `gorm:"size:26;index" json:"artifact_id,omitempty"`
	// TokenPrefix 掩码后的签名前缀, 完整签名绝不落审计表.
	TokenPrefix string `gorm:"size:16" json:"token_prefix,omitempty"`
	// Actor 触发该事件的身份, 匿名下载路径可为空.
	Actor string `gorm:"size:128" json:"actor,omitempty"`
	// RemoteAddr 请求来源地址.
	RemoteAddr string `gorm:"size:64" json:"remote_addr,omitempty"`
	// UserAgent 客户端 UA.
	UserAgent string `gorm:"size:255" json:"user_agent,omitempty"`
	// DetailsJSON 附加细节, JSON 文本存储.
	DetailsJSON string `gorm:"type:text" json:"-"`
	// OccurredAt 事件时刻, 查询按该索引倒序返回.
	OccurredAt time.Time `gorm:"index" json:"occurred_at"`
}

// TableName 指定表名.
func (AuditEvent) TableName() string {
	return "audit_events"
}

// Details 反序列化附加细节.
func (e *AuditEvent) Details() (map[string]any, error) {
	if e.DetailsJSON == "" {
		return nil, nil
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(e.DetailsJSON), &m); err != nil {
		return nil, err
	}

	return m, nil
}

// SetDetails 序列化附加细节.
func (e *AuditEvent) SetDetails(m map[string]any) error {
	if len(m) == 0 {
		e.DetailsJSON = ""

		return nil
	}

	b, err := json.Marshal(m)
	if err != nil {
		return err
	}

	e.DetailsJSON = string(b)

	return nil
}
