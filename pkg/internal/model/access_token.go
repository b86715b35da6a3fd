package model

import (
	"time"
)

// AccessToken 签名下载令牌. 签名本身即令牌, 服务端以其为键做单次使用判定.
type AccessToken struct {
	ID string `gorm:"primaryKey;size:26" json:"id"`
	// ArtifactID 关联的账单.
	ArtifactID string   `gorm:"size:26;index" json:"artifact_id"`
	Artifact   Artifact `gorm:"foreignKey:ArtifactID" json:"-"`
	// Signature base64url 编码的 HMAC-SHA256 签名, 唯一索引支撑 O(1) 查找与消费.
	Signature string `gorm:"size:64;uniqueIndex" json:"-"`
	// ExpiresAt 过期时刻, 清理任务按该索引批量扫除.
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	// SingleUse 是否单次使用.
	SingleUse bool `json:"single_use"`
	// IssuedBy 签发者身份.
	IssuedBy string `gorm:"size:128" json:"issued_by,omitempty"`
	// Used 单次令牌是否已被消费. 消费通过条件 UPDATE 完成, 保证至多一次.
	Used   bool       `json:"used"`
	UsedAt *time.Time `json:"used_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名.
func (AccessToken) TableName() string {
	return "access_tokens"
}

// Expired 判断令牌在 now 时刻是否已过期.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
