package model

import (
	"time"

	"gorm.io/gorm"
)

// Artifact 加密账单元数据. 密文对象本体存放在对象存储, 这里只登记定位与校验信息.
type Artifact struct {
	// ID ULID, 同时作为下载路由中的文件名.
	ID string `gorm:"primaryKey;size:26" json:"id"`
	// OwnerKey 账户标识的哈希键, 日志与索引中不出现明文账户号.
	// 与账单日期一起唯一: 同一账户同一账单日只保留一份.
	OwnerKey      string `gorm:"size:64;index:idx_owner_date,unique;index" json:"owner_key"`
	StatementDate string `gorm:"size:10;index:idx_owner_date,unique"       json:"statement_date"`
	// FileName 清洗后的原始文件名, 仅作下载时的展示名.
	FileName string `gorm:"size:255" json:"file_name"`
	// ObjectKey 密文对象在桶内的键.
	ObjectKey string `gorm:"size:1024" json:"object_key"`
	// IV 本次加密使用的初始向量, base64 存储.
	IV string `gorm:"size:32" json:"-"`
	// SHA256 明文内容摘要, 用于上传校验与下载后的完整性验证.
	SHA256 string `gorm:"size:64"  json:"sha256"`
	Size   int64  `gorm:"index"    json:"size"`
	// ContentType 原始内容类型, 当前仅接受 application/pdf.
	ContentType string `gorm:"size:255" json:"content_type"`
	// UploadedBy 上传者身份, 由认证网关注入.
	UploadedBy string `gorm:"size:128" json:"uploaded_by,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名.
func (Artifact) TableName() string {
	return "artifacts"
}
