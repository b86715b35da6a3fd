// Package types 定义 HTTP 层与 service 层之间的请求/响应结构.
package types

import "time"

// UploadStatementForm 账单上传的 multipart 表单字段 (文件部分单独读取).
type UploadStatementForm struct {
	OwnerID       string `form:"owner_id"       rule:"required,owner_id"`
	StatementDate string `form:"statement_date" rule:"required,stmt_date"`
}

// UploadStatementResponse 上传结果.
type UploadStatementResponse struct {
	ArtifactID    string    `json:"artifact_id"`
	StatementDate string    `json:"statement_date"`
	Size          int64     `json:"size"`
	SHA256        string    `json:"sha256"`
	CreatedAt     time.Time `json:"created_at"`
}

// StatementItem 账单元数据列表项, 不含任何密文或密钥材料.
type StatementItem struct {
	ArtifactID    string    `json:"artifact_id"`
	OwnerKey      string    `json:"owner_key"`
	StatementDate string    `json:"statement_date"`
	FileName      string    `json:"file_name,omitempty"`
	Size          int64     `json:"size"`
	SHA256        string    `json:"sha256"`
	ContentType   string    `json:"content_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListStatementsRequest 账单列表查询参数.
type ListStatementsRequest struct {
	OwnerID string `form:"owner_id" rule:"omitempty,owner_id"`
	Limit   int    `form:"limit"    rule:"omitempty,min=1"`
	Offset  int    `form:"offset"   rule:"omitempty,min=0"`
}

// ListStatementsResponse 账单列表响应.
type ListStatementsResponse struct {
	Total int64           `json:"total"`
	Items []StatementItem `json:"items"`
}
