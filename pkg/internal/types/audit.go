package types

import "time"

// ListAuditRequest 审计事件查询参数.
// StartDate/EndDate 为日历日 (YYYY-MM-DD), start 取当日零点, end 取当日末尾.
type ListAuditRequest struct {
	OwnerID   string `form:"owner_id"   rule:"omitempty,owner_id"`
	Action    string `form:"action"     rule:"omitempty,max=32"`
	StartDate string `form:"start_date" rule:"omitempty,stmt_date"`
	EndDate   string `form:"end_date"   rule:"omitempty,stmt_date"`
	Limit     int    `form:"limit"      rule:"omitempty,min=1"`
	Offset    int    `form:"offset"     rule:"omitempty,min=0"`
}

// AuditEventItem 单条审计事件.
type AuditEventItem struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	OwnerKey    string         `json:"owner_key,omitempty"`
	ArtifactID  string         `json:"artifact_id,omitempty"`
	TokenPrefix string         `json:"token_prefix,omitempty"`
	Actor       string         `json:"actor,omitempty"`
	RemoteAddr  string         `json:"remote_addr,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// ListAuditResponse 审计事件列表, 按发生时间倒序.
type ListAuditResponse struct {
	Total int64            `json:"total"`
	Items []AuditEventItem `json:"items"`
}
