package types

import "time"

// IssueLinkRequest 签发下载链接请求. 所有字段可选, 缺省取服务端配置.
type IssueLinkRequest struct {
	// TTLSeconds 链接有效期（秒）, 缺省使用配置的默认TTL.
	TTLSeconds int `json:"ttl_seconds,omitempty" rule:"omitempty,min=1,max=604800"`
	// SingleUse 是否单次使用, 为空时取服务端默认值.
	SingleUse *bool `json:"single_use,omitempty"`
}

// IssueLinkResponse 签发结果. URL 中已带 expires 与 signature 查询参数.
type IssueLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	SingleUse bool      `json:"single_use"`
}
