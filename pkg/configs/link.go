package configs

import (
	"time"

	"github.com/spf13/viper"
)

// LinkConfig 签名下载链接配置.
type LinkConfig struct {
	BasePath     string `mapstructure:"base_path"`      // 下载路由前缀, 参与签名
	Secret       string `mapstructure:"secret"`         // HMAC-SHA256签名密钥
	DefaultTTL   string `mapstructure:"default_ttl"`    // 默认链接有效期
	SingleUse    bool   `mapstructure:"single_use"`     // 默认是否单次使用
	TokenMaskLen int    `mapstructure:"token_mask_len"` // 日志与审计中保留的签名前缀长度
}

// GetDefaultTTL 解析默认有效期, 解析失败时返回15分钟.
func (c *LinkConfig) GetDefaultTTL() time.Duration {
	d, err := time.ParseDuration(c.DefaultTTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// setDefaults 设置链接配置的默认值.
func (c *LinkConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("link.base_path", "/api/v1/download")
	v.SetDefault("link.secret", "")
	v.SetDefault("link.default_ttl", "15m")
	v.SetDefault("link.single_use", true)
	v.SetDefault("link.token_mask_len", 8)
}
