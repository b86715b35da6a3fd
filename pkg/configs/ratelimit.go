package configs

import (
	"github.com/spf13/viper"
)

// RateLimitConfig 限流配置.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`  // 是否启用限流
	Rate    float64 `mapstructure:"rate"`     // 每秒允许的请求数
	Burst   int     `mapstructure:"burst"`    // 突发容量
	KeyMode string  `mapstructure:"key_mode"` // 限流维度: global, ip, header
	Header  string  `mapstructure:"header"`   // key_mode=header时使用的请求头
}

// setDefaults 设置限流配置的默认值.
func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rate", 50.0)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.key_mode", "ip")
	v.SetDefault("rate_limit.header", "X-Forwarded-Email")
}
