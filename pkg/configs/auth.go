package configs

import (
	"github.com/spf13/viper"
)

// AuthConfig 认证配置, 基于反向代理注入的请求头识别调用方.
type AuthConfig struct {
	Enabled     bool     `mapstructure:"enabled"`      // 是否启用认证
	UserHeaders []string `mapstructure:"user_headers"` // 提取调用方标识的请求头, 按顺序尝试
	SkipPaths   []string `mapstructure:"skip_paths"`   // 跳过认证的路径前缀
}

// setDefaults 设置Auth配置的默认值.
func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.user_headers", []string{
		"X-Auth-Request-Email",
		"X-Forwarded-Email",
		"X-Forwarded-User",
	})
	v.SetDefault("auth.skip_paths", []string{
		"/health",
		"/metrics",
		"/api/v1/download",
	})
}
