package configs

import (
	"time"

	"github.com/spf13/viper"
)

// CircuitBreakerConfig 熔断器配置.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`            // 是否启用熔断
	MaxRequests      uint32  `mapstructure:"max_requests"`       // 半开状态下允许通过的请求数
	Interval         string  `mapstructure:"interval"`           // 闭合状态下计数清零周期
	Timeout          string  `mapstructure:"timeout"`            // 断开状态持续时间
	MinRequests      uint32  `mapstructure:"min_requests"`       // 触发熔断判定的最小请求数
	FailureThreshold float64 `mapstructure:"failure_threshold"`  // 失败率阈值 0.0-1.0
}

// GetInterval 解析计数周期, 解析失败时返回默认值.
func (c *CircuitBreakerConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetTimeout 解析断开持续时间, 解析失败时返回默认值.
func (c *CircuitBreakerConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// setDefaults 设置熔断配置的默认值.
func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.max_requests", 5)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.min_requests", 10)
	v.SetDefault("circuit_breaker.failure_threshold", 0.5)
}
