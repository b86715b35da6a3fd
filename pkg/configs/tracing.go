package configs

import (
	"github.com/spf13/viper"
)

// TracingConfig 分布式追踪配置.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`         // 是否启用追踪
	ServiceName    string  `mapstructure:"service_name"`    // 服务名称
	ServiceVersion string  `mapstructure:"service_version"` // 服务版本
	Exporter       string  `mapstructure:"exporter"`        // 导出器类型: otlp-http, otlp-grpc, stdout
	Endpoint       string  `mapstructure:"endpoint"`        // 导出器端点
	SampleRate     float64 `mapstructure:"sample_rate"`     // 采样率 0.0-1.0
	Insecure       bool    `mapstructure:"insecure"`        // 是否使用非加密连接
}

// setDefaults 设置Tracing配置的默认值.
func (c *TracingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "statvault")
	v.SetDefault("tracing.service_version", AppVersion)
	v.SetDefault("tracing.exporter", "otlp-http")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", true)
}
