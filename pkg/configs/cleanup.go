package configs

import (
	"time"

	"github.com/spf13/viper"
)

// CleanupConfig 过期令牌清理任务配置.
type CleanupConfig struct {
	Enabled        bool   `mapstructure:"enabled"`           // 是否启用定时清理
	Cron           string `mapstructure:"cron"`              // cron表达式
	Retention      string `mapstructure:"retention"`         // 过期令牌保留时长, 超过后才被删除
	BatchSize      int    `mapstructure:"batch_size"`        // 单批删除条数
	LockName       string `mapstructure:"lock_name"`         // 分布式锁名称
	LockAtLeastFor string `mapstructure:"lock_at_least_for"` // 锁最短持有时间
	LockAtMostFor  string `mapstructure:"lock_at_most_for"`  // 锁最长持有时间(即锁TTL)
}

// GetRetention 解析保留时长, 解析失败时返回24小时.
func (c *CleanupConfig) GetRetention() time.Duration {
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// GetLockAtLeastFor 解析锁最短持有时间.
func (c *CleanupConfig) GetLockAtLeastFor() time.Duration {
	d, err := time.ParseDuration(c.LockAtLeastFor)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetLockAtMostFor 解析锁最长持有时间.
func (c *CleanupConfig) GetLockAtMostFor() time.Duration {
	d, err := time.ParseDuration(c.LockAtMostFor)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// setDefaults 设置清理任务配置的默认值.
func (c *CleanupConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.cron", "0 * * * *")
	v.SetDefault("cleanup.retention", "24h")
	v.SetDefault("cleanup.batch_size", 500)
	v.SetDefault("cleanup.lock_name", "statvault:cleanup:lock")
	v.SetDefault("cleanup.lock_at_least_for", "5s")
	v.SetDefault("cleanup.lock_at_most_for", "10m")
}
