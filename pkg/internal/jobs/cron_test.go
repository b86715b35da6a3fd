package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeisme/statvault/pkg/configs"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/service"
	"github.com/yeisme/statvault/pkg/internal/storage"
	"github.com/yeisme/statvault/pkg/internal/storage/db"
	"github.com/yeisme/statvault/pkg/internal/storage/kv"
	"github.com/yeisme/statvault/pkg/scheduler"
)

// newTestManager 组装内存数据库与内存 KV 的存储管理器.
func newTestManager(t *testing.T) *storage.Manager {
	t.Helper()

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	content := `
server:
  reload_config: false
cleanup:
  enabled: true
  retention: 1h
  batch_size: 2
  lock_name: "statvault:cleanup:lock"
  lock_at_least_for: 0s
  lock_at_most_for: 1m
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o600))
	require.NoError(t, configs.InitConfig(cfgFile))

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(&model.Artifact{}, &model.AccessToken{}, &model.AuditEvent{}))
	t.Cleanup(func() { _ = sqlDB.Close() })

	kvc, err := kv.New(context.Background(), &configs.KVConfig{Type: string(kv.KVTypeMemory)})
	require.NoError(t, err)

	return &storage.Manager{
		DB: &db.Client{DB: gdb},
		KV: kvc,
	}
}

// seedToken 插入一条指定过期时刻的令牌.
func seedToken(t *testing.T, mgr *storage.Manager, artifactID, signature string, expiresAt time.Time) {
	t.Helper()

	require.NoError(t, mgr.GetDBClient().GetDB().Create(&model.AccessToken{
		ID:         service.NewID(),
		ArtifactID: artifactID,
		Signature:  signature,
		ExpiresAt:  expiresAt,
		SingleUse:  true,
	}).Error)
}

func countTokens(t *testing.T, mgr *storage.Manager) int64 {
	t.Helper()

	var n int64
	require.NoError(t, mgr.GetDBClient().GetDB().Model(&model.AccessToken{}).Count(&n).Error)

	return n
}

func TestSweepExpiredTokens(t *testing.T) {
	mgr := newTestManager(t)
	now := time.Now()

	// 超过保留期的过期令牌: 应被清除
	seedToken(t, mgr, "artifact-1", "tok-stale-1", now.Add(-3*time.Hour))
	seedToken(t, mgr, "artifact-1", "tok-stale-2", now.Add(-4*time.Hour))
	seedToken(t, mgr, "artifact-2", "tok-stale-3", now.Add(-5*time.Hour))
	// 已过期但仍在保留期内: 留给审计追溯
	seedToken(t, mgr, "artifact-2", "tok-recent", now.Add(-10*time.Minute))
	// 仍然有效
	seedToken(t, mgr, "artifact-2", "tok-active", now.Add(time.Hour))

	deleted, batches, err := sweepExpiredTokens(context.Background(), mgr, time.Hour, 2)
	require.NoError(t, err)

	assert.EqualValues(t, 3, deleted)
	assert.Equal(t, 2, batches)
	assert.EqualValues(t, 2, countTokens(t, mgr))

	// 再次执行无事可做, 不应报错
	deleted, batches, err = sweepExpiredTokens(context.Background(), mgr, time.Hour, 2)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Zero(t, batches)
}

func TestSweepRemovesConsumedSingleUseTokens(t *testing.T) {
	mgr := newTestManager(t)
	now := time.Now()
	gdb := mgr.GetDBClient().GetDB()

	// 已消费的单次令牌, TTL 还很长但消费时刻早于保留期: 应被清除
	staleUsed := now.Add(-2 * time.Hour)
	require.NoError(t, gdb.Create(&model.AccessToken{
		ID:         service.NewID(),
		ArtifactID: "artifact-1",
		Signature:  "tok-used-stale",
		ExpiresAt:  now.Add(24 * time.Hour),
		SingleUse:  true,
		Used:       true,
		UsedAt:     &staleUsed,
	}).Error)

	// 刚消费不久: 留给审计追溯
	recentUsed := now.Add(-10 * time.Minute)
	require.NoError(t, gdb.Create(&model.AccessToken{
		ID:         service.NewID(),
		ArtifactID: "artifact-1",
		Signature:  "tok-used-recent",
		ExpiresAt:  now.Add(24 * time.Hour),
		SingleUse:  true,
		Used:       true,
		UsedAt:     &recentUsed,
	}).Error)

	// 未消费且未过期
	seedToken(t, mgr, "artifact-1", "tok-active", now.Add(24*time.Hour))

	deleted, _, err := sweepExpiredTokens(context.Background(), mgr, time.Hour, 10)
	require.NoError(t, err)

	assert.EqualValues(t, 1, deleted)
	assert.EqualValues(t, 2, countTokens(t, mgr))

	var gone int64
	require.NoError(t, gdb.Model(&model.AccessToken{}).
		Where("signature = ?", "tok-used-stale").Count(&gone).Error)
	assert.Zero(t, gone)
}

func TestReleaseLockKeepsForeignLock(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	kvc := mgr.GetKVClient()
	lockName := configs.GetConfig().Cleanup.LockName

	// 锁已被其它节点持有(例如本轮超出 lock_at_most_for 后 TTL 释放再被抢占)
	acquired, err := kvc.SetNX(ctx, lockName, []byte("other-node"), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	releaseLock(ctx, kvc, lockName, "this-node")

	holder, err := kvc.Get(ctx, lockName)
	require.NoError(t, err)
	assert.Equal(t, "other-node", string(holder))

	// 归属匹配时正常释放
	releaseLock(ctx, kvc, lockName, "other-node")
	exists, err := kvc.Exists(ctx, lockName)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunTokenCleanupReleasesLock(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	seedToken(t, mgr, "artifact-1", "tok-stale", time.Now().Add(-3*time.Hour))

	RunTokenCleanup(ctx, mgr)

	assert.EqualValues(t, 0, countTokens(t, mgr))

	// 锁在任务结束后被释放, 下一轮可以继续抢到
	lockName := configs.GetConfig().Cleanup.LockName
	exists, err := mgr.GetKVClient().Exists(ctx, lockName)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunTokenCleanupSkipsWhenLockHeld(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	seedToken(t, mgr, "artifact-1", "tok-stale", time.Now().Add(-3*time.Hour))

	// 另一节点持有锁
	lockName := configs.GetConfig().Cleanup.LockName
	acquired, err := mgr.GetKVClient().SetNX(ctx, lockName, []byte("other-node"), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	RunTokenCleanup(ctx, mgr)

	// 未抢到锁, 本轮不做任何删除
	assert.EqualValues(t, 1, countTokens(t, mgr))

	// 释放后再跑一轮即可清掉
	require.NoError(t, mgr.GetKVClient().Delete(ctx, lockName))
	RunTokenCleanup(ctx, mgr)
	assert.EqualValues(t, 0, countTokens(t, mgr))
}

func TestRegisterCronJobsDisabled(t *testing.T) {
	mgr := newTestManager(t)

	configs.GetViper().Set("cleanup.enabled", false)
	// 重新解析配置使开关生效
	require.NoError(t, configs.GetViper().Unmarshal(configs.GetConfig()))

	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)

	t.Cleanup(func() { _ = sched.Stop() })

	// 清理任务停用时不注册任何job
	require.NoError(t, RegisterCronJobs(sched, mgr))
	assert.Empty(t, sched.GetJobInfos())
}
