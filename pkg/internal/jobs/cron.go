// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yeisme/statvault/pkg/configs"
	ctxPkg "github.com/yeisme/statvault/pkg/context"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/service"
	"github.com/yeisme/statvault/pkg/internal/storage"
	"github.com/yeisme/statvault/pkg/internal/storage/kv"
	"github.com/yeisme/statvault/pkg/log"
	"github.com/yeisme/statvault/pkg/metrics"
	"github.com/yeisme/statvault/pkg/queue"
	"github.com/yeisme/statvault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 按配置的 cron 表达式清理过期的下载令牌，多节点部署时通过 KV 分布式锁保证同一时刻只有一个节点执行
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	cfg := configs.GetConfig().Cleanup
	if !cfg.Enabled {
		log.Logger().Info().Msg("token cleanup job disabled")

		return nil
	}

	// 将 storage manager 注入到 context，便于任务内使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	return sched.AddCron(JobTokenCleanup, cfg.Cron, func(ctx context.Context) {
		RunTokenCleanup(ctx, mgr)
	}, baseCtx)
}

// RunTokenCleanup 在 KV 分布式锁保护下执行一轮过期令牌清理.
// 未抢到锁的节点直接跳过本轮.
func RunTokenCleanup(ctx context.Context, mgr *storage.Manager) {
	l := log.Logger().With().Str("job", JobTokenCleanup).Logger()
	cfg := configs.GetConfig().Cleanup

	kvc := mgr.GetKVClient()
	if kvc == nil {
		l.Error().Msg("kv client not initialized, skip cleanup")

		return
	}

	node := nodeName()

	// SetNX + TTL: 锁的存活上限即 lock_at_most_for, 持有者崩溃后锁自动释放
	acquired, err := kvc.SetNX(ctx, cfg.LockName, []byte(node), cfg.GetLockAtMostFor())
	if err != nil {
		l.Error().Err(err).Msg("acquire cleanup lock failed")

		return
	}

	if !acquired {
		l.Debug().Msg("cleanup lock held by another node, skipping")

		return
	}

	start := time.Now()
	deleted, batches, err := sweepExpiredTokens(ctx, mgr, cfg.GetRetention(), cfg.BatchSize)

	// 锁最短持有时间, 防止时钟偏差下其它节点紧跟着重复执行
	if hold := cfg.GetLockAtLeastFor() - time.Since(start); hold > 0 {
		time.Sleep(hold)
	}

	releaseLock(ctx, kvc, cfg.LockName, node)

	if err != nil {
		l.Error().Err(err).Int64("deleted", deleted).Msg("token cleanup failed")

		return
	}

	metrics.CleanupDeletedTotal.Add(float64(deleted))

	service.Record(model.AuditEvent{
		Action:     model.ActionCleanupRun,
		OccurredAt: time.Now().UTC(),
		DetailsJSON: fmt.Sprintf(`{"deleted":%d,"batches":%d,"node":%q}`,
			deleted, batches, node),
	})

	if mqc := mgr.GetMQClient(); mqc != nil && mqc.Publisher() != nil {
		if pubErr := queue.PublishCleanupCompleted(mqc.Publisher(), queue.CleanupCompletedPayload{
			Deleted:  deleted,
			Batches:  batches,
			Duration: time.Since(start),
			Node:     node,
		}, queue.WithProducer("statvault")); pubErr != nil {
			l.Error().Err(pubErr).Msg("publish cleanup.completed failed")
		}
	}

	l.Info().
		Int64("deleted", deleted).
		Int("batches", batches).
		Dur("took", time.Since(start)).
		Msg("token cleanup done")
}

// sweepExpiredTokens 分批删除超过保留期的令牌: 过期令牌与已消费的单次令牌都在扫除范围.
// 逐批删除直到一批不足 batchSize, 避免长事务锁表.
func sweepExpiredTokens(ctx context.Context, mgr *storage.Manager, retention time.Duration, batchSize int) (int64, int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	cutoff := time.Now().Add(-retention)
	dbx := mgr.GetDBClient().GetDB().WithContext(ctx)

	var (
		total   int64
		batches int
	)

	for {
		// 部分方言不支持 DELETE ... LIMIT, 先选主键再删
		var ids []string
		if err := dbx.Model(&model.AccessToken{}).
			Where("expires_at < ? OR (single_use = ? AND used = ? AND used_at < ?)",
				cutoff, true, true, cutoff).
			Limit(batchSize).
			Pluck("id", &ids).Error; err != nil {
			return total, batches, err
		}

		if len(ids) == 0 {
			break
		}

		tx := dbx.Where("id IN ?", ids).Delete(&model.AccessToken{})
		if tx.Error != nil {
			return total, batches, tx.Error
		}

		total += tx.RowsAffected
		batches++

		if len(ids) < batchSize {
			break
		}
	}

	return total, batches, nil
}

// releaseLock 释放清理锁. 先核对归属: 本轮若超出 lock_at_most_for,
// 锁可能已随 TTL 释放并被其它节点抢占, 此时不得删除对方的锁.
func releaseLock(ctx context.Context, kvc *kv.Client, lockName, node string) {
	l := log.Logger()

	holder, err := kvc.Get(ctx, lockName)
	if err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			l.Warn().Err(err).Msg("read cleanup lock failed, will expire by TTL")
		}

		return
	}

	if string(holder) != node {
		l.Warn().Str("holder", string(holder)).Msg("cleanup lock held by another node, not releasing")

		return
	}

	if err := kvc.Delete(ctx, lockName); err != nil {
		l.Warn().Err(err).Msg("release cleanup lock failed, will expire by TTL")
	}
}

// nodeName 锁值使用主机名标识持有者.
func nodeName() string {
	if host, err := os.Hostname(); err == nil {
		return host
	}

	return "unknown"
}
