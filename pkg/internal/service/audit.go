package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	ctxPkg "github.com/yeisme/statvault/pkg/context"
	"github.com/yeisme/statvault/pkg/internal/crypto"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/storage/db"
	"github.com/yeisme/statvault/pkg/internal/types"
	nlog "github.com/yeisme/statvault/pkg/log"
	"github.com/yeisme/statvault/pkg/rule"
)

const (
	// auditBufferSize 提交通道容量. 写满后新事件被丢弃并记日志, 绝不阻塞请求路径.
	auditBufferSize = 4096
	// auditDrainTimeout 关闭时排空缓冲的最长等待.
	auditDrainTimeout = 5 * time.Second
	// maxPageSize 列表类查询的单页上限.
	maxPageSize = 100
)

// AuditRecorder 审计事件记录器: 单写协程串行落库, 提交方非阻塞.
type AuditRecorder struct {
	dbc    *db.Client
	ch     chan model.AuditEvent
	done   chan struct{}
	closed sync.Once
}

var (
	recorder   *AuditRecorder
	recorderMu sync.RWMutex
)

// StartRecorder 创建全局审计记录器并启动写协程.
func StartRecorder(dbc *db.Client) *AuditRecorder {
	r := &AuditRecorder{
		dbc:  dbc,
		ch:   make(chan model.AuditEvent, auditBufferSize),
		done: make(chan struct{}),
	}

	go r.run()

	recorderMu.Lock()
	recorder = r
	recorderMu.Unlock()

	return r
}

// Record 非阻塞提交一条审计事件. 记录器未启动或缓冲已满时丢弃并记日志.
func Record(event model.AuditEvent) {
	recorderMu.RLock()
	r := recorder
	recorderMu.RUnlock()

	if r == nil {
		nlog.Logger().Warn().Str("action", string(event.Action)).Msg("audit recorder not running, event dropped")

		return
	}

	r.Submit(event)
}

// Submit 非阻塞提交.
func (r *AuditRecorder) Submit(event model.AuditEvent) {
	if event.ID == "" {
		event.ID = NewID()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	select {
	case r.ch <- event:
	default:
		nlog.Logger().Warn().Str("action", string(event.Action)).Msg("audit buffer full, event dropped")
	}
}

// run 写协程: 逐条落库, 直至通道关闭.
func (r *AuditRecorder) run() {
	defer close(r.done)

	for event := range r.ch {
		if err := r.dbc.GetDB().Create(&event).Error; err != nil {
			nlog.Logger().Error().Err(err).Str("action", string(event.Action)).Msg("persist audit event failed")
		}
	}
}

// Close 停止接收并在限定时间内排空缓冲.
func (r *AuditRecorder) Close() error {
	var err error

	r.closed.Do(func() {
		close(r.ch)

		select {
		case <-r.done:
		case <-time.After(auditDrainTimeout):
			err = fmt.Errorf("audit recorder drain timed out")
		}
	})

	return err
}

// AuditService 审计事件查询.
type AuditService struct {
	dbc *db.Client
}

// NewAuditService 创建审计查询服务.
func NewAuditService(c context.Context) *AuditService {
	return &AuditService{dbc: ctxPkg.GetDBClient(c)}
}

// List 按条件查询审计事件, 按发生时间倒序.
func (s *AuditService) List(ctx context.Context, req *types.ListAuditRequest) (*types.ListAuditResponse, error) {
	if err := rule.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, err)
	}

	// 页大小缺省 50, 存在上限以约束响应成本
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	if limit > maxPageSize {
		limit = maxPageSize
	}

	dbx := s.dbc.GetDB().WithContext(ctx).Model(&model.AuditEvent{})
	if req.OwnerID != "" {
		dbx = dbx.Where("owner_key = ?", crypto.OwnerKey(req.OwnerID))
	}

	if req.Action != "" {
		dbx = dbx.Where("action = ?", req.Action)
	}

	if req.StartDate != "" {
		if day, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			dbx = dbx.Where("occurred_at >= ?", day)
		}
	}

	if req.EndDate != "" {
		if day, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			dbx = dbx.Where("occurred_at < ?", day.AddDate(0, 0, 1))
		}
	}

	var total int64
	if err := dbx.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []model.AuditEvent
	if err := dbx.Order("occurred_at DESC").Offset(req.Offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]types.AuditEventItem, 0, len(rows))

	for _, r := range rows {
		details, err := r.Details()
		if err != nil {
			nlog.Logger().Warn().Err(err).Str("event_id", r.ID).Msg("bad audit details json")
		}

		items = append(items, types.AuditEventItem{
			ID:          r.ID,
			Action:      string(r.Action),
			OwnerKey:    r.OwnerKey,
			ArtifactID:  r.ArtifactID,
			TokenPrefix: r.TokenPrefix,
			Actor:       r.Actor,
			RemoteAddr:  r.RemoteAddr,
			UserAgent:   r.UserAgent,
			Details:     details,
			OccurredAt:  r.OccurredAt,
		})
	}

	return &types.ListAuditResponse{Total: total, Items: items}, nil
}
