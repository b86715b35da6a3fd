package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/statvault/pkg/internal/crypto"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/types"
)

// resetRecorder 测试结束后摘除全局记录器, 避免跨测试串扰.
func resetRecorder(t *testing.T) {
	t.Cleanup(func() {
		recorderMu.Lock()
		recorder = nil
		recorderMu.Unlock()
	})
}

func TestRecorderPersistsEvents(t *testing.T) {
	dbc := setupTest(t)
	resetRecorder(t)

	r := StartRecorder(dbc)

	Record(model.AuditEvent{
		Action:     model.ActionStatementStored,
		OwnerKey:   crypto.OwnerKey("ACCT12345678"),
		ArtifactID: "01ARZ3NDEKTSV4RRFFQ69G5FAV",
	})
	Record(model.AuditEvent{
		Action:      model.ActionDownloadDenied,
		TokenPrefix: "abcdefgh...",
		DetailsJSON: `{"reason":"expired"}`,
	})

	require.NoError(t, r.Close())

	var rows []model.AuditEvent
	require.NoError(t, dbc.GetDB().Find(&rows).Error)
	require.Len(t, rows, 2)

	for _, row := range rows {
		assert.NotEmpty(t, row.ID)
		assert.False(t, row.OccurredAt.IsZero())
	}
}

func TestRecorderCloseIdempotent(t *testing.T) {
	dbc := setupTest(t)
	resetRecorder(t)

	r := StartRecorder(dbc)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestRecordWithoutRecorderDoesNotPanic(t *testing.T) {
	resetRecorder(t)

	recorderMu.Lock()
	recorder = nil
	recorderMu.Unlock()

	Record(model.AuditEvent{Action: model.ActionLinkIssued})
}

func TestAuditServiceList(t *testing.T) {
	dbc := setupTest(t)
	svc := &AuditService{dbc: dbc}

	ownerID := "ACCT12345678"
	ownerKey := crypto.OwnerKey(ownerID)
	base := time.Now().UTC().Truncate(time.Second)

	events := []model.AuditEvent{
		{ID: NewID(), Action: model.ActionStatementStored, OwnerKey: ownerKey, OccurredAt: base.Add(-3 * time.Minute)},
		{ID: NewID(), Action: model.ActionLinkIssued, OwnerKey: ownerKey, OccurredAt: base.Add(-2 * time.Minute)},
		{ID: NewID(), Action: model.ActionDownloadAllowed, OwnerKey: ownerKey, OccurredAt: base.Add(-time.Minute)},
		{ID: NewID(), Action: model.ActionDownloadDenied, OccurredAt: base},
	}
	for i := range events {
		require.NoError(t, dbc.GetDB().Create(&events[i]).Error)
	}

	// 按账户过滤, 账户号在查询前被哈希
	resp, err := svc.List(context.Background(), &types.ListAuditRequest{OwnerID: ownerID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Total)

	// 发生时间倒序
	require.Len(t, resp.Items, 3)
	assert.Equal(t, string(model.ActionDownloadAllowed), resp.Items[0].Action)
	assert.Equal(t, string(model.ActionStatementStored), resp.Items[2].Action)

	// 按动作过滤
	denied, err := svc.List(context.Background(), &types.ListAuditRequest{Action: string(model.ActionDownloadDenied)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, denied.Total)
}

func TestAuditServiceListDateRange(t *testing.T) {
	dbc := setupTest(t)
	svc := &AuditService{dbc: dbc}

	events := []model.AuditEvent{
		{ID: NewID(), Action: model.ActionLinkIssued, OccurredAt: time.Date(2024, 6, 28, 23, 59, 59, 0, time.UTC)},
		{ID: NewID(), Action: model.ActionLinkIssued, OccurredAt: time.Date(2024, 6, 29, 12, 0, 0, 0, time.UTC)},
		{ID: NewID(), Action: model.ActionLinkIssued, OccurredAt: time.Date(2024, 6, 30, 8, 30, 0, 0, time.UTC)},
		{ID: NewID(), Action: model.ActionLinkIssued, OccurredAt: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	for i := range events {
		require.NoError(t, dbc.GetDB().Create(&events[i]).Error)
	}

	// 起止日期均为闭区间, 覆盖整天
	resp, err := svc.List(context.Background(), &types.ListAuditRequest{
		StartDate: "2024-06-29",
		EndDate:   "2024-06-30",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Total)

	resp, err = svc.List(context.Background(), &types.ListAuditRequest{StartDate: "2024-07-01"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Total)
}

func TestAuditServiceListClampsLimit(t *testing.T) {
	dbc := setupTest(t)
	svc := &AuditService{dbc: dbc}

	resp, err := svc.List(context.Background(), &types.ListAuditRequest{Limit: 10000})
	require.NoError(t, err)
	assert.EqualValues(t, 0, resp.Total)
	assert.Empty(t, resp.Items)
}

func TestAuditDetailsRoundTrip(t *testing.T) {
	event := model.AuditEvent{}
	require.NoError(t, event.SetDetails(map[string]any{"reason": "expired", "deleted": 3}))

	details, err := event.Details()
	require.NoError(t, err)
	assert.Equal(t, "expired", details["reason"])
}
