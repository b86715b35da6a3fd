package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/statvault/pkg/internal/crypto"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/types"
)

func TestIssueLinkDefaults(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")

	resp, err := svc.IssueLink(context.Background(), artifact.ID, &types.IssueLinkRequest{}, "ops@test", "10.0.0.1")
	require.NoError(t, err)

	assert.True(t, resp.SingleUse)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), resp.ExpiresAt, 5*time.Second)

	// URL 形如 <base_path>/<id>?expires=<unix>&signature=<sig>
	var token model.AccessToken
	require.NoError(t, dbc.GetDB().First(&token, "artifact_id = ?", artifact.ID).Error)

	expected := fmt.Sprintf("/api/v1/download/%s?expires=%d&signature=%s",
		artifact.ID, token.ExpiresAt.Unix(), token.Signature)
	assert.Equal(t, expected, resp.URL)
	assert.False(t, token.Used)
	assert.Nil(t, token.UsedAt)
}

func TestIssueLinkOverrides(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")

	multiUse := false
	resp, err := svc.IssueLink(context.Background(), artifact.ID, &types.IssueLinkRequest{
		TTLSeconds: 60,
		SingleUse:  &multiUse,
	}, "ops@test", "10.0.0.1")
	require.NoError(t, err)

	assert.False(t, resp.SingleUse)
	assert.WithinDuration(t, time.Now().Add(time.Minute), resp.ExpiresAt, 5*time.Second)
}

func TestIssueLinkUnknownArtifact(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	_, err := svc.IssueLink(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV", &types.IssueLinkRequest{}, "", "")
	assert.ErrorIs(t, err, ErrStatementNotFound)
}

func TestIssueLinkRejectsBadTTL(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")

	// 超出7天上限
	_, err := svc.IssueLink(context.Background(), artifact.ID, &types.IssueLinkRequest{
		TTLSeconds: 604801,
	}, "", "")
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestIssueLinkRejectionsAudited(t *testing.T) {
	dbc := setupTest(t)
	resetRecorder(t)
	svc := &StatementService{dbc: dbc}

	r := StartRecorder(dbc)

	// 账单不存在
	_, err := svc.IssueLink(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV", &types.IssueLinkRequest{}, "ops@test", "10.0.0.1")
	assert.ErrorIs(t, err, ErrStatementNotFound)

	// TTL 超限
	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")
	_, err = svc.IssueLink(context.Background(), artifact.ID, &types.IssueLinkRequest{
		TTLSeconds: 604801,
	}, "ops@test", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidContent)

	require.NoError(t, r.Close())

	var events []model.AuditEvent
	require.NoError(t, dbc.GetDB().
		Where("action = ?", model.ActionLinkRejected).Find(&events).Error)
	require.Len(t, events, 2)

	for _, ev := range events {
		assert.Equal(t, "ops@test", ev.Actor)
		assert.Equal(t, "10.0.0.1", ev.RemoteAddr)
		assert.NotEmpty(t, ev.DetailsJSON)
	}
}

func TestConsumeTokenAtMostOnce(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")

	token := model.AccessToken{
		ID:         NewID(),
		ArtifactID: artifact.ID,
		Signature:  "concurrent-consume-token",
		ExpiresAt:  time.Now().Add(time.Hour),
		SingleUse:  true,
	}
	require.NoError(t, dbc.GetDB().Create(&token).Error)

	const workers = 8

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed int
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := svc.consumeToken(context.Background(), &token)
			assert.NoError(t, err)

			if ok {
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// 并发消费下有且只有一个请求成功
	assert.Equal(t, 1, consumed)

	var after model.AccessToken
	require.NoError(t, dbc.GetDB().First(&after, "id = ?", token.ID).Error)
	assert.True(t, after.Used)
	require.NotNil(t, after.UsedAt)
}
