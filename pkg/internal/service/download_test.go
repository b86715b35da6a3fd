package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/statvault/pkg/internal/crypto"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/types"
)

// issueTestLink 签发链接并读回生成的令牌.
func issueTestLink(t *testing.T, svc *StatementService, artifactID string, req *types.IssueLinkRequest) *model.AccessToken {
	t.Helper()

	_, err := svc.IssueLink(context.Background(), artifactID, req, "ops@test", "10.0.0.1")
	require.NoError(t, err)

	var token model.AccessToken
	require.NoError(t, svc.dbc.GetDB().
		Order("created_at DESC").
		First(&token, "artifact_id = ?", artifactID).Error)

	return &token
}

func TestValidateTokenInvalidSignature(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	_, denyErr, err := svc.validateToken(context.Background(), &DownloadInput{
		ArtifactID: "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Expires:    time.Now().Add(time.Hour).Unix(),
		Signature:  "forged-signature",
	})
	require.NoError(t, err)
	require.NotNil(t, denyErr)
	assert.Equal(t, types.DenyInvalidSignature, denyErr.Reason)
	assert.Equal(t, http.StatusForbidden, denyErr.Status)
}

func TestValidateTokenUnknownToken(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	// 签名本身有效, 但从未登记过(例如令牌已被清理)
	secLayer, err := getSecurity()
	require.NoError(t, err)

	artifactID := "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	expires := time.Now().Add(time.Hour).Unix()
	sig := secLayer.signer.Sign("GET", "/api/v1/download/"+artifactID, expires)

	_, denyErr, err := svc.validateToken(context.Background(), &DownloadInput{
		ArtifactID: artifactID,
		Expires:    expires,
		Signature:  sig,
	})
	require.NoError(t, err)
	require.NotNil(t, denyErr)
	assert.Equal(t, types.DenyUnknownToken, denyErr.Reason)
}

func TestValidateTokenExpired(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")

	secLayer, err := getSecurity()
	require.NoError(t, err)

	expiresAt := time.Now().Add(-time.Minute).Truncate(time.Second)
	sig := secLayer.signer.Sign("GET", "/api/v1/download/"+artifact.ID, expiresAt.Unix())

	require.NoError(t, dbc.GetDB().Create(&model.AccessToken{
		ID:         NewID(),
		ArtifactID: artifact.ID,
		Signature:  sig,
		ExpiresAt:  expiresAt,
		SingleUse:  true,
	}).Error)

	_, denyErr, err := svc.validateToken(context.Background(), &DownloadInput{
		ArtifactID: artifact.ID,
		Expires:    expiresAt.Unix(),
		Signature:  sig,
	})
	require.NoError(t, err)
	require.NotNil(t, denyErr)
	assert.Equal(t, types.DenyExpired, denyErr.Reason)
	assert.Equal(t, http.StatusNotFound, denyErr.Status)
}

func TestValidateTokenSingleUseConsumedOnce(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")
	token := issueTestLink(t, svc, artifact.ID, &types.IssueLinkRequest{})

	in := &DownloadInput{
		ArtifactID: artifact.ID,
		Expires:    token.ExpiresAt.Unix(),
		Signature:  token.Signature,
	}

	// 第一次放行并消费
	got, denyErr, err := svc.validateToken(context.Background(), in)
	require.NoError(t, err)
	require.Nil(t, denyErr)
	assert.Equal(t, token.ID, got.ID)

	// 第二次同一令牌被拒
	_, denyErr, err = svc.validateToken(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, denyErr)
	assert.Equal(t, types.DenyAlreadyUsed, denyErr.Reason)
	assert.Equal(t, http.StatusNotFound, denyErr.Status)
}

func TestValidateTokenMultiUse(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")

	multiUse := false
	token := issueTestLink(t, svc, artifact.ID, &types.IssueLinkRequest{SingleUse: &multiUse})

	in := &DownloadInput{
		ArtifactID: artifact.ID,
		Expires:    token.ExpiresAt.Unix(),
		Signature:  token.Signature,
	}

	// 多次使用的令牌在有效期内反复放行
	for range 3 {
		_, denyErr, err := svc.validateToken(context.Background(), in)
		require.NoError(t, err)
		require.Nil(t, denyErr)
	}

	var after model.AccessToken
	require.NoError(t, dbc.GetDB().First(&after, "id = ?", token.ID).Error)
	assert.False(t, after.Used)
}

func TestValidateTokenUsedWinsOverExpired(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")

	secLayer, err := getSecurity()
	require.NoError(t, err)

	expiresAt := time.Now().Add(-time.Minute).Truncate(time.Second)
	sig := secLayer.signer.Sign("GET", "/api/v1/download/"+artifact.ID, expiresAt.Unix())

	// 令牌既已消费又已过期: 消费状态优先
	usedAt := expiresAt.Add(-time.Minute)
	require.NoError(t, dbc.GetDB().Create(&model.AccessToken{
		ID:         NewID(),
		ArtifactID: artifact.ID,
		Signature:  sig,
		ExpiresAt:  expiresAt,
		SingleUse:  true,
		Used:       true,
		UsedAt:     &usedAt,
	}).Error)

	_, denyErr, err := svc.validateToken(context.Background(), &DownloadInput{
		ArtifactID: artifact.ID,
		Expires:    expiresAt.Unix(),
		Signature:  sig,
	})
	require.NoError(t, err)
	require.NotNil(t, denyErr)
	assert.Equal(t, types.DenyAlreadyUsed, denyErr.Reason)
	assert.Equal(t, http.StatusNotFound, denyErr.Status)
}

func TestDownloadMissingArtifact(t *testing.T) {
	dbc := setupTest(t)
	resetRecorder(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")
	token := issueTestLink(t, svc, artifact.ID, &types.IssueLinkRequest{})

	// 令牌有效但账单元数据已被删除
	require.NoError(t, dbc.GetDB().Delete(&model.Artifact{}, "id = ?", artifact.ID).Error)

	r := StartRecorder(dbc)

	_, err := svc.Download(context.Background(), &DownloadInput{
		ArtifactID: artifact.ID,
		Expires:    token.ExpiresAt.Unix(),
		Signature:  token.Signature,
		RemoteAddr: "10.0.0.1",
	})

	var dlErr *types.DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, http.StatusNotFound, dlErr.Status)

	// 元数据缺失同样要留下一条失败审计
	require.NoError(t, r.Close())

	var events []model.AuditEvent
	require.NoError(t, dbc.GetDB().
		Where("action = ?", model.ActionDownloadFailed).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, artifact.ID, events[0].ArtifactID)
	assert.Equal(t, "10.0.0.1", events[0].RemoteAddr)
	assert.NotEmpty(t, events[0].TokenPrefix)
}

func TestDownloadDeniedPathSignatureMismatch(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	artifact := seedArtifact(t, dbc, crypto.OwnerKey("ACCT12345678"), "2024-06-30")
	token := issueTestLink(t, svc, artifact.ID, &types.IssueLinkRequest{})

	// 把合法签名套在另一个账单 ID 上, 路径参与签名所以必然失败
	_, err := svc.Download(context.Background(), &DownloadInput{
		ArtifactID: "01BX5ZZKBKACTAV9WEVGEMMVRZ",
		Expires:    token.ExpiresAt.Unix(),
		Signature:  token.Signature,
	})

	var dlErr *types.DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, http.StatusForbidden, dlErr.Status)
	assert.Equal(t, types.DenyInvalidSignature, dlErr.Reason)
}
