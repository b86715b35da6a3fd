package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeisme/statvault/pkg/configs"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/types"
	nlog "github.com/yeisme/statvault/pkg/log"
	"github.com/yeisme/statvault/pkg/metrics"
	"github.com/yeisme/statvault/pkg/queue"
	"github.com/yeisme/statvault/pkg/rule"
)

// IssueLink 为指定账单签发一条带过期时间的签名下载链接.
func (s *StatementService) IssueLink(ctx context.Context, artifactID string, req *types.IssueLinkRequest, issuer, remoteAddr string) (*types.IssueLinkResponse, error) {
	if err := rule.ValidateStruct(req); err != nil {
		s.recordLinkRejected(artifactID, issuer, remoteAddr, "invalid_request")

		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, err)
	}

	artifact, err := s.Get(ctx, artifactID)
	if err != nil {
		if errors.Is(err, ErrStatementNotFound) {
			s.recordLinkRejected(artifactID, issuer, remoteAddr, "statement_not_found")
		}

		return nil, err
	}

	secLayer, err := getSecurity()
	if err != nil {
		return nil, err
	}

	linkCfg := configs.GetConfig().Link

	ttl := linkCfg.GetDefaultTTL()
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	singleUse := linkCfg.SingleUse
	if req.SingleUse != nil {
		singleUse = *req.SingleUse
	}

	expiresAt := time.Now().Add(ttl).Truncate(time.Second)
	path := downloadPath(linkCfg.BasePath, artifact.ID)
	signature := secLayer.signer.Sign("GET", path, expiresAt.Unix())

	token := model.AccessToken{
		ID:         NewID(),
		ArtifactID: artifact.ID,
		Signature:  signature,
		ExpiresAt:  expiresAt,
		SingleUse:  singleUse,
		IssuedBy:   issuer,
	}

	if err := s.dbc.GetDB().WithContext(ctx).Create(&token).Error; err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	metrics.TokensIssuedTotal.Inc()

	Record(model.AuditEvent{
		Action:      model.ActionLinkIssued,
		OwnerKey:    artifact.OwnerKey,
		ArtifactID:  artifact.ID,
		TokenPrefix: maskToken(signature),
		Actor:       issuer,
		RemoteAddr:  remoteAddr,
		OccurredAt:  time.Now().UTC(),
	})

	s.publishLinkIssued(artifact, &token)

	nlog.Logger().Info().
		Str("artifact_id", artifact.ID).
		Str("token_prefix", maskToken(signature)).
		Time("expires_at", expiresAt).
		Bool("single_use", singleUse).
		Msg("download link issued")

	return &types.IssueLinkResponse{
		URL:       fmt.Sprintf("%s?expires=%d&signature=%s", path, expiresAt.Unix(), signature),
		ExpiresAt: expiresAt,
		SingleUse: singleUse,
	}, nil
}

// recordLinkRejected 记录被拒绝的签发请求.
func (s *StatementService) recordLinkRejected(artifactID, issuer, remoteAddr, reason string) {
	Record(model.AuditEvent{
		Action:      model.ActionLinkRejected,
		ArtifactID:  artifactID,
		Actor:       issuer,
		RemoteAddr:  remoteAddr,
		OccurredAt:  time.Now().UTC(),
		DetailsJSON: fmt.Sprintf(`{"reason":%q}`, reason),
	})
}

// consumeToken 对单次令牌执行条件消费: used=false -> true.
// RowsAffected 为 0 表示另一请求已抢先消费, 保证至多一次放行.
func (s *StatementService) consumeToken(ctx context.Context, token *model.AccessToken) (bool, error) {
	now := time.Now().UTC()

	tx := s.dbc.GetDB().WithContext(ctx).Model(&model.AccessToken{}).
		Where("id = ? AND used = ?", token.ID, false).
		Updates(map[string]any{"used": true, "used_at": now})
	if tx.Error != nil {
		return false, tx.Error
	}

	if tx.RowsAffected == 0 {
		return false, nil
	}

	metrics.TokensConsumedTotal.Inc()

	return true, nil
}

// publishLinkIssued 发布签发事件.
func (s *StatementService) publishLinkIssued(a *model.Artifact, t *model.AccessToken) {
	if s.mqc == nil || s.mqc.Publisher() == nil {
		return
	}

	err := queue.PublishLinkIssued(s.mqc.Publisher(), queue.LinkIssuedPayload{
		ArtifactID:  a.ID,
		OwnerKey:    a.OwnerKey,
		TokenPrefix: maskToken(t.Signature),
		ExpiresAt:   t.ExpiresAt,
		SingleUse:   t.SingleUse,
	}, queue.WithProducer("statvault"))
	if err != nil {
		nlog.Logger().Error().Err(err).Str("artifact_id", a.ID).Msg("publish link.issued failed")
	}
}

// downloadPath 下载链接的路径部分, 参与签名.
func downloadPath(basePath, artifactID string) string {
	return fmt.Sprintf("%s/%s", basePath, artifactID)
}
