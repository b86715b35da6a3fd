package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	minio "github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"github.com/yeisme/statvault/pkg/configs"
	"github.com/yeisme/statvault/pkg/internal/crypto"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/types"
	nlog "github.com/yeisme/statvault/pkg/log"
	"github.com/yeisme/statvault/pkg/metrics"
	"github.com/yeisme/statvault/pkg/queue"
)

// DownloadInput 签名下载请求的输入.
type DownloadInput struct {
	ArtifactID string
	Expires    int64
	Signature  string
	RemoteAddr string
	UserAgent  string
}

// Download 校验签名链接并返回解密后的账单.
// 四个阶段: 签名与令牌校验 -> 元数据加载 -> 密文读取 -> 解密与完整性验证.
// 签名类失败返回 403, 过期/已使用/资源缺失返回 404, 服务侧失败返回 500.
func (s *StatementService) Download(ctx context.Context, in *DownloadInput) (*types.DownloadResult, error) {
	token, denyErr, err := s.validateToken(ctx, in)
	if err != nil {
		return nil, err
	}

	if denyErr != nil {
		s.recordDenied(in, denyErr.Reason)

		return nil, denyErr
	}

	artifact, err := s.loadArtifact(ctx, in, token)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.fetchAndDecrypt(ctx, in, artifact)
	if err != nil {
		return nil, err
	}

	metrics.DownloadsTotal.WithLabelValues("allowed").Inc()

	Record(model.AuditEvent{
		Action:      model.ActionDownloadAllowed,
		OwnerKey:    artifact.OwnerKey,
		ArtifactID:  artifact.ID,
		TokenPrefix: maskToken(in.Signature),
		RemoteAddr:  in.RemoteAddr,
		UserAgent:   in.UserAgent,
		OccurredAt:  time.Now().UTC(),
	})

	s.publishDownloaded(artifact, in)

	nlog.Logger().Info().
		Str("artifact_id", artifact.ID).
		Str("token_prefix", maskToken(in.Signature)).
		Msg("statement downloaded")

	fileName := artifact.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("statement-%s.pdf", artifact.StatementDate)
	}

	return &types.DownloadResult{
		Content:     plaintext,
		FileName:    fileName,
		ContentType: artifact.ContentType,
		Size:        int64(len(plaintext)),
	}, nil
}

// validateToken 校验签名、查找令牌并在单次使用时原子消费.
// 返回 (令牌, 拒绝错误, 内部错误) 三元组.
func (s *StatementService) validateToken(ctx context.Context, in *DownloadInput) (*model.AccessToken, *types.DownloadError, error) {
	secLayer, err := getSecurity()
	if err != nil {
		return nil, nil, err
	}

	path := downloadPath(configs.GetConfig().Link.BasePath, in.ArtifactID)

	// 1. 重算签名. 不匹配时不触库, 直接拒绝.
	if !secLayer.signer.Verify("GET", path, in.Expires, in.Signature) {
		return nil, types.NewDenyError(types.DenyInvalidSignature), nil
	}

	// 2. 签名有效但必须已登记
	var token model.AccessToken

	err = s.dbc.GetDB().WithContext(ctx).First(&token, "signature = ?", in.Signature).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewDenyError(types.DenyUnknownToken), nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("lookup token: %w", err)
	}

	// 3. 已消费状态先于过期状态报告
	if token.SingleUse && token.Used {
		return nil, types.NewDenyError(types.DenyAlreadyUsed), nil
	}

	// 4. 过期判定以服务端时钟为准
	if token.Expired(time.Now()) {
		return nil, types.NewDenyError(types.DenyExpired), nil
	}

	// 5. 单次令牌条件消费
	if token.SingleUse {
		consumed, err := s.consumeToken(ctx, &token)
		if err != nil {
			return nil, nil, fmt.Errorf("consume token: %w", err)
		}

		if !consumed {
			return nil, types.NewDenyError(types.DenyAlreadyUsed), nil
		}
	}

	return &token, nil, nil
}

// loadArtifact 加载令牌对应的账单元数据.
func (s *StatementService) loadArtifact(ctx context.Context, in *DownloadInput, token *model.AccessToken) (*model.Artifact, error) {
	artifact, err := s.Get(ctx, token.ArtifactID)
	if errors.Is(err, ErrStatementNotFound) {
		return nil, s.recordMissing(in, "")
	}

	if err != nil {
		return nil, err
	}

	// 令牌与路径中的账单必须一致
	if artifact.ID != in.ArtifactID {
		s.recordDenied(in, types.DenyInvalidSignature)

		return nil, types.NewDenyError(types.DenyInvalidSignature)
	}

	return artifact, nil
}

// fetchAndDecrypt 读取密文对象并解密, 随后核对登记的 IV 与明文摘要.
func (s *StatementService) fetchAndDecrypt(ctx context.Context, in *DownloadInput, artifact *model.Artifact) ([]byte, error) {
	obj, err := s.s3c.GetObject(ctx, s.s3c.Bucket(), artifact.ObjectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.failDownload(in, artifact, fmt.Errorf("open ciphertext: %w", err))
	}
	defer obj.Close()

	blob, err := io.ReadAll(obj)
	if err != nil {
		// 元数据在而密文不在: 数据一致性问题, 区别于普通 404
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			nlog.Logger().Error().
				Str("artifact_id", artifact.ID).
				Str("object_key", artifact.ObjectKey).
				Msg("ciphertext object missing for registered statement")

			return nil, s.recordMissing(in, artifact.OwnerKey)
		}

		return nil, s.failDownload(in, artifact, fmt.Errorf("read ciphertext: %w", err))
	}

	secLayer, err := getSecurity()
	if err != nil {
		return nil, err
	}

	// 密文前缀的 IV 必须与登记值一致
	storedIV, err := decodeIV(artifact.IV)
	if err != nil || len(blob) < crypto.IVSize || !bytes.Equal(storedIV, blob[:crypto.IVSize]) {
		return nil, s.failDownload(in, artifact, fmt.Errorf("iv mismatch"))
	}

	plaintext, err := secLayer.engine.Decrypt(blob)
	if err != nil {
		return nil, s.failDownload(in, artifact, fmt.Errorf("decrypt: %w", err))
	}

	// 明文摘要必须与上传时登记的一致
	if !crypto.DigestEqual(crypto.SHA256Hex(plaintext), artifact.SHA256) {
		return nil, s.failDownload(in, artifact, fmt.Errorf("digest mismatch"))
	}

	return plaintext, nil
}

// failDownload 记录服务侧下载失败并返回 500 错误.
func (s *StatementService) failDownload(in *DownloadInput, artifact *model.Artifact, cause error) error {
	metrics.DownloadsTotal.WithLabelValues("error").Inc()

	Record(model.AuditEvent{
		Action:      model.ActionDownloadFailed,
		OwnerKey:    artifact.OwnerKey,
		ArtifactID:  artifact.ID,
		TokenPrefix: maskToken(in.Signature),
		RemoteAddr:  in.RemoteAddr,
		UserAgent:   in.UserAgent,
		OccurredAt:  time.Now().UTC(),
	})

	if s.mqc != nil && s.mqc.Publisher() != nil {
		if err := queue.PublishDownloadFailed(s.mqc.Publisher(), queue.DownloadFailedPayload{
			ArtifactID:  artifact.ID,
			TokenPrefix: maskToken(in.Signature),
			Error:       cause.Error(),
		}, queue.WithProducer("statvault")); err != nil {
			nlog.Logger().Error().Err(err).Msg("publish download.failed failed")
		}
	}

	nlog.Logger().Error().Err(cause).
		Str("artifact_id", artifact.ID).
		Str("token_prefix", maskToken(in.Signature)).
		Msg("download failed")

	return &types.DownloadError{Status: http.StatusInternalServerError, Msg: "download failed"}
}

// recordMissing 记录令牌有效但账单或密文已不存在的失败, 对外回应统一的 404.
func (s *StatementService) recordMissing(in *DownloadInput, ownerKey string) *types.DownloadError {
	metrics.DownloadsTotal.WithLabelValues("missing").Inc()

	Record(model.AuditEvent{
		Action:      model.ActionDownloadFailed,
		OwnerKey:    ownerKey,
		ArtifactID:  in.ArtifactID,
		TokenPrefix: maskToken(in.Signature),
		RemoteAddr:  in.RemoteAddr,
		UserAgent:   in.UserAgent,
		OccurredAt:  time.Now().UTC(),
		DetailsJSON: `{"reason":"missing"}`,
	})

	if s.mqc != nil && s.mqc.Publisher() != nil {
		if err := queue.PublishDownloadFailed(s.mqc.Publisher(), queue.DownloadFailedPayload{
			ArtifactID:  in.ArtifactID,
			TokenPrefix: maskToken(in.Signature),
			Error:       "statement missing",
		}, queue.WithProducer("statvault")); err != nil {
			nlog.Logger().Error().Err(err).Msg("publish download.failed failed")
		}
	}

	return &types.DownloadError{Status: http.StatusNotFound, Msg: "statement not found"}
}

// recordDenied 记录拒绝事件并发布安全告警.
func (s *StatementService) recordDenied(in *DownloadInput, reason types.DenyReason) {
	metrics.DownloadsTotal.WithLabelValues("denied").Inc()

	Record(model.AuditEvent{
		Action:      model.ActionDownloadDenied,
		ArtifactID:  in.ArtifactID,
		TokenPrefix: maskToken(in.Signature),
		RemoteAddr:  in.RemoteAddr,
		UserAgent:   in.UserAgent,
		OccurredAt:  time.Now().UTC(),
		DetailsJSON: fmt.Sprintf(`{"reason":%q}`, reason),
	})

	if s.mqc != nil && s.mqc.Publisher() != nil {
		if err := queue.PublishLinkDenied(s.mqc.Publisher(), queue.LinkDeniedPayload{
			Reason:      string(reason),
			TokenPrefix: maskToken(in.Signature),
			RemoteAddr:  in.RemoteAddr,
		}, queue.WithProducer("statvault")); err != nil {
			nlog.Logger().Error().Err(err).Msg("publish link.denied failed")
		}
	}

	nlog.Logger().Warn().
		Str("reason", string(reason)).
		Str("token_prefix", maskToken(in.Signature)).
		Str("remote_addr", in.RemoteAddr).
		Msg("download denied")
}

// publishDownloaded 发布下载完成事件.
func (s *StatementService) publishDownloaded(a *model.Artifact, in *DownloadInput) {
	if s.mqc == nil || s.mqc.Publisher() == nil {
		return
	}

	err := queue.PublishStatementDownloaded(s.mqc.Publisher(), queue.StatementDownloadedPayload{
		ArtifactID:  a.ID,
		OwnerKey:    a.OwnerKey,
		TokenPrefix: maskToken(in.Signature),
		Size:        a.Size,
	}, queue.WithProducer("statvault"))
	if err != nil {
		nlog.Logger().Error().Err(err).Str("artifact_id", a.ID).Msg("publish statement.downloaded failed")
	}
}
