package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	ctxPkg "github.com/yeisme/statvault/pkg/context"
	"github.com/yeisme/statvault/pkg/internal/crypto"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/storage/db"
	"github.com/yeisme/statvault/pkg/internal/storage/mq"
	"github.com/yeisme/statvault/pkg/internal/storage/s3"
	"github.com/yeisme/statvault/pkg/internal/types"
	nlog "github.com/yeisme/statvault/pkg/log"
	"github.com/yeisme/statvault/pkg/metrics"
	"github.com/yeisme/statvault/pkg/queue"
	"github.com/yeisme/statvault/pkg/rule"
)

const (
	// pdfContentType 当前唯一接受的内容类型.
	pdfContentType = "application/pdf"
	// maxStatementSize 单份账单大小上限.
	maxStatementSize = 32 << 20 // 32 MiB
)

var (
	// ErrDuplicateStatement 同一账户同一账单日已存在.
	ErrDuplicateStatement = errors.New("statement already exists for this owner and date")
	// ErrInvalidContent 内容类型或文件结构不符合要求.
	ErrInvalidContent = errors.New("invalid statement content")
	// ErrDigestMismatch 声明的摘要与实际内容不符.
	ErrDigestMismatch = errors.New("content digest mismatch")
	// ErrStatementNotFound 账单不存在.
	ErrStatementNotFound = errors.New("statement not found")
)

// pdfMagic PDF 文件头.
var pdfMagic = []byte("%PDF")

// StatementService 账单加密入库与查询.
type StatementService struct {
	s3c *s3.Client
	dbc *db.Client
	mqc *mq.Client
}

// NewStatementService 从 context 取出存储客户端并创建服务.
func NewStatementService(c context.Context) *StatementService {
	svc := &StatementService{
		s3c: ctxPkg.GetS3Client(c),
		dbc: ctxPkg.GetDBClient(c),
		mqc: ctxPkg.GetMQClient(c),
	}

	if svc.dbc == nil || svc.s3c == nil {
		nlog.Logger().Warn().Msg("storage clients not fully initialized, StatementService features limited")
	}

	return svc
}

// UploadInput 上传请求的全部输入.
type UploadInput struct {
	OwnerID        string
	StatementDate  string
	FileName       string
	ContentType    string
	Content        []byte
	DeclaredSHA256 string // 来自 X-Content-SHA256 头, 必须提供
	UploadedBy     string
	RemoteAddr     string
	UserAgent      string
}

// Upload 校验、加密并登记一份账单.
// 流程: 表单校验 -> 内容校验 -> 摘要核对 -> 唯一性检查 -> 加密 -> 写对象 -> 落元数据.
func (s *StatementService) Upload(ctx context.Context, in *UploadInput) (*types.UploadStatementResponse, error) {
	form := types.UploadStatementForm{OwnerID: in.OwnerID, StatementDate: in.StatementDate}
	if err := rule.ValidateStruct(form); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, err)
	}

	if err := validateContent(in.ContentType, in.Content); err != nil {
		return nil, err
	}

	// 调用方声明的摘要是入库前置条件, 缺失或格式不合法都按输入错误拒绝
	declared := strings.ToLower(strings.TrimSpace(in.DeclaredSHA256))
	if !validDigestHex(declared) {
		return nil, fmt.Errorf("%w: X-Content-SHA256 must be 64 hex characters", ErrInvalidContent)
	}

	digest := crypto.SHA256Hex(in.Content)
	if !crypto.DigestEqual(declared, digest) {
		return nil, ErrDigestMismatch
	}

	ownerKey := crypto.OwnerKey(in.OwnerID)

	// 同一账户同一账单日只保留一份
	var count int64
	if err := s.dbc.GetDB().WithContext(ctx).Model(&model.Artifact{}).
		Where("owner_key = ? AND statement_date = ?", ownerKey, in.StatementDate).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}

	if count > 0 {
		return nil, ErrDuplicateStatement
	}

	secLayer, err := getSecurity()
	if err != nil {
		return nil, err
	}

	blob, iv, err := secLayer.engine.Encrypt(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt statement: %w", err)
	}

	id := NewID()
	objectKey := buildObjectKey(ownerKey, id)

	// 密文对象先落桶
	_, err = s.s3c.PutObject(ctx, s.s3c.Bucket(), objectKey,
		bytes.NewReader(blob), int64(len(blob)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return nil, fmt.Errorf("store ciphertext: %w", err)
	}

	artifact := model.Artifact{
		ID:            id,
		OwnerKey:      ownerKey,
		StatementDate: in.StatementDate,
		FileName:      sanitizeFileName(in.FileName),
		ObjectKey:     objectKey,
		IV:            encodeIV(iv),
		SHA256:        digest,
		Size:          int64(len(in.Content)),
		ContentType:   pdfContentType,
		UploadedBy:    in.UploadedBy,
	}

	if err := s.dbc.GetDB().WithContext(ctx).Create(&artifact).Error; err != nil {
		// 元数据失败时回收密文对象, 避免孤儿
		if rmErr := s.s3c.RemoveObject(ctx, s.s3c.Bucket(), objectKey, minio.RemoveObjectOptions{}); rmErr != nil {
			nlog.Logger().Error().Err(rmErr).Str("object_key", objectKey).Msg("failed to remove orphan ciphertext")
		}

		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateStatement
		}

		return nil, fmt.Errorf("persist metadata: %w", err)
	}

	metrics.UploadsTotal.Inc()

	Record(model.AuditEvent{
		Action:     model.ActionStatementStored,
		OwnerKey:   ownerKey,
		ArtifactID: id,
		Actor:      in.UploadedBy,
		RemoteAddr: in.RemoteAddr,
		UserAgent:  in.UserAgent,
		OccurredAt: time.Now().UTC(),
	})

	s.publishStored(&artifact)

	nlog.Logger().Info().
		Str("artifact_id", id).
		Str("owner_key", ownerKey).
		Int64("size", artifact.Size).
		Msg("statement stored")

	return &types.UploadStatementResponse{
		ArtifactID:    id,
		StatementDate: in.StatementDate,
		Size:          artifact.Size,
		SHA256:        digest,
		CreatedAt:     artifact.CreatedAt,
	}, nil
}

// List 按条件查询账单元数据.
func (s *StatementService) List(ctx context.Context, req *types.ListStatementsRequest) (*types.ListStatementsResponse, error) {
	if err := rule.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, err)
	}

	// 与审计查询相同的页大小夹取
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	if limit > maxPageSize {
		limit = maxPageSize
	}

	dbx := s.dbc.GetDB().WithContext(ctx).Model(&model.Artifact{})
	if req.OwnerID != "" {
		dbx = dbx.Where("owner_key = ?", crypto.OwnerKey(req.OwnerID))
	}

	var total int64
	if err := dbx.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []model.Artifact
	if err := dbx.Order("created_at DESC").Offset(req.Offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]types.StatementItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, types.StatementItem{
			ArtifactID:    r.ID,
			OwnerKey:      r.OwnerKey,
			StatementDate: r.StatementDate,
			FileName:      r.FileName,
			Size:          r.Size,
			SHA256:        r.SHA256,
			ContentType:   r.ContentType,
			CreatedAt:     r.CreatedAt,
		})
	}

	return &types.ListStatementsResponse{Total: total, Items: items}, nil
}

// Get 按 ID 取单条账单元数据.
func (s *StatementService) Get(ctx context.Context, artifactID string) (*model.Artifact, error) {
	var artifact model.Artifact

	err := s.dbc.GetDB().WithContext(ctx).First(&artifact, "id = ?", artifactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStatementNotFound
	}

	if err != nil {
		return nil, err
	}

	return &artifact, nil
}

// validateContent 检查内容类型、大小与文件头.
func validateContent(contentType string, content []byte) error {
	if len(content) == 0 {
		return fmt.Errorf("%w: empty body", ErrInvalidContent)
	}

	if len(content) > maxStatementSize {
		return fmt.Errorf("%w: exceeds size limit", ErrInvalidContent)
	}

	// Content-Type 可能带 charset 等参数
	mt, _, _ := strings.Cut(contentType, ";")
	if strings.ToLower(strings.TrimSpace(mt)) != pdfContentType {
		return fmt.Errorf("%w: unsupported content type %q", ErrInvalidContent, contentType)
	}

	if !bytes.HasPrefix(content, pdfMagic) {
		return fmt.Errorf("%w: missing PDF header", ErrInvalidContent)
	}

	return nil
}

// publishStored 发布入库事件, MQ 未启用时静默跳过.
func (s *StatementService) publishStored(a *model.Artifact) {
	if s.mqc == nil || s.mqc.Publisher() == nil {
		return
	}

	err := queue.PublishStatementStored(s.mqc.Publisher(), queue.StatementStoredPayload{
		ArtifactID:    a.ID,
		OwnerKey:      a.OwnerKey,
		StatementDate: a.StatementDate,
		ObjectKey:     a.ObjectKey,
		Size:          a.Size,
		SHA256:        a.SHA256,
	}, queue.WithProducer("statvault"))
	if err != nil {
		nlog.Logger().Error().Err(err).Str("artifact_id", a.ID).Msg("publish statement.stored failed")
	}
}

// buildObjectKey 密文对象键: 按 ownerKey 前缀分片, 避免单目录过大.
func buildObjectKey(ownerKey, id string) string {
	return fmt.Sprintf("statements/%s/%s/%s.bin", ownerKey[:2], ownerKey, id)
}

// validDigestHex 声明摘要必须是小写后的 64 位十六进制.
func validDigestHex(s string) bool {
	if len(s) != 64 {
		return false
	}

	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}

// sanitizeFileName 去掉路径部分, 文件名只作展示用.
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}

	return name
}

// encodeIV IV 以 base64 文本入库.
func encodeIV(iv []byte) string {
	return base64.StdEncoding.EncodeToString(iv)
}

// decodeIV 从库中恢复 IV 字节.
func decodeIV(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
