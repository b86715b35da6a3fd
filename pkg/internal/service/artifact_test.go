package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/statvault/pkg/internal/crypto"
	"github.com/yeisme/statvault/pkg/internal/types"
)

func TestValidateContent(t *testing.T) {
	pdf := []byte("%PDF-1.7\nfake statement body")

	tests := []struct {
		name        string
		contentType string
		content     []byte
		wantErr     bool
	}{
		{"valid pdf", "application/pdf", pdf, false},
		{"content type with charset", "application/PDF; charset=utf-8", pdf, false},
		{"empty body", "application/pdf", nil, true},
		{"wrong content type", "text/plain", pdf, true},
		{"missing pdf header", "application/pdf", []byte("not a pdf"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContent(tt.contentType, tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidContent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateContentSizeLimit(t *testing.T) {
	big := make([]byte, maxStatementSize+1)
	copy(big, pdfMagic)

	assert.ErrorIs(t, validateContent("application/pdf", big), ErrInvalidContent)
}

func TestBuildObjectKey(t *testing.T) {
	ownerKey := crypto.OwnerKey("ACCT12345678")
	key := buildObjectKey(ownerKey, "01ARZ3NDEKTSV4RRFFQ69G5FAV")

	assert.Equal(t, "statements/"+ownerKey[:2]+"/"+ownerKey+"/01ARZ3NDEKTSV4RRFFQ69G5FAV.bin", key)
}

func TestUploadRejectsInvalidOwner(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	_, err := svc.Upload(context.Background(), &UploadInput{
		OwnerID:       "bad owner!",
		StatementDate: "2024-06-30",
		ContentType:   "application/pdf",
		Content:       []byte("%PDF-1.7 body"),
	})
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestUploadRejectsDigestMismatch(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	_, err := svc.Upload(context.Background(), &UploadInput{
		OwnerID:        "ACCT12345678",
		StatementDate:  "2024-06-30",
		ContentType:    "application/pdf",
		Content:        []byte("%PDF-1.7 body"),
		DeclaredSHA256: "0000000000000000000000000000000000000000000000000000000000000000",
	})
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestUploadRequiresDeclaredDigest(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	content := []byte("%PDF-1.7 body")

	// 缺失与格式不合法的声明摘要都在加密入库前被拒
	for _, declared := range []string{"", "not-hex", "abc123"} {
		_, err := svc.Upload(context.Background(), &UploadInput{
			OwnerID:        "ACCT12345678",
			StatementDate:  "2024-06-30",
			ContentType:    "application/pdf",
			Content:        content,
			DeclaredSHA256: declared,
		})
		assert.ErrorIs(t, err, ErrInvalidContent)
	}
}

func TestValidDigestHex(t *testing.T) {
	content := []byte("%PDF-1.7 body")

	assert.True(t, validDigestHex(crypto.SHA256Hex(content)))
	assert.False(t, validDigestHex(""))
	assert.False(t, validDigestHex("abc123"))
	assert.False(t, validDigestHex(strings.Repeat("g", 64)))
	assert.False(t, validDigestHex(strings.Repeat("a", 63)))
}

func TestUploadNormalizesDigestCase(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	// 大写十六进制在校验前被归一化: 不匹配的摘要报 mismatch 而非格式错误
	_, err := svc.Upload(context.Background(), &UploadInput{
		OwnerID:        "ACCT12345678",
		StatementDate:  "2024-06-30",
		ContentType:    "application/pdf",
		Content:        []byte("%PDF-1.7 body"),
		DeclaredSHA256: strings.ToUpper(strings.Repeat("0a", 32)),
	})
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestUploadRejectsDuplicate(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	ownerID := "ACCT12345678"
	seedArtifact(t, dbc, crypto.OwnerKey(ownerID), "2024-06-30")

	content := []byte("%PDF-1.7 body")

	_, err := svc.Upload(context.Background(), &UploadInput{
		OwnerID:        ownerID,
		StatementDate:  "2024-06-30",
		ContentType:    "application/pdf",
		Content:        content,
		DeclaredSHA256: crypto.SHA256Hex(content),
	})
	assert.ErrorIs(t, err, ErrDuplicateStatement)
}

func TestListClampsLimit(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	resp, err := svc.List(context.Background(), &types.ListStatementsRequest{Limit: 10000})
	require.NoError(t, err)
	assert.EqualValues(t, 0, resp.Total)
	assert.Empty(t, resp.Items)
}

func TestListFiltersByOwner(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	ownerA := "ACCT12345678"
	ownerB := "ACCT87654321"
	seedArtifact(t, dbc, crypto.OwnerKey(ownerA), "2024-05-31")
	seedArtifact(t, dbc, crypto.OwnerKey(ownerA), "2024-06-30")
	seedArtifact(t, dbc, crypto.OwnerKey(ownerB), "2024-06-30")

	resp, err := svc.List(context.Background(), &types.ListStatementsRequest{OwnerID: ownerA})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Total)
	assert.Len(t, resp.Items, 2)

	for _, item := range resp.Items {
		assert.Equal(t, crypto.OwnerKey(ownerA), item.OwnerKey)
	}

	// 无过滤条件时返回全部
	all, err := svc.List(context.Background(), &types.ListStatementsRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)
}

func TestGetMissingStatement(t *testing.T) {
	dbc := setupTest(t)
	svc := &StatementService{dbc: dbc}

	_, err := svc.Get(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.ErrorIs(t, err, ErrStatementNotFound)
}
