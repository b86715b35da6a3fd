package service

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeisme/statvault/pkg/configs"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/storage/db"
)

// testMasterKey 32字节hex, 仅用于测试.
const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// setupTest 写入测试配置、初始化安全层并返回内存数据库客户端.
func setupTest(t *testing.T) *db.Client {
	t.Helper()

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
server:
  reload_config: false
crypto:
  master_key: %q
link:
  secret: test-link-secret
  base_path: /api/v1/download
  default_ttl: 15m
  single_use: true
`, testMasterKey)

	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o600))
	require.NoError(t, configs.InitConfig(cfgFile))
	require.NoError(t, InitSecurity(configs.GetConfig()))

	return newTestDB(t)
}

// newTestDB 打开内存 SQLite 并建表.
func newTestDB(t *testing.T) *db.Client {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// 内存库所有连接必须复用同一个, 否则各连接看到的是不同的库
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(&model.Artifact{}, &model.AccessToken{}, &model.AuditEvent{}))

	t.Cleanup(func() { _ = sqlDB.Close() })

	return &db.Client{DB: gdb}
}

// seedArtifact 直接插入一条账单元数据.
func seedArtifact(t *testing.T, dbc *db.Client, ownerKey, date string) *model.Artifact {
	t.Helper()

	artifact := model.Artifact{
		ID:            NewID(),
		OwnerKey:      ownerKey,
		StatementDate: date,
		ObjectKey:     "statements/test/object.bin",
		IV:            "AAAAAAAAAAAAAAAA",
		SHA256:        "deadbeef",
		Size:          1024,
		ContentType:   "application/pdf",
	}
	require.NoError(t, dbc.GetDB().Create(&artifact).Error)

	return &artifact
}

func TestNewID(t *testing.T) {
	seen := make(map[string]struct{})

	for range 100 {
		id := NewID()
		require.Len(t, id, 26)

		_, dup := seen[id]
		require.False(t, dup, "ids must be unique")
		seen[id] = struct{}{}
	}
}

func TestMaskToken(t *testing.T) {
	setupTest(t)

	masked := maskToken("abcdefghijklmnop")
	require.Equal(t, "abcdefgh...", masked)

	// 短签名原样返回, 不会越界
	require.Equal(t, "abc", maskToken("abc"))
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	token := model.AccessToken{ExpiresAt: now.Add(time.Minute)}
	require.False(t, token.Expired(now))

	token.ExpiresAt = now.Add(-time.Minute)
	require.True(t, token.Expired(now))

	// 恰好到期视为已过期
	token.ExpiresAt = now
	require.True(t, token.Expired(now))
}
