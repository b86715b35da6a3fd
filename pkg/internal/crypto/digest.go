package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex 计算内容摘要的十六进制表示.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// OwnerKey 把明文账户标识映射为稳定的哈希键, 日志、索引与事件负载只使用该键.
func OwnerKey(ownerID string) string {
	return SHA256Hex([]byte(ownerID))
}

// DigestEqual 常数时间比较两个十六进制摘要.
func DigestEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
