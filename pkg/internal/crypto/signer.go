package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Signer 对下载路径签名. 被签名的串为 method|path|expiresUnix,
// 签名为 base64url(HMAC-SHA256) 无填充, 可直接放入查询参数.
type Signer struct {
	secret []byte
}

// NewSigner 用签名密钥创建 Signer.
func NewSigner(secret []byte) *Signer {
	key := make([]byte, len(secret))
	copy(key, secret)

	return &Signer{secret: key}
}

// Sign 计算指定请求的签名.
func (s *Signer) Sign(method, path string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%d", method, path, expiresUnix)

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify 常数时间校验签名.
func (s *Signer) Verify(method, path string, expiresUnix int64, signature string) bool {
	expected := s.Sign(method, path, expiresUnix)

	return hmac.Equal([]byte(expected), []byte(signature))
}
