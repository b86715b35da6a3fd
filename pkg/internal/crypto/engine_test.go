package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	e, err := NewEngine(key)
	require.NoError(t, err)

	return e
}

// TestEngineRoundTrip 加密再解密得到原文.
func TestEngineRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	plaintext := []byte("%PDF-1.7 statement body")

	blob, iv, err := e.Encrypt(plaintext)
	require.NoError(t, err)
	assert.Len(t, iv, IVSize)
	assert.Equal(t, iv, blob[:IVSize])
	// IV + 密文 + 16字节标签
	assert.Equal(t, len(plaintext)+IVSize+16, len(blob))

	got, err := e.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

// TestEngineUniqueIV 相同明文两次加密产生不同IV与密文.
func TestEngineUniqueIV(t *testing.T) {
	e := newTestEngine(t)
	plaintext := []byte("same content")

	blob1, iv1, err := e.Encrypt(plaintext)
	require.NoError(t, err)

	blob2, iv2, err := e.Encrypt(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
	assert.NotEqual(t, blob1, blob2)
}

// TestEngineTamperFails 篡改密文任何字节后解密失败且不返回明文.
func TestEngineTamperFails(t *testing.T) {
	e := newTestEngine(t)

	blob, _, err := e.Encrypt([]byte("sensitive"))
	require.NoError(t, err)

	for _, idx := range []int{0, IVSize, len(blob) - 1} {
		tampered := bytes.Clone(blob)
		tampered[idx] ^= 0x01

		got, err := e.Decrypt(tampered)
		assert.Error(t, err, "flipped byte at %d", idx)
		assert.Nil(t, got)
	}
}

// TestEngineWrongKey 错误密钥解密失败.
func TestEngineWrongKey(t *testing.T) {
	e1 := newTestEngine(t)
	e2 := newTestEngine(t)

	blob, _, err := e1.Encrypt([]byte("sensitive"))
	require.NoError(t, err)

	_, err = e2.Decrypt(blob)
	assert.Error(t, err)
}

// TestEngineTruncated 过短密文直接拒绝.
func TestEngineTruncated(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = e.Decrypt(nil)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

// TestEngineKeySize 非32字节密钥被拒绝.
func TestEngineKeySize(t *testing.T) {
	_, err := NewEngine(make([]byte, 16))
	assert.Error(t, err)
}

// TestSignerVerify 签名可被校验, 任何参数变化都导致校验失败.
func TestSignerVerify(t *testing.T) {
	s := NewSigner([]byte("test-secret"))

	sig := s.Sign("GET", "/api/v1/download/01ABC", 1700000000)
	assert.True(t, s.Verify("GET", "/api/v1/download/01ABC", 1700000000, sig))

	assert.False(t, s.Verify("POST", "/api/v1/download/01ABC", 1700000000, sig))
	assert.False(t, s.Verify("GET", "/api/v1/download/01XYZ", 1700000000, sig))
	assert.False(t, s.Verify("GET", "/api/v1/download/01ABC", 1700000001, sig))
	assert.False(t, s.Verify("GET", "/api/v1/download/01ABC", 1700000000, sig+"x"))
}

// TestSignerDifferentSecret 不同密钥签名互不认可.
func TestSignerDifferentSecret(t *testing.T) {
	s1 := NewSigner([]byte("secret-a"))
	s2 := NewSigner([]byte("secret-b"))

	sig := s1.Sign("GET", "/p", 1)
	assert.False(t, s2.Verify("GET", "/p", 1, sig))
}

// TestOwnerKeyStable 同一账户映射到同一键, 不同账户不同键.
func TestOwnerKeyStable(t *testing.T) {
	assert.Equal(t, OwnerKey("ACCT0001"), OwnerKey("ACCT0001"))
	assert.NotEqual(t, OwnerKey("ACCT0001"), OwnerKey("ACCT0002"))
	assert.Len(t, OwnerKey("ACCT0001"), 64)
}
