// Package crypto 实现账单内容的落盘加密: AES-256-GCM, 每次加密独立随机IV.
// 密文布局: 12字节IV || GCM密文(含16字节认证标签). 任何篡改在解密时整体失败.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// IVSize GCM 标准 nonce 长度.
	IVSize = 12
	// KeySize AES-256 密钥长度.
	KeySize = 32
)

// ErrCiphertextTooShort 密文长度不足以包含IV与标签.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Engine 持有主密钥的加解密引擎.
type Engine struct {
	aead cipher.AEAD
}

// NewEngine 用32字节主密钥创建引擎.
func NewEngine(key []byte) (*Engine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Engine{aead: aead}, nil
}

// Encrypt 加密明文, 返回 IV||密文+标签 以及本次使用的IV.
func (e *Engine) Encrypt(plaintext []byte) (blob, iv []byte, err error) {
	iv = make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("generate iv: %w", err)
	}

	// Seal 把密文追加到 IV 之后, 得到最终落盘布局
	blob = e.aead.Seal(iv[:len(iv):len(iv)], iv, plaintext, nil)

	return blob, iv, nil
}

// Decrypt 解密 IV||密文+标签 布局的密文. 标签校验失败时不返回任何明文.
func (e *Engine) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < IVSize+e.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	iv, ciphertext := blob[:IVSize], blob[IVSize:]

	plaintext, err := e.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	return plaintext, nil
}
