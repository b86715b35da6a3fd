package configs

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// MasterKeySize AES-256要求的主密钥长度(字节).
const MasterKeySize = 32

// CryptoConfig 落盘加密配置.
//
// 主密钥二选一: master_key 直接给出hex编码的密钥,
// master_key_file 指向存放hex密钥的文件(优先级更高, 便于挂载secret).
type CryptoConfig struct {
	MasterKey     string `mapstructure:"master_key"`      // hex编码的32字节主密钥
	MasterKeyFile string `mapstructure:"master_key_file"` // 主密钥文件路径
}

// LoadMasterKey 解析主密钥并校验长度.
func (c *CryptoConfig) LoadMasterKey() ([]byte, error) {
	raw := c.MasterKey
	if c.MasterKeyFile != "" {
		data, err := os.ReadFile(c.MasterKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read master key file: %w", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return nil, fmt.Errorf("master key is not configured")
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(key))
	}
	return key, nil
}

// setDefaults 设置加密配置的默认值.
func (c *CryptoConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("crypto.master_key", "")
	v.SetDefault("crypto.master_key_file", "")
}
