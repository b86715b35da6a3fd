// Package service 实现账单存储、签名链接与审计的业务逻辑.
package service

import (
	crand "crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/yeisme/statvault/pkg/configs"
	"github.com/yeisme/statvault/pkg/internal/crypto"
)

// 全局单例的 ULID 熵源，使用单调递增策略，确保同一毫秒内生成的 ULID 具有排序稳定性。
var ulidEntropy = ulid.Monotonic(crand.Reader, 0)

var ulidMu sync.Mutex

// NewID 生成一个新的 ULID 字符串.
func NewID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// security 持有加解密引擎与链接签名器, 进程内只初始化一次.
type security struct {
	engine *crypto.Engine
	signer *crypto.Signer
}

var (
	sec     *security
	secOnce sync.Once
)

// InitSecurity 从配置加载主密钥与签名密钥. 必须在处理任何请求前调用.
func InitSecurity(cfg *configs.AppConfig) error {
	var err error

	secOnce.Do(func() {
		key, e := cfg.Crypto.LoadMasterKey()
		if e != nil {
			err = fmt.Errorf("load master key: %w", e)

			return
		}

		engine, e := crypto.NewEngine(key)
		if e != nil {
			err = fmt.Errorf("init crypto engine: %w", e)

			return
		}

		if cfg.Link.Secret == "" {
			err = fmt.Errorf("link secret is not configured")

			return
		}

		sec = &security{
			engine: engine,
			signer: crypto.NewSigner([]byte(cfg.Link.Secret)),
		}
	})

	return err
}

// getSecurity 返回已初始化的安全层.
func getSecurity() (*security, error) {
	if sec == nil {
		return nil, fmt.Errorf("security layer not initialized")
	}

	return sec, nil
}

// maskToken 截取签名前缀用于日志与审计, 完整签名绝不外泄.
func maskToken(sig string) string {
	n := configs.GetConfig().Link.TokenMaskLen
	if n <= 0 {
		n = 8
	}

	if len(sig) <= n {
		return sig
	}

	return sig[:n] + "..."
}
