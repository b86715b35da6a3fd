package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/statvault/pkg/configs"
)

const userContextKey = "auth.user"

// AuthMiddleware 从反向代理注入的请求头中提取用户标识.
//
// 服务部署在 oauth2-proxy 等认证网关之后, 网关完成认证后通过请求头
// 传递用户身份, 本中间件按配置顺序读取首个非空请求头作为用户标识.
func AuthMiddleware(cfg *configs.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || isSkippedPath(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		user := ""
		for _, h := range cfg.UserHeaders {
			if v := strings.TrimSpace(c.GetHeader(h)); v != "" {
				user = v
				break
			}
		}

		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// GetUser 获取当前请求的用户标识, 未认证时返回空字符串.
func GetUser(c *gin.Context) string {
	if v, ok := c.Get(userContextKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func isSkippedPath(path string, skipPaths []string) bool {
	for _, p := range skipPaths {
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
