package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/statvault/pkg/internal/handle"
)

// RegisterDownloadRoutes 注册签名下载路由, 该路由不经过网关认证,
// 访问控制完全依赖 URL 中的 HMAC 签名.
func RegisterDownloadRoutes(g *gin.RouterGroup) {
	g.GET("/download/:id", handle.DownloadStatement)
}
