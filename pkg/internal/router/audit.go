package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/statvault/pkg/internal/handle"
)

// RegisterAuditRoutes 注册审计事件查询路由.
func RegisterAuditRoutes(g *gin.RouterGroup) {
	g.GET("/audit", handle.ListAudit)
}
