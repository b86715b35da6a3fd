package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/statvault/pkg/internal/handle"
)

// RegisterStatementsRoutes 注册账单相关路由.
func RegisterStatementsRoutes(g *gin.RouterGroup) {
	stmtRoutes := g.Group("/statements")
	{
		// 上传账单（加密后落库）
		stmtRoutes.POST("", handle.UploadStatement)
		// 按账户查询账单列表
		stmtRoutes.GET("", handle.ListStatements)

		// 单个账单操作
		singleGroup := stmtRoutes.Group("/:id")
		{
			// 签发带签名的下载链接
			singleGroup.POST("/links", handle.IssueLink)
		}
	}
}
