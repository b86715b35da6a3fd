package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/statvault/pkg/context"
	"github.com/yeisme/statvault/pkg/internal/storage"
)

// StorageMiddleware 将存储管理器注入到请求context中.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithStorageManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
