package handle

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/statvault/pkg/internal/service"
	"github.com/yeisme/statvault/pkg/internal/types"
	"github.com/yeisme/statvault/pkg/log"
	"github.com/yeisme/statvault/pkg/middleware"
)

// IssueLink 为指定账单签发签名下载链接. 请求体可为空, 此时使用服务端默认TTL与单次使用策略.
func IssueLink(c *gin.Context) {
	l := log.Logger()

	artifactID := c.Param("id")
	if artifactID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing statement id"})

		return
	}

	var req types.IssueLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	svc := service.NewStatementService(c.Request.Context())

	resp, err := svc.IssueLink(c.Request.Context(), artifactID, &req, middleware.GetUser(c), c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStatementNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			l.Error().Err(err).Str("artifact_id", artifactID).Msg("issue link failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}

		return
	}

	c.JSON(http.StatusOK, resp)
}
