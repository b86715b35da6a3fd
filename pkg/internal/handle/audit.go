package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/statvault/pkg/internal/service"
	"github.com/yeisme/statvault/pkg/internal/types"
	"github.com/yeisme/statvault/pkg/log"
)

// ListAudit 查询审计事件, 按发生时间倒序.
func ListAudit(c *gin.Context) {
	l := log.Logger()

	var req types.ListAuditRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	svc := service.NewAuditService(c.Request.Context())

	resp, err := svc.List(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		l.Error().Err(err).Msg("list audit events failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})

		return
	}

	c.JSON(http.StatusOK, resp)
}
