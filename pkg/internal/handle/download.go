package handle

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/statvault/pkg/internal/service"
	"github.com/yeisme/statvault/pkg/internal/types"
	"github.com/yeisme/statvault/pkg/log"
)

// DownloadStatement 校验签名链接并返回解密后的账单内容.
// 查询参数: expires (unix秒), signature. 响应禁止缓存.
func DownloadStatement(c *gin.Context) {
	l := log.Logger()

	artifactID := c.Param("id")
	signature := c.Query("signature")

	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil || artifactID == "" || signature == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})

		return
	}

	svc := service.NewStatementService(c.Request.Context())

	result, err := svc.Download(c.Request.Context(), &service.DownloadInput{
		ArtifactID: artifactID,
		Expires:    expires,
		Signature:  signature,
		RemoteAddr: c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		var dlErr *types.DownloadError
		if errors.As(err, &dlErr) {
			c.JSON(dlErr.Status, gin.H{"error": dlErr.Msg})

			return
		}

		l.Error().Err(err).Str("artifact_id", artifactID).Msg("download failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})

		return
	}

	// 明文只经内存中转, 禁止任何中间层缓存
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
