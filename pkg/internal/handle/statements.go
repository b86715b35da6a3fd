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

// UploadStatement 接收 multipart 表单上传的账单, 加密后入库.
// 表单字段: owner_id, statement_date, file. 头 X-Content-SHA256 必须携带明文摘要.
func UploadStatement(c *gin.Context) {
	l := log.Logger()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})

		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open uploaded file"})

		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})

		return
	}

	contentType := fileHeader.Header.Get("Content-Type")

	svc := service.NewStatementService(c.Request.Context())

	resp, err := svc.Upload(c.Request.Context(), &service.UploadInput{
		OwnerID:        c.PostForm("owner_id"),
		StatementDate:  c.PostForm("statement_date"),
		FileName:       fileHeader.Filename,
		ContentType:    contentType,
		Content:        content,
		DeclaredSHA256: c.GetHeader("X-Content-SHA256"),
		UploadedBy:     middleware.GetUser(c),
		RemoteAddr:     c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateStatement):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidContent), errors.Is(err, service.ErrDigestMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			l.Error().Err(err).Msg("upload statement failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}

		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListStatements 查询账单元数据列表.
func ListStatements(c *gin.Context) {
	l := log.Logger()

	var req types.ListStatementsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	svc := service.NewStatementService(c.Request.Context())

	resp, err := svc.List(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		l.Error().Err(err).Msg("list statements failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})

		return
	}

	c.JSON(http.StatusOK, resp)
}
