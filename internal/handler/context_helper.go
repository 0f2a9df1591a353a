package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/service"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/response"
)

// sendFile streams a rendered export as a download.
func sendFile(c *gin.Context, file *service.ExportFile) {
	if file == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export produced no file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func invalidPayload(c *gin.Context, err error, message string) {
	response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
}
