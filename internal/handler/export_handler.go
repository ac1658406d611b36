package handler

import (
	"context"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	"github.com/Kshitij83/skillcy/internal/service"
	"github.com/Kshitij83/skillcy/pkg/response"
)

type exportSharer interface {
	ShareLibrary(ctx context.Context, actor policy.Actor, format string) (*models.ExportLink, error)
	OpenShared(ctx context.Context, token string) (*service.ExportFile, error)
}

// ExportHandler serves stored library exports behind signed links.
type ExportHandler struct {
	service      exportSharer
	downloadPath string
}

// NewExportHandler constructs an ExportHandler. downloadPath is the public route prefix that
// tokens are appended to, e.g. /api/v1/exports.
func NewExportHandler(svc exportSharer, downloadPath string) *ExportHandler {
	return &ExportHandler{service: svc, downloadPath: strings.TrimRight(downloadPath, "/")}
}

// Share godoc
// @Summary Create a shareable library export
// @Description Stores the export and returns a download link that expires
// @Tags Library
// @Produce json
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /me/library/exports [post]
func (h *ExportHandler) Share(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	link, err := h.service.ShareLibrary(c.Request.Context(), actor, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	link.URL = h.downloadPath + "/" + url.PathEscape(link.Token)
	response.Created(c, link)
}

// Download godoc
// @Summary Download a shared export
// @Tags Library
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, err := h.service.OpenShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, no-store")
	response.File(c, file.Filename, file.ContentType, file.Payload)
}
