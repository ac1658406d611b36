package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	"github.com/Kshitij83/skillcy/internal/service"
	"github.com/Kshitij83/skillcy/pkg/response"
)

type libraryService interface {
	Add(ctx context.Context, actor policy.Actor, req models.AddToLibraryRequest) (*models.UserCourse, error)
	SetCompleted(ctx context.Context, actor policy.Actor, courseID string, req models.UpdateLibraryEntryRequest) (*models.UserCourse, error)
	Remove(ctx context.Context, actor policy.Actor, courseID string) error
	List(ctx context.Context, actor policy.Actor, filter models.LibraryFilter) ([]models.LibraryEntry, *models.Pagination, error)
}

type libraryExporter interface {
	ExportLibrary(ctx context.Context, actor policy.Actor, format string) (*service.ExportFile, error)
}

// LibraryHandler manages the caller's enrolled courses.
type LibraryHandler struct {
	service  libraryService
	exporter libraryExporter
}

// NewLibraryHandler constructs a LibraryHandler.
func NewLibraryHandler(svc libraryService, exporter libraryExporter) *LibraryHandler {
	return &LibraryHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List library
// @Tags Library
// @Produce json
// @Security BearerAuth
// @Param completed query bool false "Filter by completion"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /me/library [get]
func (h *LibraryHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	completed, err := boolQuery(c, "completed")
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size, err := pagination(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, meta, err := h.service.List(c.Request.Context(), actor, models.LibraryFilter{Completed: completed, Page: page, PageSize: size})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, meta)
}

// Add godoc
// @Summary Add course to library
// @Tags Library
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.AddToLibraryRequest true "Course"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/library [post]
func (h *LibraryHandler) Add(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.AddToLibraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid library payload"))
		return
	}
	entry, err := h.service.Add(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Mark course completed
// @Tags Library
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param payload body models.UpdateLibraryEntryRequest true "Completion"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/library/{courseId} [patch]
func (h *LibraryHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.UpdateLibraryEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid library payload"))
		return
	}
	entry, err := h.service.SetCompleted(c.Request.Context(), actor, c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Remove godoc
// @Summary Remove course from library
// @Tags Library
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /me/library/{courseId} [delete]
func (h *LibraryHandler) Remove(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), actor, c.Param("courseId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export library
// @Tags Library
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /me/library/export [get]
func (h *LibraryHandler) Export(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	file, err := h.exporter.ExportLibrary(c.Request.Context(), actor, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Payload)
}
