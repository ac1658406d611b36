package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/internal/middleware"
	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
	"github.com/Kshitij83/skillcy/pkg/response"
)

type courseService interface {
	List(ctx context.Context, actor policy.Actor, filter models.CourseFilter) ([]models.Course, *models.Pagination, bool, error)
	Get(ctx context.Context, actor policy.Actor, id string) (*models.Course, error)
	Create(ctx context.Context, actor policy.Actor, req models.CourseRequest) (*models.Course, error)
	Update(ctx context.Context, actor policy.Actor, id string, req models.CourseRequest) (*models.Course, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
	ListUploads(ctx context.Context, actor policy.Actor, page, pageSize int) ([]models.Course, *models.Pagination, error)
}

// CourseHandler exposes the course catalog and uploader operations.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs a CourseHandler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary Browse courses
// @Description Courses visible to the caller: approved public courses, approved premium courses for premium and admin users, and the caller's own uploads
// @Tags Courses
// @Produce json
// @Param q query string false "Title or description search"
// @Param content_type query string false "video, pdf or text"
// @Param difficulty query string false "beginner, intermediate or advanced"
// @Param access_type query string false "private, public or premium"
// @Param tag query string false "Tag"
// @Param uploader_id query string false "Uploader user ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	filter, err := courseFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	courses, page, hit, err := h.service.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, courses, page, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Upload course
// @Description Create a course owned by the caller
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CourseRequest true "Course"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course payload"))
		return
	}
	course, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Replace course
// @Description Only the uploader may update a course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body models.CourseRequest true "Course"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course payload"))
		return
	}
	course, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Description Removes the course and every enrollment in it
// @Tags Courses
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListUploads godoc
// @Summary List own uploads
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /me/uploads [get]
func (h *CourseHandler) ListUploads(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, size, err := pagination(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	courses, meta, err := h.service.ListUploads(c.Request.Context(), actor, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, meta)
}

func courseFilterFromQuery(c *gin.Context) (models.CourseFilter, error) {
	page, size, err := pagination(c)
	if err != nil {
		return models.CourseFilter{}, err
	}
	filter := models.CourseFilter{
		Search:      strings.TrimSpace(c.Query("q")),
		ContentType: models.ContentType(strings.ToLower(c.Query("content_type"))),
		Difficulty:  models.Difficulty(strings.ToLower(c.Query("difficulty"))),
		AccessType:  models.AccessType(strings.ToLower(c.Query("access_type"))),
		Tag:         strings.TrimSpace(c.Query("tag")),
		UploaderID:  strings.TrimSpace(c.Query("uploader_id")),
		Page:        page,
		PageSize:    size,
	}
	switch filter.ContentType {
	case "", models.ContentTypeVideo, models.ContentTypePDF, models.ContentTypeText:
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "content_type must be video, pdf or text")
	}
	switch filter.Difficulty {
	case "", models.DifficultyBeginner, models.DifficultyIntermediate, models.DifficultyAdvanced:
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "difficulty must be beginner, intermediate or advanced")
	}
	switch filter.AccessType {
	case "", models.AccessPrivate, models.AccessPublic, models.AccessPremium:
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "access_type must be private, public or premium")
	}
	return filter, nil
}
