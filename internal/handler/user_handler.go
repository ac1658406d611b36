package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	"github.com/Kshitij83/skillcy/internal/service"
	"github.com/Kshitij83/skillcy/pkg/response"
)

type userService interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.Account, *models.Pagination, error)
	SetRole(ctx context.Context, actor policy.Actor, userID string, req models.SetRoleRequest, meta service.RequestMeta) (*models.Profile, error)
	SetActive(ctx context.Context, actor policy.Actor, userID string, req models.SetActiveRequest, meta service.RequestMeta) error
}

// UserHandler serves account administration.
type UserHandler struct {
	service userService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List accounts
// @Description Accounts joined with their profile role and counters
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param q query string false "Email or name search"
// @Param role query string false "user, premium or admin"
// @Param active query bool false "Filter by sign-in status"
// @Param sort_by query string false "email, created_at, last_login or role"
// @Param sort_order query string false "asc or desc"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter, err := userFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	accounts, page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accounts, page)
}

// SetRole godoc
// @Summary Change role
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param payload body models.SetRoleRequest true "New role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{userId}/role [patch]
func (h *UserHandler) SetRole(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid role payload"))
		return
	}
	req.Role = models.Role(strings.ToLower(strings.TrimSpace(string(req.Role))))

	profile, err := h.service.SetRole(c.Request.Context(), actor, c.Param("userId"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// SetStatus godoc
// @Summary Activate or deactivate account
// @Description Deactivation blocks sign-in and revokes refresh tokens
// @Tags Admin
// @Accept json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param payload body models.SetActiveRequest true "Status"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{userId}/status [patch]
func (h *UserHandler) SetStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid status payload"))
		return
	}
	if err := h.service.SetActive(c.Request.Context(), actor, c.Param("userId"), req, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func userFilterFromQuery(c *gin.Context) (models.UserFilter, error) {
	filter := models.UserFilter{
		Search:    strings.TrimSpace(c.Query("q")),
		SortBy:    strings.TrimSpace(c.Query("sort_by")),
		SortOrder: strings.TrimSpace(c.Query("sort_order")),
	}
	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		role := models.Role(strings.ToLower(raw))
		filter.Role = &role
	}
	active, err := boolQuery(c, "active")
	if err != nil {
		return filter, err
	}
	filter.Active = active
	if filter.Page, filter.PageSize, err = pagination(c); err != nil {
		return filter, err
	}
	return filter, nil
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
