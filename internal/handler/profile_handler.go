package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	"github.com/Kshitij83/skillcy/pkg/response"
)

type profileService interface {
	Get(ctx context.Context, actor policy.Actor, userID string) (*models.Profile, error)
	Me(ctx context.Context, actor policy.Actor) (*models.Profile, error)
	Update(ctx context.Context, actor policy.Actor, userID string, req models.UpdateProfileRequest) (*models.Profile, error)
}

// ProfileHandler serves profile reads and owner edits.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(svc profileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Get godoc
// @Summary Get profile
// @Description Public profile with its enrolled, completed and uploads counters
// @Tags Profiles
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profiles/{userId} [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Me godoc
// @Summary Get own profile
// @Tags Profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/profile [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	profile, err := h.service.Me(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateMe godoc
// @Summary Update own profile
// @Description Change display name or avatar seed. Role and counters cannot be edited.
// @Tags Profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/profile [patch]
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid profile payload"))
		return
	}
	profile, err := h.service.Update(c.Request.Context(), actor, actor.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
