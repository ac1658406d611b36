package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/service"
	"github.com/Kshitij83/skillcy/pkg/response"
)

type statsService interface {
	Check(ctx context.Context, userID string) (*models.StatsDrift, error)
	CheckAll(ctx context.Context) ([]models.StatsDrift, error)
	Recompute(ctx context.Context, userID string) (*models.Profile, error)
	RecomputeAll(ctx context.Context) (*service.RecomputeSummary, error)
}

// StatsHandler exposes admin tooling for profile counters.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(svc statsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Check godoc
// @Summary Compare stored and live counters
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/profiles/{userId}/stats [get]
func (h *StatsHandler) Check(c *gin.Context) {
	drift, err := h.service.Check(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drift, nil)
}

// Drift godoc
// @Summary List profiles with drifted counters
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/stats/drift [get]
func (h *StatsHandler) Drift(c *gin.Context) {
	drifted, err := h.service.CheckAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if drifted == nil {
		drifted = []models.StatsDrift{}
	}
	response.JSON(c, http.StatusOK, drifted, nil, map[string]interface{}{"drifted": len(drifted)})
}

// Recompute godoc
// @Summary Recompute one profile
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/profiles/{userId}/stats/recompute [post]
func (h *StatsHandler) Recompute(c *gin.Context) {
	profile, err := h.service.Recompute(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// RecomputeAll godoc
// @Summary Recompute every profile
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/stats/recompute [post]
func (h *StatsHandler) RecomputeAll(c *gin.Context) {
	summary, err := h.service.RecomputeAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
