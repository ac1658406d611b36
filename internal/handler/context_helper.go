package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/internal/middleware"
	"github.com/Kshitij83/skillcy/internal/policy"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

func actorFromContext(c *gin.Context) policy.Actor {
	return middleware.Actor(c)
}

// requireActor writes 401 and returns false for anonymous callers.
func requireActor(c *gin.Context) (policy.Actor, bool) {
	actor := actorFromContext(c)
	if !actor.Authenticated() {
		abortWithError(c, appErrors.ErrUnauthorized)
		return actor, false
	}
	return actor, true
}

func pagination(c *gin.Context) (page, size int, err error) {
	if page, err = intQuery(c, "page"); err != nil {
		return 0, 0, err
	}
	if size, err = intQuery(c, "page_size"); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return v, nil
}

func boolQuery(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a boolean")
	}
	return &v, nil
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
