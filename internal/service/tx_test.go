package service

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

func TestValidationErrorDetails(t *testing.T) {
	type payload struct {
		FullName   string `validate:"required"`
		ContentURL string `validate:"omitempty,url"`
		Page       int    `validate:"min=1"`
	}
	raw := validator.New().Struct(payload{ContentURL: "not a url"})
	require.Error(t, raw)

	err := validationError(raw, "invalid payload")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, map[string]string{
		"full_name":   "required",
		"content_url": "url",
		"page":        "min=1",
	}, appErr.Details)
}

func TestValidationErrorWithoutFieldErrors(t *testing.T) {
	err := validationError(errors.New("bad json"), "invalid payload")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Nil(t, appErr.Details)
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "title", snakeCase("Title"))
	assert.Equal(t, "avatar_seed", snakeCase("AvatarSeed"))
	assert.Equal(t, "content_url", snakeCase("ContentURL"))
	assert.Equal(t, "url_path", snakeCase("URLPath"))
}

func TestStoreErrorMapsPostgresCodes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		details map[string]string
	}{
		{"no rows", sql.ErrNoRows, http.StatusNotFound, "course not found", nil},
		{"serialization", &pq.Error{Code: "40001"}, http.StatusServiceUnavailable, "concurrent update, retry the request", nil},
		{"deadlock", &pq.Error{Code: "40P01"}, http.StatusServiceUnavailable, "concurrent update, retry the request", nil},
		{"known unique", &pq.Error{Code: "23505", Constraint: "user_courses_user_course_key"}, http.StatusConflict,
			"course is already in your library", map[string]string{"constraint": "user_courses_user_course_key"}},
		{"unnamed unique", &pq.Error{Code: "23505"}, http.StatusConflict, "resource already exists", nil},
		{"check", &pq.Error{Code: "23514"}, http.StatusBadRequest, "value violates a constraint", nil},
		{"other", errors.New("boom"), http.StatusInternalServerError, "failed", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := appErrors.FromError(storeError(tt.err, "course not found", "failed"))
			require.NotNil(t, appErr)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.message, appErr.Message)
			assert.Equal(t, tt.details, appErr.Details)
		})
	}
}
