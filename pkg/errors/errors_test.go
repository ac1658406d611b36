package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrForbidden, "only the uploader may edit this course")

	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "only the uploader may edit this course", err.Error())
	assert.Equal(t, "forbidden", ErrForbidden.Message)
}

func TestWrapExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "failed to load course")

	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, ErrInternal))
	assert.Equal(t, "failed to load course: connection reset", err.Error())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	typed := Clone(ErrConflict, "already in library")
	assert.Same(t, typed, FromError(fmt.Errorf("add: %w", typed)))

	plain := FromError(errors.New("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
	assert.Equal(t, ErrInternal.Message, plain.Message)
}

func TestWithDetails(t *testing.T) {
	err := ErrValidation.WithDetails(map[string]string{"title": "required"})

	assert.Equal(t, "required", err.Details["title"])
	assert.Nil(t, ErrValidation.Details)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Nil(t, ErrValidation.WithDetails(nil).Details)
}
