package response

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/internal/models"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

// Envelope is the body of every JSON response. Exactly one of Data or Error is set.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON writes data with optional pagination and a single optional meta map.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	env := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && len(meta[0]) > 0 {
		env.Meta = meta[0]
	}
	write(c, status, env)
}

// Created writes a 201 with data.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error writes err using its status and code. Causes of 5xx errors are attached to the gin context
// for the request logger and never serialised.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Err != nil && appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(appErr.Err)
	}
	write(c, appErr.Status, Envelope{Error: appErr})
}

// File sends payload as a download named filename.
func File(c *gin.Context, filename, contentType string, payload []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, contentType, payload)
}

// NoContent writes a bare 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// API responses carry per-user data and must not be cached by intermediaries.
func write(c *gin.Context, status int, env Envelope) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, env)
}
