package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/pkg/response"
)

func abortWithError(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
