package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/roster"
)

// respondError map lỗi domain sang HTTP status; lỗi hạ tầng thành 500 và được log.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, roster.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, roster.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, roster.ErrInvalidState), errors.Is(err, roster.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, roster.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
		_ = c.Error(err)
		c.JSON(status, gin.H{"message": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"message": err.Error()})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message": "Invalid request data",
		"error":   err.Error(),
	})
}
