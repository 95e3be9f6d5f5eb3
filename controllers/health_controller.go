package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) HealthCheck(c *gin.Context) {
	response := gin.H{
		"status":   "ok",
		"db":       "ok",
		"realtime": gin.H{"enabled": h.hub != nil},
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	// pool pgx nếu có, không thì ping qua gorm
	var err error
	if h.pool != nil {
		err = h.pool.Ping(ctx)
	} else if sqlDB, dbErr := h.db.DB(); dbErr != nil {
		err = dbErr
	} else {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		response["status"] = "degraded"
		response["db"] = "error: cannot connect to DB"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
