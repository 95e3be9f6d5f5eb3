package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
)

func (h *Handler) ListNotifications(c *gin.Context) {
	u := middleware.CurrentUser(c)
	page, limit := pagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).Where("user_id = ?", u.ID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var unread int64
	if err := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", u.ID, false).Count(&unread).Error; err != nil {
		respondError(c, err)
		return
	}
	var items []models.Notification
	if err := query.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&items).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "unread": unread})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	u := middleware.CurrentUser(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, u.ID).
		Update("is_read", true)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked as read"})
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	u := middleware.CurrentUser(c)
	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", u.ID, false).
		Update("is_read", true)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": res.RowsAffected})
}
