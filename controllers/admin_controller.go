package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/realtime"
	"github.com/vnkhanh/matchday-server/roster"
	"github.com/vnkhanh/matchday-server/storage"
)

type adminMatchView struct {
	models.Match
	AccessCode  *string `json:"access_code,omitempty"`
	CreatorName *string `json:"creator_name"`
}

func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := storage.GetPlatformStats(c.Request.Context(), h.db)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	page, limit := pagination(c)
	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}
	var users []models.User
	if err := query.Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       users,
		"pagination": gin.H{"page": page, "limit": limit, "total": total},
	})
}

// AdminDeleteUser rời mọi match đang open trước (để waitlist được đôn lên), rồi xoá dữ liệu.
func (h *Handler) AdminDeleteUser(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if id == admin.ID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Admins cannot delete their own account here"})
		return
	}
	ctx := c.Request.Context()

	open, err := storage.OpenMatchesOf(ctx, h.db, id)
	if err != nil {
		respondError(c, err)
		return
	}
	for _, matchID := range open {
		err := h.roster.Leave(ctx, matchID, roster.Actor{UserID: id})
		// match vừa đóng hoặc user vừa rời: không sao, DeleteUser dọn phần còn lại
		if err != nil && !errors.Is(err, roster.ErrNotFound) && !errors.Is(err, roster.ErrInvalidState) {
			respondError(c, err)
			return
		}
	}

	if err := storage.DeleteUser(ctx, h.db, id); err != nil {
		respondError(c, err)
		return
	}
	zerolog.Ctx(ctx).Info().Uint("admin_id", admin.ID).Uint("user_id", id).Msg("user deleted")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (h *Handler) AdminListMatches(c *gin.Context) {
	ctx := c.Request.Context()
	page, limit := pagination(c)
	query := h.db.WithContext(ctx).Model(&models.Match{})
	if s := c.Query("status"); s != "" {
		if !models.MatchStatus(s).Valid() {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Invalid status filter"})
			return
		}
		query = query.Where("status = ?", s)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}
	var matches []models.Match
	if err := query.Preload("Creator").Order("date_time DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&matches).Error; err != nil {
		respondError(c, err)
		return
	}

	views := make([]adminMatchView, 0, len(matches))
	for _, m := range matches {
		v := adminMatchView{Match: m, AccessCode: m.AccessCode}
		if m.Creator != nil {
			name := m.Creator.Username
			v.CreatorName = &name
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       views,
		"pagination": gin.H{"page": page, "limit": limit, "total": total},
	})
}

func (h *Handler) AdminDeleteMatch(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := storage.DeleteMatch(ctx, h.db, id); err != nil {
		respondError(c, err)
		return
	}
	h.publish(ctx, realtime.Event{Kind: realtime.MatchDeleted, MatchID: id})
	c.JSON(http.StatusOK, gin.H{"message": "Match deleted successfully"})
}
