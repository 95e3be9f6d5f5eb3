package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/storage"
)

type userSummary struct {
	ID          uint     `json:"id"`
	Username    string   `json:"username"`
	SkillRating *float64 `json:"skill_rating"`
}

// userParam đọc :id và kiểm tra user tồn tại; đã ghi response nếu trả false.
func (h *Handler) userParam(c *gin.Context) (uint, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return 0, false
	}
	var n int64
	if err := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		respondError(c, err)
		return 0, false
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return 0, false
	}
	return id, true
}

func (h *Handler) respondStats(c *gin.Context, userID uint) {
	stats, err := storage.GetUserStats(c.Request.Context(), h.db, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (h *Handler) respondHistory(c *gin.Context, userID uint) {
	history, err := storage.MatchHistory(c.Request.Context(), h.db, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": history})
}

func (h *Handler) MyStats(c *gin.Context) {
	h.respondStats(c, middleware.CurrentUser(c).ID)
}

func (h *Handler) MyHistory(c *gin.Context) {
	h.respondHistory(c, middleware.CurrentUser(c).ID)
}

func (h *Handler) UserStats(c *gin.Context) {
	if id, ok := h.userParam(c); ok {
		h.respondStats(c, id)
	}
}

func (h *Handler) UserHistory(c *gin.Context) {
	if id, ok := h.userParam(c); ok {
		h.respondHistory(c, id)
	}
}

// SearchUsers: ?q= theo username, q rỗng trả mảng rỗng.
func (h *Handler) SearchUsers(c *gin.Context) {
	u := middleware.CurrentUser(c)
	users, err := storage.SearchUsers(c.Request.Context(), h.db, c.Query("q"), u.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]userSummary, 0, len(users))
	for _, x := range users {
		out = append(out, userSummary{ID: x.ID, Username: x.Username, SkillRating: x.SkillRating})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// HeadToHead so thành tích của mình với user :id.
func (h *Handler) HeadToHead(c *gin.Context) {
	u := middleware.CurrentUser(c)
	other, ok := h.userParam(c)
	if !ok {
		return
	}
	if other == u.ID {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot compare a user with themselves"})
		return
	}
	h2h, err := storage.GetHeadToHead(c.Request.Context(), h.db, u.ID, other)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h2h})
}
