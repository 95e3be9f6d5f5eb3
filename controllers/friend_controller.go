package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/notify"
	"github.com/vnkhanh/matchday-server/roster"
	"github.com/vnkhanh/matchday-server/storage"
)

type FriendRequestReq struct {
	UserID uint `json:"user_id" binding:"required"`
}

type friendView struct {
	ID          uint     `json:"id"`
	Username    string   `json:"username"`
	SkillRating *float64 `json:"skill_rating"`
}

type pendingView struct {
	ID          uint      `json:"id"`
	RequesterID uint      `json:"requester_id"`
	Username    string    `json:"username"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) SendFriendRequest(c *gin.Context) {
	u := middleware.CurrentUser(c)
	var req FriendRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.UserID == u.ID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "You cannot befriend yourself"})
		return
	}

	var f models.Friendship
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var target models.User
		if err := tx.First(&target, req.UserID).Error; err != nil {
			return err
		}
		existing, err := storage.FindFriendship(tx, u.ID, req.UserID)
		if err != nil {
			return err
		}
		switch {
		case existing == nil:
			f = models.Friendship{RequesterID: u.ID, AddresseeID: req.UserID, Status: models.FriendPending}
			return tx.Create(&f).Error
		case existing.Status == models.FriendRejected:
			// gửi lại sau khi bị từ chối: người gửi mới là requester
			f = *existing
			f.RequesterID, f.AddresseeID, f.Status = u.ID, req.UserID, models.FriendPending
			return tx.Save(&f).Error
		case existing.Status == models.FriendAccepted:
			return errConflict("You are already friends")
		default:
			return errConflict("A friend request is already pending")
		}
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.notify(c.Request.Context(), req.UserID, notify.FriendRequest{FromUserID: u.ID})
	c.JSON(http.StatusCreated, gin.H{"message": "Friend request sent", "data": f})
}

func (h *Handler) AcceptFriendRequest(c *gin.Context) {
	h.respondToRequest(c, models.FriendAccepted)
}

func (h *Handler) RejectFriendRequest(c *gin.Context) {
	h.respondToRequest(c, models.FriendRejected)
}

// respondToRequest: chỉ người nhận của một request đang pending mới được trả lời.
func (h *Handler) respondToRequest(c *gin.Context, status string) {
	u := middleware.CurrentUser(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var f models.Friendship
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&f, id).Error; err != nil {
			return err
		}
		if f.AddresseeID != u.ID {
			return errForbidden("This request is not addressed to you")
		}
		if f.Status != models.FriendPending {
			return errConflict("Request is no longer pending")
		}
		f.Status = status
		return tx.Save(&f).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if status == models.FriendAccepted {
		h.notify(c.Request.Context(), f.RequesterID, notify.FriendAccepted{ByUserID: u.ID})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend request " + status, "data": f})
}

func (h *Handler) ListFriends(c *gin.Context) {
	u := middleware.CurrentUser(c)
	var friends []friendView
	err := h.db.WithContext(c.Request.Context()).
		Table("friendships AS f").
		Select("u.id, u.username, u.skill_rating").
		Joins("JOIN users u ON u.id = CASE WHEN f.requester_id = ? THEN f.addressee_id ELSE f.requester_id END", u.ID).
		Where("f.status = ? AND (f.requester_id = ? OR f.addressee_id = ?)", models.FriendAccepted, u.ID, u.ID).
		Order("u.username ASC").
		Scan(&friends).Error
	if err != nil {
		respondError(c, err)
		return
	}
	if friends == nil {
		friends = []friendView{}
	}
	c.JSON(http.StatusOK, gin.H{"data": friends})
}

// ListPendingRequests: các lời mời kết bạn gửi tới user hiện tại.
func (h *Handler) ListPendingRequests(c *gin.Context) {
	u := middleware.CurrentUser(c)
	var pending []pendingView
	err := h.db.WithContext(c.Request.Context()).
		Table("friendships AS f").
		Select("f.id, f.requester_id, u.username, f.created_at").
		Joins("JOIN users u ON u.id = f.requester_id").
		Where("f.addressee_id = ? AND f.status = ?", u.ID, models.FriendPending).
		Order("f.created_at DESC").
		Scan(&pending).Error
	if err != nil {
		respondError(c, err)
		return
	}
	if pending == nil {
		pending = []pendingView{}
	}
	c.JSON(http.StatusOK, gin.H{"data": pending})
}

// FriendshipStatus trả none | pending_sent | pending_received | accepted | rejected.
func (h *Handler) FriendshipStatus(c *gin.Context) {
	u := middleware.CurrentUser(c)
	other, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, err := storage.FindFriendship(h.db.WithContext(c.Request.Context()), u.ID, other)
	if err != nil {
		respondError(c, err)
		return
	}
	status := "none"
	var requestID *uint
	if f != nil {
		requestID = &f.ID
		status = f.Status
		if f.Status == models.FriendPending {
			status = "pending_received"
			if f.RequesterID == u.ID {
				status = "pending_sent"
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": status, "request_id": requestID}})
}

func (h *Handler) RemoveFriend(c *gin.Context) {
	u := middleware.CurrentUser(c)
	other, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Where("status = ?", models.FriendAccepted).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)", u.ID, other, other, u.ID).
		Delete(&models.Friendship{})
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Friendship not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend removed"})
}

func errConflict(msg string) error {
	return &apiError{sentinel: roster.ErrConflict, msg: msg}
}

func errForbidden(msg string) error {
	return &apiError{sentinel: roster.ErrForbidden, msg: msg}
}

// apiError mang thông điệp cho client và vẫn khớp errors.Is với sentinel.
type apiError struct {
	sentinel error
	msg      string
}

func (e *apiError) Error() string        { return e.msg }
func (e *apiError) Is(target error) bool { return target == e.sentinel }
