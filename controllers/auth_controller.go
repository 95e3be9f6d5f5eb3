package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/utils"
)

type RegisterReq struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginReq struct {
	// Login là email hoặc username
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	db := h.db.WithContext(c.Request.Context())
	var count int64
	if err := db.Model(&models.User{}).Where("email = ? OR username = ?", req.Email, req.Username).Count(&count).Error; err != nil {
		respondError(c, err)
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"message": "Email or username already exists"})
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	u := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := db.Create(&u).Error; err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.GenerateToken(u.ID, u.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": u})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}
	login := strings.TrimSpace(req.Login)

	var u models.User
	err := h.db.WithContext(c.Request.Context()).
		Where("email = ? OR username = ?", strings.ToLower(login), login).
		First(&u).Error
	// không phân biệt "sai user" với "sai mật khẩu"
	if err != nil || !utils.CheckPassword(u.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	token, err := h.tokens.GenerateToken(u.ID, u.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}

// GetUser trả thông tin công khai của một user.
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var u models.User
	if err := h.db.WithContext(c.Request.Context()).First(&u, id).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":           u.ID,
		"username":     u.Username,
		"skill_rating": u.SkillRating,
	}})
}

type SetRatingReq struct {
	SkillRating *float64 `json:"skill_rating" binding:"omitempty,min=1,max=10"`
}

// SetUserRating: admin đặt (hoặc xóa bằng null) skill rating của một user.
func (h *Handler) SetUserRating(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SetRatingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).Update("skill_rating", req.SkillRating)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rating updated", "data": gin.H{"id": id, "skill_rating": req.SkillRating}})
}
