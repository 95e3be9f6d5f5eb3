package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/models"
)

// LoadMatch nạp match theo :id vào context.
func LoadMatch(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid match id"})
			return
		}

		var m models.Match
		if err := db.WithContext(c.Request.Context()).First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Match not found"})
				return
			}
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Uint64("match_id", id).Msg("load match")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
			return
		}

		c.Set(CtxMatch, m)
		c.Next()
	}
}

// CheckMatchCreator chỉ cho creator (hoặc admin hệ thống) đi tiếp. Cần LoadMatch chạy trước.
func CheckMatchCreator() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		m := c.MustGet(CtxMatch).(models.Match)

		if m.CreatorID == nil && !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Match has no creator"})
			return
		}
		if !m.IsCreator(user.ID) && !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Only the match creator can do this"})
			return
		}
		c.Next()
	}
}
