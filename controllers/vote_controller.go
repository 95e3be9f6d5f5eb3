package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/storage"
)

type VoteReq struct {
	TargetID uint    `json:"target_id" binding:"required"`
	Rating   int     `json:"rating"`
	Tags     *string `json:"tags" binding:"omitempty,max=500"`
}

type voteView struct {
	ID             uint      `json:"id"`
	VoterID        uint      `json:"voter_id"`
	VoterUsername  string    `json:"voter_username"`
	TargetID       uint      `json:"target_id"`
	TargetUsername string    `json:"target_username"`
	Rating         int       `json:"rating"`
	Tags           *string   `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
}

// SubmitVote: người chơi chấm điểm đồng đội khi match đang voting. Vote lại thì ghi đè.
func (h *Handler) SubmitVote(c *gin.Context) {
	u := middleware.CurrentUser(c)
	m := matchFromCtx(c)
	ctx := c.Request.Context()

	var req VoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Rating < 1 || req.Rating > 10 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "rating must be between 1 and 10"})
		return
	}
	if req.TargetID == u.ID {
		c.JSON(http.StatusConflict, gin.H{"message": "You cannot vote for yourself"})
		return
	}
	if m.Status != models.MatchVoting {
		c.JSON(http.StatusConflict, gin.H{"message": "Voting is not open for this match"})
		return
	}

	var n int64
	err := h.db.WithContext(ctx).Model(&models.Participant{}).
		Where("match_id = ? AND user_id IN ? AND status = ?", m.ID, []uint{u.ID, req.TargetID}, models.StatusConfirmed).
		Count(&n).Error
	if err != nil {
		respondError(c, err)
		return
	}
	if n != 2 {
		c.JSON(http.StatusForbidden, gin.H{"message": "Both voter and target must have played in this match"})
		return
	}

	if req.Tags != nil {
		t := strings.TrimSpace(*req.Tags)
		req.Tags = &t
	}
	v := models.Vote{MatchID: m.ID, VoterID: u.ID, TargetID: req.TargetID, Rating: req.Rating, Tags: req.Tags}
	if err := storage.UpsertVote(ctx, h.db, &v); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vote recorded"})
}

func (h *Handler) GetMatchVotes(c *gin.Context) {
	m := matchFromCtx(c)

	var votes []voteView
	err := h.db.WithContext(c.Request.Context()).
		Table("votes AS v").
		Select("v.id, v.voter_id, voter.username AS voter_username, v.target_id, target.username AS target_username, v.rating, v.tags, v.created_at").
		Joins("JOIN users voter ON voter.id = v.voter_id").
		Joins("JOIN users target ON target.id = v.target_id").
		Where("v.match_id = ?", m.ID).
		Order("v.id ASC").
		Scan(&votes).Error
	if err != nil {
		respondError(c, err)
		return
	}
	if votes == nil {
		votes = []voteView{}
	}
	c.JSON(http.StatusOK, gin.H{"data": votes})
}
