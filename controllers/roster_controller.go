package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/roster"
)

type JoinReq struct {
	Team       *string `json:"team"`
	AccessCode string  `json:"access_code"`
	// "confirmed" (mặc định) hoặc "declined" cho RSVP không tham gia
	Status string `json:"status"`
}

type MoveReq struct {
	Team string `json:"team"`
}

func (h *Handler) JoinMatch(c *gin.Context) {
	u := middleware.CurrentUser(c)
	matchID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req JoinReq
	// body có thể rỗng
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}
	jr := roster.JoinRequest{
		AccessCode: strings.TrimSpace(req.AccessCode),
		Status:     models.ParticipantStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	}
	if req.Team != nil {
		team, ok := models.ParseTeam(strings.TrimSpace(*req.Team))
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "team must be A, B or none"})
			return
		}
		jr.Team = &team
	}

	res, err := h.roster.Join(c.Request.Context(), matchID, actorOf(u), jr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": joinMessage(res.Status), "data": res})
}

func joinMessage(s models.ParticipantStatus) string {
	switch s {
	case models.StatusConfirmed:
		return "You are in!"
	case models.StatusWaitlist:
		return "Match is full, you are on the waitlist"
	case models.StatusPendingApproval:
		return "Request sent, waiting for approval"
	case models.StatusDeclined:
		return "Marked as not attending"
	}
	return "OK"
}

func (h *Handler) LeaveMatch(c *gin.Context) {
	u := middleware.CurrentUser(c)
	matchID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.roster.Leave(c.Request.Context(), matchID, actorOf(u)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left the match"})
}

func (h *Handler) ApproveParticipant(c *gin.Context) {
	u := middleware.CurrentUser(c)
	matchID, ok := paramID(c, "id")
	if !ok {
		return
	}
	target, ok := paramID(c, "userId")
	if !ok {
		return
	}
	res, err := h.roster.Approve(c.Request.Context(), matchID, actorOf(u), target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Request approved", "data": res})
}

func (h *Handler) RejectParticipant(c *gin.Context) {
	u := middleware.CurrentUser(c)
	matchID, ok := paramID(c, "id")
	if !ok {
		return
	}
	target, ok := paramID(c, "userId")
	if !ok {
		return
	}
	if err := h.roster.Reject(c.Request.Context(), matchID, actorOf(u), target); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Request rejected"})
}

func (h *Handler) GenerateTeams(c *gin.Context) {
	u := middleware.CurrentUser(c)
	matchID, ok := paramID(c, "id")
	if !ok {
		return
	}
	summary, err := h.roster.GenerateTeams(c.Request.Context(), matchID, actorOf(u))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Teams generated", "data": summary})
}

func (h *Handler) MovePlayer(c *gin.Context) {
	u := middleware.CurrentUser(c)
	matchID, ok := paramID(c, "id")
	if !ok {
		return
	}
	target, ok := paramID(c, "userId")
	if !ok {
		return
	}
	var req MoveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	team, valid := models.ParseTeam(strings.TrimSpace(req.Team))
	if !valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "team must be A, B or none"})
		return
	}
	if err := h.roster.MovePlayer(c.Request.Context(), matchID, actorOf(u), target, team); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Player moved", "data": gin.H{"user_id": target, "team": team}})
}

func (h *Handler) SetCaptain(c *gin.Context) {
	u := middleware.CurrentUser(c)
	matchID, ok := paramID(c, "id")
	if !ok {
		return
	}
	target, ok := paramID(c, "userId")
	if !ok {
		return
	}
	if err := h.roster.SetCaptain(c.Request.Context(), matchID, actorOf(u), target); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Captain set"})
}

func (h *Handler) ToggleAdmin(c *gin.Context) {
	u := middleware.CurrentUser(c)
	matchID, ok := paramID(c, "id")
	if !ok {
		return
	}
	target, ok := paramID(c, "userId")
	if !ok {
		return
	}
	isAdmin, err := h.roster.ToggleAdmin(c.Request.Context(), matchID, actorOf(u), target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Admin flag updated", "data": gin.H{"user_id": target, "is_admin": isAdmin}})
}
