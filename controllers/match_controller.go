package controllers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/notify"
	"github.com/vnkhanh/matchday-server/realtime"
	"github.com/vnkhanh/matchday-server/roster"
	"github.com/vnkhanh/matchday-server/storage"
	"github.com/vnkhanh/matchday-server/utils"
)

type participantView struct {
	ID          uint                     `json:"id"`
	UserID      uint                     `json:"user_id"`
	Username    string                   `json:"username"`
	SkillRating *float64                 `json:"skill_rating"`
	Status      models.ParticipantStatus `json:"status"`
	Team        models.Team              `json:"team"`
	IsAdmin     bool                     `json:"is_admin"`
	Captain     bool                     `json:"captain"`
	JoinedAt    time.Time                `json:"joined_at"`
}

type matchView struct {
	models.Match
	AccessCode     *string                   `json:"access_code,omitempty"` // chỉ creator/admin thấy
	ConfirmedCount int64                     `json:"confirmed_count"`
	MyStatus       *models.ParticipantStatus `json:"my_status,omitempty"`
	MyTeam         *models.Team              `json:"my_team,omitempty"`
	Participants   []participantView         `json:"participants,omitempty"`
}

type CreateMatchReq struct {
	DateTime   time.Time `json:"date_time"`
	Location   string    `json:"location" binding:"max=255"`
	SportType  string    `json:"sport_type" binding:"required,max=50"`
	PriceTotal *float64  `json:"price_total" binding:"omitempty,min=0"`
	MaxPlayers *int      `json:"max_players" binding:"omitempty,min=1,max=100"`
	IsPrivate  bool      `json:"is_private"`
	AccessCode *string   `json:"access_code" binding:"omitempty,max=64"`
}

type UpdateMatchReq struct {
	DateTime   *time.Time           `json:"date_time"`
	Location   *string              `json:"location" binding:"omitempty,max=255"`
	SportType  *string              `json:"sport_type" binding:"omitempty,min=1,max=50"`
	PriceTotal utils.NullableFloat  `json:"price_total"`
	MaxPlayers *int                 `json:"max_players" binding:"omitempty,min=1,max=100"`
	IsPrivate  *bool                `json:"is_private"`
	AccessCode utils.NullableString `json:"access_code"`
}

type UpdateStatusReq struct {
	Status string `json:"status" binding:"required"`
	ScoreA *int   `json:"score_team_a"`
	ScoreB *int   `json:"score_team_b"`
}

func (h *Handler) CreateMatch(c *gin.Context) {
	u := middleware.CurrentUser(c)

	var req CreateMatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.DateTime.IsZero() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "date_time is required"})
		return
	}

	m := models.Match{
		DateTime:   req.DateTime,
		Location:   strings.TrimSpace(req.Location),
		SportType:  strings.TrimSpace(req.SportType),
		PriceTotal: req.PriceTotal,
		MaxPlayers: models.DefaultMaxPlayers,
		IsPrivate:  req.IsPrivate,
		Status:     models.MatchOpen,
		CreatorID:  &u.ID,
	}
	if req.MaxPlayers != nil {
		m.MaxPlayers = *req.MaxPlayers
	}
	if m.IsPrivate {
		code := ""
		if req.AccessCode != nil {
			code = utils.NormalizeAccessCode(*req.AccessCode)
		}
		if code == "" {
			code = utils.GenerateAccessCode()
		}
		m.AccessCode = &code
	}

	if err := storage.CreateMatch(c.Request.Context(), h.db, &m); err != nil {
		respondError(c, err)
		return
	}
	h.publish(c.Request.Context(), realtime.Event{Kind: realtime.MatchCreated, MatchID: m.ID, Status: string(m.Status)})

	confirmed := models.StatusConfirmed
	c.JSON(http.StatusCreated, gin.H{
		"message": "Match created",
		"data": matchView{
			Match:          m,
			AccessCode:     m.AccessCode,
			ConfirmedCount: 1,
			MyStatus:       &confirmed,
		},
	})
}

func (h *Handler) ListMatches(c *gin.Context) {
	page, limit := pagination(c)
	query := h.db.WithContext(c.Request.Context()).Model(&models.Match{})

	if s := c.Query("status"); s != "" {
		if !models.MatchStatus(s).Valid() {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Invalid status filter"})
			return
		}
		query = query.Where("status = ?", s)
	}
	if sport := strings.TrimSpace(c.Query("sport_type")); sport != "" {
		query = query.Where("LOWER(sport_type) = ?", strings.ToLower(sport))
	}
	if c.Query("upcoming") == "true" {
		query = query.Where("date_time >= ?", time.Now())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}
	var matches []models.Match
	if err := query.Order("date_time ASC, id ASC").Offset((page - 1) * limit).Limit(limit).Find(&matches).Error; err != nil {
		respondError(c, err)
		return
	}

	views, err := h.withCounts(c.Request.Context(), matches)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       views,
		"pagination": gin.H{"page": page, "limit": limit, "total": total},
	})
}

// GetMatch trả match kèm roster; LoadMatch đã nạp match.
func (h *Handler) GetMatch(c *gin.Context) {
	u := middleware.CurrentUser(c)
	m := matchFromCtx(c)

	var ps []models.Participant
	err := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Where("match_id = ?", m.ID).
		Order("id ASC").
		Find(&ps).Error
	if err != nil {
		respondError(c, err)
		return
	}

	view := matchView{Match: m, Participants: make([]participantView, 0, len(ps))}
	manager := m.IsCreator(u.ID) || u.IsAdmin()
	for _, p := range ps {
		pv := participantView{
			ID:       p.ID,
			UserID:   p.UserID,
			Status:   p.Status,
			Team:     p.Team,
			IsAdmin:  p.IsAdmin,
			Captain:  p.Captain,
			JoinedAt: p.CreatedAt,
		}
		if p.User != nil {
			pv.Username = p.User.Username
			pv.SkillRating = p.User.SkillRating
		}
		view.Participants = append(view.Participants, pv)

		if p.Status == models.StatusConfirmed {
			view.ConfirmedCount++
		}
		if p.UserID == u.ID {
			status, team := p.Status, p.Team
			view.MyStatus, view.MyTeam = &status, &team
			manager = manager || p.IsAdmin
		}
	}
	if manager {
		view.AccessCode = m.AccessCode
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

// MyMatches liệt kê các match user đang tham gia (mọi trạng thái), mới nhất trước.
func (h *Handler) MyMatches(c *gin.Context) {
	u := middleware.CurrentUser(c)

	var ps []models.Participant
	err := h.db.WithContext(c.Request.Context()).
		Preload("Match").
		Where("user_id = ?", u.ID).
		Find(&ps).Error
	if err != nil {
		respondError(c, err)
		return
	}

	matches := make([]models.Match, 0, len(ps))
	mine := make(map[uint]models.Participant, len(ps))
	for _, p := range ps {
		if p.Match == nil {
			continue
		}
		matches = append(matches, *p.Match)
		mine[p.MatchID] = p
	}
	views, err := h.withCounts(c.Request.Context(), matches)
	if err != nil {
		respondError(c, err)
		return
	}
	for i := range views {
		p := mine[views[i].ID]
		status, team := p.Status, p.Team
		views[i].MyStatus, views[i].MyTeam = &status, &team
		if views[i].IsCreator(u.ID) {
			views[i].AccessCode = views[i].Match.AccessCode
		}
	}
	sortByDateDesc(views)
	c.JSON(http.StatusOK, gin.H{"data": views})
}

// UpdateMatch cập nhật từng phần; chỉ creator (CheckMatchCreator).
// Toàn bộ thay đổi (kể cả max_players) đi qua roster trong một transaction.
func (h *Handler) UpdateMatch(c *gin.Context) {
	u := middleware.CurrentUser(c)
	m := matchFromCtx(c)

	var req UpdateMatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	patch := roster.MatchPatch{
		DateTime:   req.DateTime,
		MaxPlayers: req.MaxPlayers,
		IsPrivate:  req.IsPrivate,
		PriceSet:   req.PriceTotal.Set,
		PriceTotal: req.PriceTotal.Value,
		CodeSet:    req.AccessCode.Set,
	}
	if req.Location != nil {
		loc := strings.TrimSpace(*req.Location)
		patch.Location = &loc
	}
	if req.SportType != nil {
		sport := strings.TrimSpace(*req.SportType)
		patch.SportType = &sport
	}
	if req.AccessCode.Set && req.AccessCode.Value != nil {
		if s := utils.NormalizeAccessCode(*req.AccessCode.Value); s != "" {
			patch.AccessCode = &s
		}
	}

	fresh, err := h.roster.UpdateMatch(c.Request.Context(), m.ID, actorOf(u), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Match updated",
		"data":    matchView{Match: fresh, AccessCode: fresh.AccessCode},
	})
}

// UpdateMatchStatus đổi trạng thái match; chỉ creator (CheckMatchCreator).
// Có thể kèm tỉ số khi chuyển sang voting/finished.
func (h *Handler) UpdateMatchStatus(c *gin.Context) {
	u := middleware.CurrentUser(c)
	m := matchFromCtx(c)

	var req UpdateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	status := models.MatchStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "status must be one of open, locked, voting, finished"})
		return
	}
	var score *roster.Score
	switch {
	case req.ScoreA != nil && req.ScoreB != nil:
		score = &roster.Score{A: *req.ScoreA, B: *req.ScoreB}
	case req.ScoreA != nil || req.ScoreB != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "score_team_a and score_team_b must be set together"})
		return
	}

	prev, err := h.roster.SetStatus(c.Request.Context(), m.ID, actorOf(u), status, score)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Match status updated",
		"data":    gin.H{"id": m.ID, "status": status, "previous_status": prev},
	})
}

func (h *Handler) withCounts(ctx context.Context, matches []models.Match) ([]matchView, error) {
	ids := make([]uint, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	counts, err := storage.ConfirmedCounts(ctx, h.db, ids)
	if err != nil {
		return nil, err
	}
	views := make([]matchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, matchView{Match: m, ConfirmedCount: counts[m.ID]})
	}
	return views, nil
}

func (h *Handler) publish(ctx context.Context, ev realtime.Event) {
	if h.events != nil {
		h.events.Publish(context.WithoutCancel(ctx), ev)
	}
}

func (h *Handler) notify(ctx context.Context, userID uint, msg notify.Message) {
	if h.notifier != nil {
		h.notifier.Notify(context.WithoutCancel(ctx), userID, msg)
	}
}

func sortByDateDesc(views []matchView) {
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].DateTime.After(views[j].DateTime)
	})
}
