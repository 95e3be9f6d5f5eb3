package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
)

type CreateReportReq struct {
	ReportedUserID uint   `json:"reported_user_id" binding:"required"`
	MatchID        *uint  `json:"match_id"`
	Reason         string `json:"reason" binding:"required,max=100"`
	Description    string `json:"description" binding:"max=2000"`
}

type UpdateReportStatusReq struct {
	Status string `json:"status" binding:"required"`
}

// CreateReport: user báo cáo user khác, có thể kèm match.
func (h *Handler) CreateReport(c *gin.Context) {
	u := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	var req CreateReportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "reason is required"})
		return
	}
	if req.ReportedUserID == u.ID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "You cannot report yourself"})
		return
	}
	if err := h.db.WithContext(ctx).Select("id").First(&models.User{}, req.ReportedUserID).Error; err != nil {
		respondError(c, err)
		return
	}
	if req.MatchID != nil {
		if err := h.db.WithContext(ctx).Select("id").First(&models.Match{}, *req.MatchID).Error; err != nil {
			respondError(c, err)
			return
		}
	}

	r := models.Report{
		ReporterID:     u.ID,
		ReportedUserID: req.ReportedUserID,
		MatchID:        req.MatchID,
		Reason:         reason,
		Description:    strings.TrimSpace(req.Description),
		Status:         models.ReportPending,
	}
	if err := h.db.WithContext(ctx).Create(&r).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Report submitted successfully", "data": r})
}

// ListReports (admin): lọc theo ?status=, mới nhất trước.
func (h *Handler) ListReports(c *gin.Context) {
	page, limit := pagination(c)
	query := h.db.WithContext(c.Request.Context()).Model(&models.Report{})
	if s := c.Query("status"); s != "" {
		if !models.ValidReportStatus(s) {
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
	var reports []models.Report
	if err := query.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&reports).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       reports,
		"pagination": gin.H{"page": page, "limit": limit, "total": total},
	})
}

func (h *Handler) UpdateReportStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateReportStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !models.ValidReportStatus(status) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "status must be one of pending, reviewed, dismissed"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Report{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Report not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report status updated", "data": gin.H{"id": id, "status": status}})
}
