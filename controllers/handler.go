// Package controllers chứa các gin handler của API.
package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/realtime"
	"github.com/vnkhanh/matchday-server/roster"
	"github.com/vnkhanh/matchday-server/utils"
)

// Deps là các thành phần handler cần. Pool, Hub có thể nil (test).
type Deps struct {
	DB        *gorm.DB
	Pool      *pgxpool.Pool
	Roster    *roster.Manager
	Notifier  roster.Notifier
	Publisher roster.Publisher
	Tokens    *utils.TokenIssuer
	Hub       *realtime.Hub
	// AllowedOrigins cho websocket; rỗng = chấp nhận mọi origin.
	AllowedOrigins []string
}

type Handler struct {
	db       *gorm.DB
	pool     *pgxpool.Pool
	roster   *roster.Manager
	notifier roster.Notifier
	events   roster.Publisher
	tokens   *utils.TokenIssuer
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func New(d Deps) *Handler {
	h := &Handler{
		db:       d.DB,
		pool:     d.Pool,
		roster:   d.Roster,
		notifier: d.Notifier,
		events:   d.Publisher,
		tokens:   d.Tokens,
		hub:      d.Hub,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(d.AllowedOrigins),
	}
	return h
}

func actorOf(u models.User) roster.Actor {
	return roster.Actor{UserID: u.ID, Role: u.Role}
}

// paramID đọc path param dạng số dương; trả false và đã ghi 400 nếu sai.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// matchFromCtx trả match do middleware.LoadMatch nạp.
func matchFromCtx(c *gin.Context) models.Match {
	return c.MustGet(middleware.CtxMatch).(models.Match)
}
