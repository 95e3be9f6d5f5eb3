package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/realtime"
)

const subscribeTimeout = 5 * time.Second

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// client không phải browser
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// Socket nâng cấp lên websocket; AuthJWT đã xác thực qua ?token=.
func (h *Handler) Socket(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Realtime is disabled"})
		return
	}
	u := middleware.CurrentUser(c)
	logger := zerolog.Ctx(c.Request.Context())

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade đã tự ghi response lỗi
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConnection(u.ID, ws)
	h.hub.Attach(conn)
	defer func() {
		h.hub.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "bye")
	}()
	logger.Debug().Str("session_id", conn.ID).Msg("websocket connected")

	err = conn.ReadFrames(func(f realtime.ClientFrame) {
		switch f.Action {
		case "subscribe":
			if err := h.canWatch(c.Request.Context(), u, f.MatchID); err != nil {
				sendFrame(conn, realtime.Frame{Event: "error", MatchID: f.MatchID, Data: errorData(err.Error())})
				return
			}
			h.hub.Subscribe(f.MatchID, conn)
			sendFrame(conn, realtime.Frame{Event: "subscribed", MatchID: f.MatchID})
		case "unsubscribe":
			h.hub.Unsubscribe(f.MatchID, conn)
			sendFrame(conn, realtime.Frame{Event: "unsubscribed", MatchID: f.MatchID})
		case "ping":
			sendFrame(conn, realtime.Frame{Event: "pong"})
		default:
			sendFrame(conn, realtime.Frame{Event: "error", Data: errorData("unknown action")})
		}
	})
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Debug().Err(err).Str("session_id", conn.ID).Msg("websocket closed")
	}
}

var errCannotWatch = errors.New("match not found or not visible")

// canWatch: match public ai cũng xem được; match private chỉ creator, admin và người trong roster.
func (h *Handler) canWatch(ctx context.Context, u models.User, matchID uint) error {
	if matchID == 0 {
		return errCannotWatch
	}
	ctx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()

	var m models.Match
	if err := h.db.WithContext(ctx).First(&m, matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errCannotWatch
		}
		return err
	}
	if !m.IsPrivate || m.IsCreator(u.ID) || u.IsAdmin() {
		return nil
	}
	var n int64
	if err := h.db.WithContext(ctx).Model(&models.Participant{}).
		Where("match_id = ? AND user_id = ?", matchID, u.ID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return errCannotWatch
	}
	return nil
}

func sendFrame(conn *realtime.Connection, f realtime.Frame) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	_ = conn.Send(raw)
}

func errorData(msg string) json.RawMessage {
	raw, _ := json.Marshal(gin.H{"message": msg})
	return raw
}
