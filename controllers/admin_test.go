package controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/vnkhanh/matchday-server/models"
	st "github.com/vnkhanh/matchday-server/storage/storagetest"
)

// finishedMatch seeds a finished match with a final score and confirmed players per team.
func finishedMatch(t *testing.T, a *api, creator uint, scoreA, scoreB int, teams map[uint]models.Team) models.Match {
	t.Helper()
	m := st.CreateMatch(t, a.db, creator, 10, func(m *models.Match) {
		m.Status = models.MatchFinished
		m.ScoreA, m.ScoreB = &scoreA, &scoreB
	})
	for id, team := range teams {
		p := models.Participant{MatchID: m.ID, UserID: id, Status: models.StatusConfirmed, Team: team}
		if err := a.db.Create(&p).Error; err != nil {
			t.Fatalf("seed participant: %v", err)
		}
	}
	return m
}

func seedVote(t *testing.T, a *api, matchID, voter, target uint, rating int, tags string) {
	t.Helper()
	v := models.Vote{MatchID: matchID, VoterID: voter, TargetID: target, Rating: rating}
	if tags != "" {
		v.Tags = &tags
	}
	if err := a.db.Create(&v).Error; err != nil {
		t.Fatalf("seed vote: %v", err)
	}
}

func list(out map[string]any) []any {
	l, _ := out["data"].([]any)
	return l
}

func TestUserStatsAndHistory(t *testing.T) {
	a := newAPI(t)
	host, _ := a.user("host", nil)
	b, bTok := a.user("b", nil)
	c, _ := a.user("c", nil)

	m := finishedMatch(t, a, host.ID, 3, 1, map[uint]models.Team{host.ID: models.TeamA, b.ID: models.TeamA, c.ID: models.TeamB})
	seedVote(t, a, m.ID, host.ID, b.ID, 8, "MVP, fast")
	seedVote(t, a, m.ID, c.ID, b.ID, 6, "fast")

	stats := data(a.expect(http.StatusOK, "GET", "/api/me/stats", bTok, nil))
	if stats["matches_played"] != 1.0 || stats["matches_won"] != 1.0 || stats["mvp_count"] != 1.0 {
		t.Fatalf("stats = %v", stats)
	}
	tags, _ := stats["tags"].([]any)
	if len(tags) != 2 {
		t.Fatalf("tags = %v", tags)
	}
	if top := tags[0].(map[string]any); top["tag"] != "fast" || top["count"] != 2.0 {
		t.Fatalf("top tag = %v", top)
	}
	if recent, _ := stats["recent_ratings"].([]any); len(recent) != 2 {
		t.Fatalf("recent ratings = %v", stats["recent_ratings"])
	}

	history := list(a.expect(http.StatusOK, "GET", "/api/me/history", bTok, nil))
	if len(history) != 1 {
		t.Fatalf("history = %v", history)
	}
	h := history[0].(map[string]any)
	if h["result"] != models.ResultWin || h["user_team"] != "A" || h["avg_rating"] != 7.0 || h["vote_count"] != 2.0 {
		t.Fatalf("entry = %v", h)
	}
	if got, _ := h["tags"].([]any); len(got) != 2 || got[0] != "MVP" || got[1] != "fast" {
		t.Fatalf("entry tags = %v", h["tags"])
	}

	other := list(a.expect(http.StatusOK, "GET", fmt.Sprintf("/api/users/%d/history", c.ID), bTok, nil))
	if len(other) != 1 {
		t.Fatalf("c history = %v", other)
	}
	if e := other[0].(map[string]any); e["result"] != models.ResultLoss || e["avg_rating"] != nil || e["vote_count"] != 0.0 {
		t.Fatalf("c entry = %v", e)
	}
	a.expect(http.StatusOK, "GET", fmt.Sprintf("/api/users/%d/stats", c.ID), bTok, nil)
	a.expect(http.StatusNotFound, "GET", "/api/users/999/stats", bTok, nil)
}

func TestHeadToHead(t *testing.T) {
	a := newAPI(t)
	host, _ := a.user("host", nil)
	b, bTok := a.user("b", nil)
	c, _ := a.user("c", nil)

	finishedMatch(t, a, host.ID, 2, 0, map[uint]models.Team{b.ID: models.TeamA, c.ID: models.TeamB})
	finishedMatch(t, a, host.ID, 1, 1, map[uint]models.Team{b.ID: models.TeamB, c.ID: models.TeamB})
	// chưa kết thúc thì không tính
	open := st.CreateMatch(t, a.db, host.ID, 10)
	for _, id := range []uint{b.ID, c.ID} {
		a.db.Create(&models.Participant{MatchID: open.ID, UserID: id, Status: models.StatusConfirmed, Team: models.TeamA})
	}

	out := data(a.expect(http.StatusOK, "GET", fmt.Sprintf("/api/users/%d/head-to-head", c.ID), bTok, nil))
	if out["total_matches"] != 2.0 || out["played_together"] != 1.0 || out["played_against"] != 1.0 {
		t.Fatalf("h2h = %v", out)
	}
	against := out["against"].(map[string]any)
	together := out["together"].(map[string]any)
	if against["wins"] != 1.0 || together["draws"] != 1.0 {
		t.Fatalf("records: against %v together %v", against, together)
	}
	if last, _ := out["last_5_matches"].([]any); len(last) != 2 {
		t.Fatalf("last matches = %v", out["last_5_matches"])
	}

	a.expect(http.StatusBadRequest, "GET", fmt.Sprintf("/api/users/%d/head-to-head", b.ID), bTok, nil)
	a.expect(http.StatusNotFound, "GET", "/api/users/999/head-to-head", bTok, nil)
}

func TestSearchUsers(t *testing.T) {
	a := newAPI(t)
	_, tok := a.user("hostess", nil)
	a.user("Host", nil)
	a.user("guest", nil)

	found := list(a.expect(http.StatusOK, "GET", "/api/users/search?q=HOST", tok, nil))
	if len(found) != 1 || found[0].(map[string]any)["username"] != "Host" {
		t.Fatalf("search = %v", found)
	}
	if empty := list(a.expect(http.StatusOK, "GET", "/api/users/search?q=", tok, nil)); len(empty) != 0 {
		t.Fatalf("empty query = %v", empty)
	}
}

func TestReportsAndModeration(t *testing.T) {
	a := newAPI(t)
	host, _ := a.user("host", nil)
	b, bTok := a.user("b", nil)
	c, _ := a.user("c", nil)
	boss := st.CreateUser(t, a.db, "boss", nil)
	a.db.Model(&boss).Update("role", models.RoleAdmin)
	adminTok, _ := a.tokens.GenerateToken(boss.ID, models.RoleAdmin)

	m := st.CreateMatch(t, a.db, host.ID, 10)
	report := map[string]any{"reported_user_id": c.ID, "match_id": m.ID, "reason": "no-show"}
	a.expect(http.StatusCreated, "POST", "/api/reports", bTok, report)
	a.expect(http.StatusUnprocessableEntity, "POST", "/api/reports", bTok, map[string]any{"reported_user_id": b.ID, "reason": "x"})
	a.expect(http.StatusNotFound, "POST", "/api/reports", bTok, map[string]any{"reported_user_id": 999, "reason": "x"})
	a.expect(http.StatusBadRequest, "POST", "/api/reports", bTok, map[string]any{"reported_user_id": c.ID})

	a.expect(http.StatusForbidden, "GET", "/api/admin/stats", bTok, nil)
	a.expect(http.StatusForbidden, "GET", "/api/admin/reports", bTok, nil)

	stats := data(a.expect(http.StatusOK, "GET", "/api/admin/stats", adminTok, nil))
	if stats["users"] != 4.0 || stats["matches"] != 1.0 || stats["reports"] != 1.0 {
		t.Fatalf("stats = %v", stats)
	}

	reports := list(a.expect(http.StatusOK, "GET", "/api/admin/reports?status=pending", adminTok, nil))
	if len(reports) != 1 {
		t.Fatalf("reports = %v", reports)
	}
	id := uint(reports[0].(map[string]any)["id"].(float64))
	path := fmt.Sprintf("/api/admin/reports/%d/status", id)
	a.expect(http.StatusUnprocessableEntity, "PATCH", path, adminTok, map[string]string{"status": "closed"})
	a.expect(http.StatusOK, "PATCH", path, adminTok, map[string]string{"status": "reviewed"})
	a.expect(http.StatusNotFound, "PATCH", "/api/admin/reports/999/status", adminTok, map[string]string{"status": "reviewed"})
	if stats := data(a.expect(http.StatusOK, "GET", "/api/admin/stats", adminTok, nil)); stats["reports"] != 0.0 {
		t.Fatalf("pending after review = %v", stats["reports"])
	}

	matches := list(a.expect(http.StatusOK, "GET", "/api/admin/matches", adminTok, nil))
	if len(matches) != 1 || matches[0].(map[string]any)["creator_name"] != "host" {
		t.Fatalf("admin matches = %v", matches)
	}

	a.expect(http.StatusOK, "DELETE", fmt.Sprintf("/api/admin/matches/%d", m.ID), adminTok, nil)
	a.expect(http.StatusNotFound, "DELETE", fmt.Sprintf("/api/admin/matches/%d", m.ID), adminTok, nil)
	var r models.Report
	a.db.First(&r, id)
	if r.MatchID != nil {
		t.Fatalf("report still points at deleted match: %v", *r.MatchID)
	}
}

func TestAdminDeleteUserPromotesWaitlist(t *testing.T) {
	a := newAPI(t)
	host, _ := a.user("host", nil)
	b, bTok := a.user("b", nil)
	c, cTok := a.user("c", nil)
	boss := st.CreateUser(t, a.db, "boss", nil)
	a.db.Model(&boss).Update("role", models.RoleAdmin)
	adminTok, _ := a.tokens.GenerateToken(boss.ID, models.RoleAdmin)

	m := st.CreateMatch(t, a.db, host.ID, 1)
	a.expect(http.StatusOK, "POST", matchPath(m.ID, "/join"), bTok, nil)
	a.expect(http.StatusOK, "POST", matchPath(m.ID, "/join"), cTok, nil)
	created := st.CreateMatch(t, a.db, b.ID, 10)

	a.expect(http.StatusUnprocessableEntity, "DELETE", fmt.Sprintf("/api/admin/users/%d", boss.ID), adminTok, nil)
	a.expect(http.StatusOK, "DELETE", fmt.Sprintf("/api/admin/users/%d", b.ID), adminTok, nil)
	a.expect(http.StatusNotFound, "DELETE", fmt.Sprintf("/api/admin/users/%d", b.ID), adminTok, nil)
	a.dispatcher.Wait()

	if p := st.ParticipantOf(t, a.db, m.ID, c.ID); p.Status != models.StatusConfirmed {
		t.Fatalf("c = %s, want confirmed", p.Status)
	}
	var n int64
	a.db.Model(&models.User{}).Where("id = ?", b.ID).Count(&n)
	if n != 0 {
		t.Fatal("user still exists")
	}
	var kept models.Match
	a.db.First(&kept, created.ID)
	if kept.ID == 0 || kept.CreatorID != nil {
		t.Fatalf("created match = %+v, want kept without creator", kept)
	}
	// token của user đã xoá không dùng được nữa
	a.expect(http.StatusUnauthorized, "GET", "/api/me", bTok, nil)

	users := list(a.expect(http.StatusOK, "GET", "/api/admin/users", adminTok, nil))
	if len(users) != 3 {
		t.Fatalf("users = %v", users)
	}
}
