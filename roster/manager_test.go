package roster_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/notify"
	"github.com/vnkhanh/matchday-server/realtime"
	"github.com/vnkhanh/matchday-server/roster"
	"github.com/vnkhanh/matchday-server/storage"
	st "github.com/vnkhanh/matchday-server/storage/storagetest"
)

type sentNotice struct {
	userID uint
	msg    notify.Message
}

type recorder struct {
	mu      sync.Mutex
	notices []sentNotice
	events  []realtime.Event
}

func (r *recorder) Notify(_ context.Context, userID uint, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, sentNotice{userID: userID, msg: msg})
}

func (r *recorder) Publish(_ context.Context, ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) noticesFor(userID uint) []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Message
	for _, n := range r.notices {
		if n.userID == userID {
			out = append(out, n.msg)
		}
	}
	return out
}

type fixture struct {
	db  *gorm.DB
	rec *recorder
	mgr *roster.Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := st.NewDB(t)
	rec := &recorder{}
	mgr := roster.NewManager(storage.NewRosterStore(db), rec, rec, zerolog.Nop())
	return fixture{db: db, rec: rec, mgr: mgr}
}

func actor(u models.User) roster.Actor {
	return roster.Actor{UserID: u.ID, Role: u.Role}
}

func countConfirmed(t *testing.T, db *gorm.DB, matchID uint) int {
	t.Helper()
	n := 0
	for _, p := range st.Participants(t, db, matchID) {
		if p.Status == models.StatusConfirmed {
			n++
		}
	}
	return n
}

func TestJoinWaitlistAndPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	u1 := st.CreateUser(t, f.db, "u1", nil)
	u2 := st.CreateUser(t, f.db, "u2", nil)
	u3 := st.CreateUser(t, f.db, "u3", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 2)

	for _, u := range []models.User{u1, u2} {
		res, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{})
		if err != nil {
			t.Fatalf("join %s: %v", u.Username, err)
		}
		if res.Status != models.StatusConfirmed {
			t.Fatalf("join %s: status %s, want confirmed", u.Username, res.Status)
		}
	}

	res, err := f.mgr.Join(ctx, m.ID, actor(u3), roster.JoinRequest{})
	if err != nil {
		t.Fatalf("join u3: %v", err)
	}
	if res.Status != models.StatusWaitlist {
		t.Fatalf("u3 status %s, want waitlist", res.Status)
	}

	if err := f.mgr.Leave(ctx, m.ID, actor(u1)); err != nil {
		t.Fatalf("leave: %v", err)
	}

	p := st.ParticipantOf(t, f.db, m.ID, u3.ID)
	if p.Status != models.StatusConfirmed {
		t.Fatalf("u3 after leave: %s, want confirmed", p.Status)
	}
	if got := countConfirmed(t, f.db, m.ID); got != 2 {
		t.Fatalf("confirmed = %d, want 2", got)
	}
	msgs := f.rec.noticesFor(u3.ID)
	if len(msgs) != 1 || msgs[0].Kind() != notify.KindPromoted {
		t.Fatalf("u3 notices = %v, want one promotion", msgs)
	}
}

func TestLeavePromotesLongestWaiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 1)

	first := st.CreateUser(t, f.db, "first", nil)
	w1 := st.CreateUser(t, f.db, "w1", nil)
	w2 := st.CreateUser(t, f.db, "w2", nil)
	w3 := st.CreateUser(t, f.db, "w3", nil)
	for _, u := range []models.User{first, w1, w2, w3} {
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join %s: %v", u.Username, err)
		}
	}
	// w1 rejoins while waitlisted: its row is updated in place and keeps its place in line
	if _, err := f.mgr.Join(ctx, m.ID, actor(w1), roster.JoinRequest{}); err != nil {
		t.Fatalf("rejoin w1: %v", err)
	}

	if err := f.mgr.Leave(ctx, m.ID, actor(first)); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if got := st.ParticipantOf(t, f.db, m.ID, w1.ID).Status; got != models.StatusConfirmed {
		t.Fatalf("w1 = %s, want confirmed", got)
	}
	for _, u := range []models.User{w2, w3} {
		if got := st.ParticipantOf(t, f.db, m.ID, u.ID).Status; got != models.StatusWaitlist {
			t.Fatalf("%s = %s, want waitlist", u.Username, got)
		}
	}
}

func TestLeaveFromWaitlistDoesNotOverfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 1)
	a := st.CreateUser(t, f.db, "a", nil)
	b := st.CreateUser(t, f.db, "b", nil)
	c := st.CreateUser(t, f.db, "c", nil)
	for _, u := range []models.User{a, b, c} {
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	if err := f.mgr.Leave(ctx, m.ID, actor(b)); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := countConfirmed(t, f.db, m.ID); got != 1 {
		t.Fatalf("confirmed = %d, want 1", got)
	}
	if got := st.ParticipantOf(t, f.db, m.ID, c.ID).Status; got != models.StatusWaitlist {
		t.Fatalf("c = %s, want waitlist", got)
	}
}

func TestLeaveErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	u := st.CreateUser(t, f.db, "u", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 4)

	if err := f.mgr.Leave(ctx, m.ID, actor(u)); !errors.Is(err, roster.ErrNotFound) {
		t.Fatalf("leave without row: %v, want ErrNotFound", err)
	}
	if err := f.mgr.Leave(ctx, 9999, actor(u)); !errors.Is(err, roster.ErrNotFound) {
		t.Fatalf("leave missing match: %v, want ErrNotFound", err)
	}

	if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	f.db.Model(&models.Match{}).Where("id = ?", m.ID).Update("status", models.MatchLocked)
	if err := f.mgr.Leave(ctx, m.ID, actor(u)); !errors.Is(err, roster.ErrInvalidState) {
		t.Fatalf("leave locked: %v, want ErrInvalidState", err)
	}
	if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); !errors.Is(err, roster.ErrInvalidState) {
		t.Fatalf("join locked: %v, want ErrInvalidState", err)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 3)

	for i := 0; i < 6; i++ {
		u := st.CreateUser(t, f.db, "p"+string(rune('a'+i)), nil)
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join: %v", err)
		}
		if got := countConfirmed(t, f.db, m.ID); got > 3 {
			t.Fatalf("after %d joins confirmed = %d > capacity", i+1, got)
		}
	}
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 4)

	var users []models.User
	for i := 0; i < 12; i++ {
		users = append(users, st.CreateUser(t, f.db, "c"+string(rune('a'+i)), nil))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(users))
	for _, u := range users {
		wg.Add(1)
		go func(u models.User) {
			defer wg.Done()
			if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
				errs <- err
			}
		}(u)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("join: %v", err)
	}

	if got := countConfirmed(t, f.db, m.ID); got != 4 {
		t.Fatalf("confirmed = %d, want 4", got)
	}
	if got := len(st.Participants(t, f.db, m.ID)); got != 12 {
		t.Fatalf("rows = %d, want 12", got)
	}
}

func TestRejoinKeepsConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	u := st.CreateUser(t, f.db, "u", nil)
	other := st.CreateUser(t, f.db, "other", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 1, st.Private("secret"))

	if res, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{AccessCode: "secret"}); err != nil || res.Status != models.StatusConfirmed {
		t.Fatalf("join with code: %v %v", res, err)
	}

	// no code and not a friend would mean pending_approval for a newcomer
	res, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if res.Status != models.StatusConfirmed {
		t.Fatalf("rejoin status %s, want confirmed", res.Status)
	}

	// full match: an already confirmed player is not pushed to the waitlist either
	if _, err := f.mgr.Join(ctx, m.ID, actor(other), roster.JoinRequest{AccessCode: "secret"}); err != nil {
		t.Fatalf("join other: %v", err)
	}
	res, err = f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{AccessCode: "secret"})
	if err != nil || res.Status != models.StatusConfirmed {
		t.Fatalf("rejoin at capacity: %v %v", res, err)
	}
	if got := len(st.Participants(t, f.db, m.ID)); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
}

func TestPrivateMatchAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong code is forbidden", func(t *testing.T) {
		f := newFixture(t)
		creator := st.CreateUser(t, f.db, "creator", nil)
		u := st.CreateUser(t, f.db, "u", nil)
		st.MakeFriends(t, f.db, creator.ID, u.ID)
		m := st.CreateMatch(t, f.db, creator.ID, 10, st.Private("secret"))

		_, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{AccessCode: "nope"})
		if !errors.Is(err, roster.ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
		if got := len(st.Participants(t, f.db, m.ID)); got != 0 {
			t.Fatalf("rows = %d, want 0", got)
		}
	})

	t.Run("accepted friend is confirmed", func(t *testing.T) {
		f := newFixture(t)
		creator := st.CreateUser(t, f.db, "creator", nil)
		u := st.CreateUser(t, f.db, "u", nil)
		st.MakeFriends(t, f.db, u.ID, creator.ID)
		m := st.CreateMatch(t, f.db, creator.ID, 10, st.Private("secret"))

		res, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{})
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		if res.Status != models.StatusConfirmed {
			t.Fatalf("status %s, want confirmed", res.Status)
		}
	})

	t.Run("stranger waits for approval", func(t *testing.T) {
		f := newFixture(t)
		creator := st.CreateUser(t, f.db, "creator", nil)
		u := st.CreateUser(t, f.db, "u", nil)
		m := st.CreateMatch(t, f.db, creator.ID, 10, st.Private(""))

		res, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{})
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		if res.Status != models.StatusPendingApproval {
			t.Fatalf("status %s, want pending_approval", res.Status)
		}
		msgs := f.rec.noticesFor(creator.ID)
		if len(msgs) != 1 || msgs[0].Kind() != notify.KindJoinRequested {
			t.Fatalf("creator notices = %v", msgs)
		}
	})

	t.Run("pending friendship does not count", func(t *testing.T) {
		f := newFixture(t)
		creator := st.CreateUser(t, f.db, "creator", nil)
		u := st.CreateUser(t, f.db, "u", nil)
		f.db.Create(&models.Friendship{RequesterID: u.ID, AddresseeID: creator.ID, Status: models.FriendPending})
		m := st.CreateMatch(t, f.db, creator.ID, 10, st.Private(""))

		res, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{})
		if err != nil || res.Status != models.StatusPendingApproval {
			t.Fatalf("join: %v %v", res, err)
		}
	})

	t.Run("creator joins own match", func(t *testing.T) {
		f := newFixture(t)
		creator := st.CreateUser(t, f.db, "creator", nil)
		m := st.CreateMatch(t, f.db, creator.ID, 10, st.Private("secret"))

		res, err := f.mgr.Join(ctx, m.ID, actor(creator), roster.JoinRequest{})
		if err != nil || res.Status != models.StatusConfirmed {
			t.Fatalf("join: %v %v", res, err)
		}
	})
}

func TestApproveAndReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	a := st.CreateUser(t, f.db, "a", nil)
	b := st.CreateUser(t, f.db, "b", nil)
	c := st.CreateUser(t, f.db, "c", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 1, st.Private(""))

	for _, u := range []models.User{a, b, c} {
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	if _, err := f.mgr.Approve(ctx, m.ID, actor(b), a.ID); !errors.Is(err, roster.ErrForbidden) {
		t.Fatalf("approve by non-admin: %v, want ErrForbidden", err)
	}

	res, err := f.mgr.Approve(ctx, m.ID, actor(creator), a.ID)
	if err != nil || res.Status != models.StatusConfirmed {
		t.Fatalf("approve a: %v %v", res, err)
	}
	res, err = f.mgr.Approve(ctx, m.ID, actor(creator), b.ID)
	if err != nil || res.Status != models.StatusWaitlist {
		t.Fatalf("approve b at capacity: %v %v", res, err)
	}
	if _, err := f.mgr.Approve(ctx, m.ID, actor(creator), a.ID); !errors.Is(err, roster.ErrInvalidState) {
		t.Fatalf("approve twice: %v, want ErrInvalidState", err)
	}

	if err := f.mgr.Reject(ctx, m.ID, actor(creator), c.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := f.mgr.Reject(ctx, m.ID, actor(creator), c.ID); !errors.Is(err, roster.ErrNotFound) {
		t.Fatalf("reject twice: %v, want ErrNotFound", err)
	}

	kinds := map[uint]notify.Kind{}
	for _, u := range []models.User{a, b, c} {
		msgs := f.rec.noticesFor(u.ID)
		if len(msgs) != 1 {
			t.Fatalf("%s notices = %v", u.Username, msgs)
		}
		kinds[u.ID] = msgs[0].Kind()
	}
	if kinds[a.ID] != notify.KindApproved || kinds[b.ID] != notify.KindWaitlisted || kinds[c.ID] != notify.KindRejected {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestParticipantAdminCanApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	helper := st.CreateUser(t, f.db, "helper", nil)
	u := st.CreateUser(t, f.db, "u", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 5, st.Private("code"))

	if _, err := f.mgr.Join(ctx, m.ID, actor(helper), roster.JoinRequest{AccessCode: "code"}); err != nil {
		t.Fatalf("join helper: %v", err)
	}
	if on, err := f.mgr.ToggleAdmin(ctx, m.ID, actor(creator), helper.ID); err != nil || !on {
		t.Fatalf("toggle admin: %v %v", on, err)
	}
	if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
		t.Fatalf("join u: %v", err)
	}
	if _, err := f.mgr.Approve(ctx, m.ID, actor(helper), u.ID); err != nil {
		t.Fatalf("approve by participant admin: %v", err)
	}
}

func TestGenerateTeams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 10)

	skills := []float64{7, 9, 6, 8}
	byUser := map[uint]float64{}
	for i, s := range skills {
		u := st.CreateUser(t, f.db, "s"+string(rune('a'+i)), st.Skill(s))
		byUser[u.ID] = s
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	sum, err := f.mgr.GenerateTeams(ctx, m.ID, actor(creator))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if sum.SkillA != 15 || sum.SkillB != 15 || sum.CountA != 2 || sum.CountB != 2 {
		t.Fatalf("summary = %+v", sum)
	}

	want := map[float64]models.Team{9: models.TeamA, 8: models.TeamB, 7: models.TeamB, 6: models.TeamA}
	for _, p := range st.Participants(t, f.db, m.ID) {
		if got := p.Team; got != want[byUser[p.UserID]] {
			t.Fatalf("skill %v on team %q, want %q", byUser[p.UserID], got, want[byUser[p.UserID]])
		}
	}
	if got := len(f.rec.notices); got != 4 {
		t.Fatalf("notices = %d, want 4", got)
	}
}

func TestGenerateTeamsNeedsTwoPlayers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	u := st.CreateUser(t, f.db, "u", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 10)
	if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := f.mgr.GenerateTeams(ctx, m.ID, actor(u)); !errors.Is(err, roster.ErrForbidden) {
		t.Fatalf("by player: %v, want ErrForbidden", err)
	}
	if _, err := f.mgr.GenerateTeams(ctx, m.ID, actor(creator)); !errors.Is(err, roster.ErrValidation) {
		t.Fatalf("one player: %v, want ErrValidation", err)
	}
}

func TestJoinAssignsSmallerTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 10)

	a := st.CreateUser(t, f.db, "a", nil)
	teamA := models.TeamA
	if res, err := f.mgr.Join(ctx, m.ID, actor(a), roster.JoinRequest{Team: &teamA}); err != nil || res.Team != models.TeamA {
		t.Fatalf("join a: %v %v", res, err)
	}

	b := st.CreateUser(t, f.db, "b", nil)
	res, err := f.mgr.Join(ctx, m.ID, actor(b), roster.JoinRequest{})
	if err != nil || res.Team != models.TeamB {
		t.Fatalf("join b: %v %v, want team B", res, err)
	}

	// 1-1: tie leaves the newcomer without a team
	c := st.CreateUser(t, f.db, "c", nil)
	res, err = f.mgr.Join(ctx, m.ID, actor(c), roster.JoinRequest{})
	if err != nil || res.Team != models.TeamNone {
		t.Fatalf("join c: %v %v, want no team", res, err)
	}
}

func TestNoTeamsYetMeansNoAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 10)
	u := st.CreateUser(t, f.db, "u", nil)

	res, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{})
	if err != nil || res.Team != models.TeamNone {
		t.Fatalf("join: %v %v", res, err)
	}
}

func TestDeclineFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 1)
	a := st.CreateUser(t, f.db, "a", nil)
	b := st.CreateUser(t, f.db, "b", nil)

	for _, u := range []models.User{a, b} {
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	res, err := f.mgr.Join(ctx, m.ID, actor(a), roster.JoinRequest{Status: models.StatusDeclined})
	if err != nil || res.Status != models.StatusDeclined {
		t.Fatalf("decline: %v %v", res, err)
	}
	if got := st.ParticipantOf(t, f.db, m.ID, b.ID).Status; got != models.StatusConfirmed {
		t.Fatalf("b = %s, want confirmed", got)
	}

	if _, err := f.mgr.Join(ctx, m.ID, actor(a), roster.JoinRequest{Status: models.StatusWaitlist}); !errors.Is(err, roster.ErrValidation) {
		t.Fatalf("join as waitlist: %v, want ErrValidation", err)
	}
}

func TestMovePlayerAndCaptain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 10)
	a := st.CreateUser(t, f.db, "a", nil)
	b := st.CreateUser(t, f.db, "b", nil)
	teamA := models.TeamA
	for _, u := range []models.User{a, b} {
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{Team: &teamA}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	if err := f.mgr.SetCaptain(ctx, m.ID, actor(creator), a.ID); err != nil {
		t.Fatalf("captain a: %v", err)
	}
	if err := f.mgr.SetCaptain(ctx, m.ID, actor(creator), b.ID); err != nil {
		t.Fatalf("captain b: %v", err)
	}
	if st.ParticipantOf(t, f.db, m.ID, a.ID).Captain || !st.ParticipantOf(t, f.db, m.ID, b.ID).Captain {
		t.Fatal("team A must have exactly one captain: b")
	}

	if err := f.mgr.MovePlayer(ctx, m.ID, actor(creator), b.ID, models.TeamB); err != nil {
		t.Fatalf("move: %v", err)
	}
	pb := st.ParticipantOf(t, f.db, m.ID, b.ID)
	if pb.Team != models.TeamB || pb.Captain {
		t.Fatalf("b after move = %+v", pb)
	}

	if err := f.mgr.MovePlayer(ctx, m.ID, actor(a), b.ID, models.TeamA); !errors.Is(err, roster.ErrForbidden) {
		t.Fatalf("move by player: %v, want ErrForbidden", err)
	}
	stranger := st.CreateUser(t, f.db, "stranger", nil)
	if err := f.mgr.MovePlayer(ctx, m.ID, actor(creator), stranger.ID, models.TeamA); !errors.Is(err, roster.ErrNotFound) {
		t.Fatalf("move stranger: %v, want ErrNotFound", err)
	}
}

func TestPlatformAdminCanManage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	admin := st.CreateUser(t, f.db, "root", nil)
	admin.Role = models.RoleAdmin
	m := st.CreateMatch(t, f.db, creator.ID, 10)
	u := st.CreateUser(t, f.db, "u", nil)
	if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.mgr.ToggleAdmin(ctx, m.ID, actor(admin), u.ID); err != nil {
		t.Fatalf("toggle by platform admin: %v", err)
	}
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	u := st.CreateUser(t, f.db, "u", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 10, st.Private("x"))

	if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{AccessCode: "bad"}); err == nil {
		t.Fatal("expected error")
	}
	if len(f.rec.events) != 0 {
		t.Fatalf("failed join published %v", f.rec.events)
	}

	if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{AccessCode: "x"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(f.rec.events) != 1 || f.rec.events[0].Kind != realtime.RosterChanged || f.rec.events[0].MatchID != m.ID {
		t.Fatalf("events = %v", f.rec.events)
	}
}

func TestResizePromotesIntoNewSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 1)
	var users []models.User
	for i := 0; i < 4; i++ {
		u := st.CreateUser(t, f.db, "r"+string(rune('a'+i)), nil)
		users = append(users, u)
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	if err := f.mgr.Resize(ctx, m.ID, actor(users[0]), 5); !errors.Is(err, roster.ErrForbidden) {
		t.Fatalf("resize by player: %v, want ErrForbidden", err)
	}
	if err := f.mgr.Resize(ctx, m.ID, actor(creator), 3); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if got := countConfirmed(t, f.db, m.ID); got != 3 {
		t.Fatalf("confirmed = %d, want 3", got)
	}
	if got := st.ParticipantOf(t, f.db, m.ID, users[3].ID).Status; got != models.StatusWaitlist {
		t.Fatalf("last joiner = %s, want waitlist", got)
	}
	if err := f.mgr.Resize(ctx, m.ID, actor(creator), 2); !errors.Is(err, roster.ErrValidation) {
		t.Fatalf("shrink below confirmed: %v, want ErrValidation", err)
	}
}

func TestReopenPromotesBeforeLatecomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	waiter := st.CreateUser(t, f.db, "waiter", nil)
	late := st.CreateUser(t, f.db, "late", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 1)

	for _, u := range []models.User{creator, waiter} {
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join %s: %v", u.Username, err)
		}
	}
	if _, err := f.mgr.SetStatus(ctx, m.ID, actor(creator), models.MatchLocked, nil); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := f.mgr.Resize(ctx, m.ID, actor(creator), 2); err != nil {
		t.Fatalf("resize while locked: %v", err)
	}
	if got := st.ParticipantOf(t, f.db, m.ID, waiter.ID).Status; got != models.StatusWaitlist {
		t.Fatalf("waiter promoted while locked: %s", got)
	}

	prev, err := f.mgr.SetStatus(ctx, m.ID, actor(creator), models.MatchOpen, nil)
	if err != nil || prev != models.MatchLocked {
		t.Fatalf("reopen: %v %v", prev, err)
	}
	if got := st.ParticipantOf(t, f.db, m.ID, waiter.ID).Status; got != models.StatusConfirmed {
		t.Fatalf("waiter after reopen = %s, want confirmed", got)
	}

	res, err := f.mgr.Join(ctx, m.ID, actor(late), roster.JoinRequest{})
	if err != nil {
		t.Fatalf("latecomer: %v", err)
	}
	if res.Status != models.StatusWaitlist {
		t.Fatalf("latecomer = %s, want waitlist", res.Status)
	}
	if got := countConfirmed(t, f.db, m.ID); got != 2 {
		t.Fatalf("confirmed = %d, want 2", got)
	}
}

func TestJoinYieldsToWaitlistHead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	waiter := st.CreateUser(t, f.db, "waiter", nil)
	late := st.CreateUser(t, f.db, "late", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 1)
	for _, u := range []models.User{creator, waiter} {
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	// slot trống nhưng chưa ai promote
	if err := f.db.Model(&models.Match{}).Where("id = ?", m.ID).Update("max_players", 2).Error; err != nil {
		t.Fatalf("grow: %v", err)
	}

	res, err := f.mgr.Join(ctx, m.ID, actor(late), roster.JoinRequest{})
	if err != nil || res.Status != models.StatusWaitlist {
		t.Fatalf("latecomer: %v %v, want waitlist", res, err)
	}
	res, err = f.mgr.Join(ctx, m.ID, actor(waiter), roster.JoinRequest{})
	if err != nil || res.Status != models.StatusConfirmed {
		t.Fatalf("waitlist head rejoin: %v %v, want confirmed", res, err)
	}
}

func TestUpdateMatchAccessCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 4)

	code := "ABC123"
	capacity := 6
	_, err := f.mgr.UpdateMatch(ctx, m.ID, actor(creator), roster.MatchPatch{MaxPlayers: &capacity, CodeSet: true, AccessCode: &code})
	if !errors.Is(err, roster.ErrValidation) {
		t.Fatalf("code on public match: %v, want ErrValidation", err)
	}
	var stored models.Match
	f.db.First(&stored, m.ID)
	if stored.MaxPlayers != 4 || stored.AccessCode != nil {
		t.Fatalf("rejected update leaked: %+v", stored)
	}

	private := true
	got, err := f.mgr.UpdateMatch(ctx, m.ID, actor(creator), roster.MatchPatch{IsPrivate: &private})
	if err != nil {
		t.Fatalf("make private: %v", err)
	}
	if got.AccessCode == nil || len(*got.AccessCode) != 8 {
		t.Fatalf("private match code = %v", got.AccessCode)
	}

	public := false
	got, err = f.mgr.UpdateMatch(ctx, m.ID, actor(creator), roster.MatchPatch{IsPrivate: &public})
	if err != nil {
		t.Fatalf("make public: %v", err)
	}
	f.db.First(&stored, m.ID)
	if got.AccessCode != nil || stored.AccessCode != nil {
		t.Fatalf("public match kept code %v / %v", got.AccessCode, stored.AccessCode)
	}

	loc := "Campo 9"
	got, err = f.mgr.UpdateMatch(ctx, m.ID, actor(creator), roster.MatchPatch{Location: &loc, MaxPlayers: &capacity})
	if err != nil || got.Location != loc || got.MaxPlayers != capacity {
		t.Fatalf("update: %+v %v", got, err)
	}

	player := st.CreateUser(t, f.db, "player", nil)
	if _, err := f.mgr.UpdateMatch(ctx, m.ID, actor(player), roster.MatchPatch{Location: &loc}); !errors.Is(err, roster.ErrForbidden) {
		t.Fatalf("update by stranger: %v, want ErrForbidden", err)
	}
	zero := 0
	if _, err := f.mgr.UpdateMatch(ctx, m.ID, actor(creator), roster.MatchPatch{MaxPlayers: &zero}); !errors.Is(err, roster.ErrValidation) {
		t.Fatalf("zero capacity: %v, want ErrValidation", err)
	}
}

func TestSetStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := st.CreateUser(t, f.db, "creator", nil)
	a := st.CreateUser(t, f.db, "a", st.Skill(5))
	b := st.CreateUser(t, f.db, "b", nil)
	m := st.CreateMatch(t, f.db, creator.ID, 10)
	for _, u := range []models.User{a, b} {
		if _, err := f.mgr.Join(ctx, m.ID, actor(u), roster.JoinRequest{}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	if _, err := f.mgr.SetStatus(ctx, m.ID, actor(a), models.MatchVoting, nil); !errors.Is(err, roster.ErrForbidden) {
		t.Fatalf("status by player: %v, want ErrForbidden", err)
	}
	if _, err := f.mgr.SetStatus(ctx, m.ID, actor(creator), models.MatchStatus("paused"), nil); !errors.Is(err, roster.ErrValidation) {
		t.Fatalf("unknown status: %v, want ErrValidation", err)
	}
	if _, err := f.mgr.SetStatus(ctx, m.ID, actor(creator), models.MatchLocked, &roster.Score{A: 1, B: 0}); !errors.Is(err, roster.ErrValidation) {
		t.Fatalf("score while locked: %v, want ErrValidation", err)
	}

	if _, err := f.mgr.SetStatus(ctx, m.ID, actor(creator), models.MatchVoting, nil); err != nil {
		t.Fatalf("voting: %v", err)
	}
	msgs := f.rec.noticesFor(a.ID)
	if len(msgs) != 1 || msgs[0].Kind() != notify.KindVotingStarted {
		t.Fatalf("a notices = %v", msgs)
	}

	v := models.Vote{MatchID: m.ID, VoterID: b.ID, TargetID: a.ID, Rating: 9}
	if err := storage.UpsertVote(ctx, f.db, &v); err != nil {
		t.Fatalf("vote: %v", err)
	}
	prev, err := f.mgr.SetStatus(ctx, m.ID, actor(creator), models.MatchFinished, &roster.Score{A: 3, B: 2})
	if err != nil || prev != models.MatchVoting {
		t.Fatalf("finish: %v %v", prev, err)
	}

	var ua models.User
	f.db.First(&ua, a.ID)
	if ua.SkillRating == nil || *ua.SkillRating != 9 {
		t.Fatalf("a rating = %v, want 9", ua.SkillRating)
	}
	var stored models.Match
	f.db.First(&stored, m.ID)
	if stored.Status != models.MatchFinished || stored.ScoreA == nil || *stored.ScoreA != 3 || *stored.ScoreB != 2 {
		t.Fatalf("stored match = %+v", stored)
	}
	msgs = f.rec.noticesFor(b.ID)
	if len(msgs) != 2 || msgs[1].Kind() != notify.KindMatchFinished {
		t.Fatalf("b notices = %v", msgs)
	}
	last := f.rec.events[len(f.rec.events)-1]
	if last.Kind != realtime.MatchUpdated || last.Status != string(models.MatchFinished) {
		t.Fatalf("last event = %+v", last)
	}
}
