// Package storagetest opens throwaway SQLite databases for tests.
package storagetest

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/storage"
)

// NewDB returns a migrated in-memory database that lives as long as the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// mỗi connection :memory: là một DB riêng, nên chỉ giữ đúng một
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := storage.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user named name; skill may be nil.
func CreateUser(t testing.TB, db *gorm.DB, name string, skill *float64) models.User {
	t.Helper()
	u := models.User{
		Username:     name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: "x",
		SkillRating:  skill,
		Role:         models.RoleUser,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

// CreateMatch inserts an open match owned by creatorID with the given capacity.
func CreateMatch(t testing.TB, db *gorm.DB, creatorID uint, capacity int, opts ...func(*models.Match)) models.Match {
	t.Helper()
	m := models.Match{
		DateTime:   time.Now().Add(24 * time.Hour),
		Location:   "Campo 1",
		SportType:  "football",
		MaxPlayers: capacity,
		Status:     models.MatchOpen,
		CreatorID:  &creatorID,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("create match: %v", err)
	}
	return m
}

// Private makes a match private with the given access code ("" for none).
func Private(code string) func(*models.Match) {
	return func(m *models.Match) {
		m.IsPrivate = true
		if code != "" {
			m.AccessCode = &code
		}
	}
}

// MakeFriends stores an accepted friendship between a and b.
func MakeFriends(t testing.TB, db *gorm.DB, a, b uint) {
	t.Helper()
	f := models.Friendship{RequesterID: a, AddresseeID: b, Status: models.FriendAccepted}
	if err := db.Create(&f).Error; err != nil {
		t.Fatalf("create friendship: %v", err)
	}
}

// Participants returns the match roster ordered by id.
func Participants(t testing.TB, db *gorm.DB, matchID uint) []models.Participant {
	t.Helper()
	var ps []models.Participant
	if err := db.Where("match_id = ?", matchID).Order("id ASC").Find(&ps).Error; err != nil {
		t.Fatalf("load participants: %v", err)
	}
	return ps
}

// ParticipantOf returns userID's row in matchID, failing the test if missing.
func ParticipantOf(t testing.TB, db *gorm.DB, matchID, userID uint) models.Participant {
	t.Helper()
	var p models.Participant
	if err := db.Where("match_id = ? AND user_id = ?", matchID, userID).First(&p).Error; err != nil {
		t.Fatalf("participant %d/%d: %v", matchID, userID, err)
	}
	return p
}

func Skill(v float64) *float64 {
	return &v
}
