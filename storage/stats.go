package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/models"
)

// mvpTag is the vote tag counted as an MVP award.
const mvpTag = "MVP"

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type RecentRating struct {
	Rating    int       `json:"rating"`
	DateTime  time.Time `json:"date_time"`
	SportType string    `json:"sport_type"`
}

// UserStats tổng hợp thành tích của một user qua các match đã xác nhận.
type UserStats struct {
	MatchesPlayed int64          `json:"matches_played"`
	MatchesWon    int64          `json:"matches_won"`
	MVPCount      int64          `json:"mvp_count"`
	Tags          []TagCount     `json:"tags"`
	RecentRatings []RecentRating `json:"recent_ratings"`
}

type HistoryEntry struct {
	MatchID   uint        `json:"id"`
	DateTime  time.Time   `json:"date_time"`
	Location  string      `json:"location"`
	SportType string      `json:"sport_type"`
	ScoreA    *int        `json:"score_team_a"`
	ScoreB    *int        `json:"score_team_b"`
	Team      models.Team `json:"user_team"`
	Result    string      `json:"result"`
	AvgRating *float64    `json:"avg_rating"`
	VoteCount int         `json:"vote_count"`
	Tags      []string    `json:"tags"`
}

type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

func (r *Record) add(result string) {
	switch result {
	case models.ResultWin:
		r.Wins++
	case models.ResultLoss:
		r.Losses++
	default:
		r.Draws++
	}
}

type SharedMatch struct {
	MatchID        uint      `json:"id"`
	DateTime       time.Time `json:"date"`
	SportType      string    `json:"sport"`
	PlayedTogether bool      `json:"played_together"`
	Result         string    `json:"result"`
	Score          *string   `json:"score"`
}

// HeadToHead so sánh user với một user khác trên các match cả hai cùng đá.
type HeadToHead struct {
	TotalMatches   int           `json:"total_matches"`
	PlayedTogether int           `json:"played_together"`
	PlayedAgainst  int           `json:"played_against"`
	Together       Record        `json:"together"`
	Against        Record        `json:"against"`
	LastMatches    []SharedMatch `json:"last_5_matches"`
}

// playedMatch là một match đã kết thúc cùng team của user trong match đó.
type playedMatch struct {
	models.Match
	UserTeam models.Team `gorm:"column:user_team"`
}

func finishedMatchesOf(db *gorm.DB, userID uint) ([]playedMatch, error) {
	var rows []playedMatch
	err := db.Table("matches").
		Select("matches.*, participants.team AS user_team").
		Joins("JOIN participants ON participants.match_id = matches.id").
		Where("participants.user_id = ? AND participants.status = ? AND matches.status = ?",
			userID, models.StatusConfirmed, models.MatchFinished).
		Order("matches.date_time DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("storage: finished matches of %d: %w", userID, err)
	}
	return rows, nil
}

// splitTags tách chuỗi tags "a, b,c" thành từng tag, bỏ rỗng.
func splitTags(s *string) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, t := range strings.Split(*s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func GetUserStats(ctx context.Context, db *gorm.DB, userID uint) (UserStats, error) {
	db = db.WithContext(ctx)
	stats := UserStats{Tags: []TagCount{}, RecentRatings: []RecentRating{}}

	err := db.Model(&models.Participant{}).
		Where("user_id = ? AND status = ?", userID, models.StatusConfirmed).
		Count(&stats.MatchesPlayed).Error
	if err != nil {
		return stats, fmt.Errorf("storage: matches played: %w", err)
	}

	played, err := finishedMatchesOf(db, userID)
	if err != nil {
		return stats, err
	}
	for _, m := range played {
		if m.ResultFor(m.UserTeam) == models.ResultWin {
			stats.MatchesWon++
		}
	}

	var tags []*string
	err = db.Model(&models.Vote{}).
		Where("target_id = ? AND tags IS NOT NULL AND tags <> ''", userID).
		Pluck("tags", &tags).Error
	if err != nil {
		return stats, fmt.Errorf("storage: vote tags: %w", err)
	}
	counts := map[string]int{}
	for _, raw := range tags {
		mvp := false
		for _, t := range splitTags(raw) {
			counts[t]++
			if strings.EqualFold(t, mvpTag) {
				mvp = true
			}
		}
		if mvp {
			stats.MVPCount++
		}
	}
	for tag, n := range counts {
		stats.Tags = append(stats.Tags, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(stats.Tags, func(i, j int) bool {
		if stats.Tags[i].Count != stats.Tags[j].Count {
			return stats.Tags[i].Count > stats.Tags[j].Count
		}
		return stats.Tags[i].Tag < stats.Tags[j].Tag
	})

	err = db.Table("votes").
		Select("votes.rating, matches.date_time, matches.sport_type").
		Joins("JOIN matches ON matches.id = votes.match_id").
		Where("votes.target_id = ?", userID).
		Order("matches.date_time DESC, votes.id DESC").
		Limit(5).
		Scan(&stats.RecentRatings).Error
	if err != nil {
		return stats, fmt.Errorf("storage: recent ratings: %w", err)
	}
	return stats, nil
}

// MatchHistory liệt kê các match đã kết thúc user đá chính thức, mới nhất trước,
// kèm điểm trung bình và tags user nhận được trong từng match.
func MatchHistory(ctx context.Context, db *gorm.DB, userID uint) ([]HistoryEntry, error) {
	db = db.WithContext(ctx)
	played, err := finishedMatchesOf(db, userID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(played))
	if len(played) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(played))
	for _, m := range played {
		ids = append(ids, m.ID)
	}
	var votes []models.Vote
	if err := db.Where("target_id = ? AND match_id IN ?", userID, ids).Order("id").Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("storage: history votes: %w", err)
	}
	byMatch := map[uint][]models.Vote{}
	for _, v := range votes {
		byMatch[v.MatchID] = append(byMatch[v.MatchID], v)
	}

	for _, m := range played {
		e := HistoryEntry{
			MatchID:   m.ID,
			DateTime:  m.DateTime,
			Location:  m.Location,
			SportType: m.SportType,
			ScoreA:    m.ScoreA,
			ScoreB:    m.ScoreB,
			Team:      m.UserTeam,
			Result:    m.ResultFor(m.UserTeam),
			Tags:      []string{},
		}
		seen := map[string]bool{}
		sum := 0
		for _, v := range byMatch[m.ID] {
			sum += v.Rating
			for _, t := range splitTags(v.Tags) {
				if !seen[t] {
					seen[t] = true
					e.Tags = append(e.Tags, t)
				}
			}
		}
		if n := len(byMatch[m.ID]); n > 0 {
			avg := math.Round(float64(sum)/float64(n)*10) / 10
			e.AvgRating = &avg
			e.VoteCount = n
		}
		out = append(out, e)
	}
	return out, nil
}

type sharedRow struct {
	models.Match
	MyTeam    models.Team `gorm:"column:my_team"`
	OtherTeam models.Team `gorm:"column:other_team"`
}

// GetHeadToHead tính thành tích của me khi đá cùng đội và khi đối đầu với other.
func GetHeadToHead(ctx context.Context, db *gorm.DB, me, other uint) (HeadToHead, error) {
	var rows []sharedRow
	err := db.WithContext(ctx).Table("matches").
		Select("matches.*, p1.team AS my_team, p2.team AS other_team").
		Joins("JOIN participants p1 ON p1.match_id = matches.id").
		Joins("JOIN participants p2 ON p2.match_id = matches.id").
		Where("p1.user_id = ? AND p2.user_id = ? AND p1.status = ? AND p2.status = ? AND matches.status = ?",
			me, other, models.StatusConfirmed, models.StatusConfirmed, models.MatchFinished).
		Order("matches.date_time DESC").
		Scan(&rows).Error
	if err != nil {
		return HeadToHead{}, fmt.Errorf("storage: head to head %d/%d: %w", me, other, err)
	}

	h := HeadToHead{TotalMatches: len(rows), LastMatches: []SharedMatch{}}
	for _, r := range rows {
		result := r.ResultFor(r.MyTeam)
		together := r.MyTeam == r.OtherTeam
		if together {
			h.PlayedTogether++
			h.Together.add(result)
		} else {
			h.PlayedAgainst++
			h.Against.add(result)
		}
		if len(h.LastMatches) < 5 {
			sm := SharedMatch{MatchID: r.ID, DateTime: r.DateTime, SportType: r.SportType, PlayedTogether: together, Result: result}
			if r.ScoreA != nil && r.ScoreB != nil {
				score := fmt.Sprintf("%d-%d", *r.ScoreA, *r.ScoreB)
				sm.Score = &score
			}
			h.LastMatches = append(h.LastMatches, sm)
		}
	}
	return h, nil
}

// SearchUsers tìm theo username (không phân biệt hoa thường), bỏ qua chính mình, tối đa 10.
func SearchUsers(ctx context.Context, db *gorm.DB, query string, self uint) ([]models.User, error) {
	users := []models.User{}
	query = strings.TrimSpace(query)
	if query == "" {
		return users, nil
	}
	err := db.WithContext(ctx).
		Where("LOWER(username) LIKE ? AND id <> ?", "%"+strings.ToLower(query)+"%", self).
		Order("username").
		Limit(10).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("storage: search users: %w", err)
	}
	return users, nil
}
