package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"libraryhub_go/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// LeaderboardType selects the ranking column
type LeaderboardType string

const (
	LeaderboardByPoints LeaderboardType = "points"
	LeaderboardByBooks  LeaderboardType = "books"
)

// ParseLeaderboardType accepts "points", "books" or empty (points)
func ParseLeaderboardType(s string) (LeaderboardType, error) {
	switch LeaderboardType(s) {
	case "", LeaderboardByPoints:
		return LeaderboardByPoints, nil
	case LeaderboardByBooks:
		return LeaderboardByBooks, nil
	}
	return "", Validationf("type must be one of: points, books")
}

// LeaderboardEntry is one ranked student
type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	Name             string `json:"name"`
	EnrollmentNumber string `json:"enrollmentNumber"`
	Points           int    `json:"points"`
	Level            int    `json:"level"`
	Badges           int    `json:"badges"`
	BooksRead        int    `json:"booksRead"`
	CurrentStreak    int    `json:"currentStreak"`
}

func leaderboardKey(t LeaderboardType) string {
	return "leaderboard:" + string(t)
}

func leaderboardCache(rdb *redis.Client) hashCache {
	return hashCache{rdb: rdb, name: "leaderboard", ttl: 5 * time.Minute}
}

// LeaderboardService ranks students
type LeaderboardService struct {
	db    *gorm.DB
	cache hashCache
}

// NewLeaderboardService creates the service. rdb may be nil.
func NewLeaderboardService(db *gorm.DB, rdb *redis.Client) *LeaderboardService {
	return &LeaderboardService{db: db, cache: leaderboardCache(rdb)}
}

// Leaderboard returns the top limit students. Ties keep creation order.
func (s *LeaderboardService) Leaderboard(ctx context.Context, limit int, t LeaderboardType) ([]LeaderboardEntry, error) {
	limit = listLimit(limit, 10)
	key, field := leaderboardKey(t), strconv.Itoa(limit)

	var entries []LeaderboardEntry
	if s.cache.get(ctx, key, field, &entries) {
		return entries, nil
	}

	order := "points DESC"
	if t == LeaderboardByBooks {
		order = "reading_total_books_read DESC"
	}

	var students []models.Student
	err := s.db.WithContext(ctx).
		Select("id", "name", "enrollment_number", "points", "level", "badges",
			"reading_total_books_read", "streak_current", "created_at").
		Order(order).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	entries = make([]LeaderboardEntry, 0, len(students))
	for i, st := range students {
		entries = append(entries, LeaderboardEntry{
			Rank:             i + 1,
			Name:             st.Name,
			EnrollmentNumber: st.EnrollmentNumber,
			Points:           st.Points,
			Level:            st.Level,
			Badges:           len(st.Badges),
			BooksRead:        st.ReadingStats.TotalBooksRead,
			CurrentStreak:    st.Streak.Current,
		})
	}

	s.cache.set(ctx, key, field, entries)
	return entries, nil
}
