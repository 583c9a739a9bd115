package services

import (
	"context"
	"testing"
	"time"

	"libraryhub_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedRanked(t *testing.T, db *gorm.DB, enrollment string, points, booksRead int, created time.Time) {
	t.Helper()
	student := &models.Student{
		Name:             "Student " + enrollment,
		EnrollmentNumber: enrollment,
		Password:         "unused",
		Points:           points,
		Badges:           models.StringList{BadgeFirstBook},
		ReadingStats:     models.ReadingStats{TotalBooksRead: booksRead},
		CreatedAt:        created,
	}
	require.NoError(t, db.Create(student).Error)
}

func enrollments(entries []LeaderboardEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.EnrollmentNumber)
	}
	return out
}

func TestParseLeaderboardType(t *testing.T) {
	lt, err := ParseLeaderboardType("")
	require.NoError(t, err)
	assert.Equal(t, LeaderboardByPoints, lt)

	lt, err = ParseLeaderboardType("books")
	require.NoError(t, err)
	assert.Equal(t, LeaderboardByBooks, lt)

	_, err = ParseLeaderboardType("streak")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLeaderboardOrdering(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRanked(t, db, "A", 50, 9, base)
	seedRanked(t, db, "B", 120, 2, base.Add(time.Minute))
	seedRanked(t, db, "C", 50, 4, base.Add(2*time.Minute))
	seedRanked(t, db, "D", 10, 4, base.Add(3*time.Minute))

	service := NewLeaderboardService(db, nil)
	ctx := context.Background()

	byPoints, err := service.Leaderboard(ctx, 10, LeaderboardByPoints)
	require.NoError(t, err)
	// equal points keep creation order
	assert.Equal(t, []string{"B", "A", "C", "D"}, enrollments(byPoints))
	assert.Equal(t, 1, byPoints[0].Rank)
	assert.Equal(t, 4, byPoints[3].Rank)
	assert.Equal(t, 1, byPoints[0].Badges)

	byBooks, err := service.Leaderboard(ctx, 10, LeaderboardByBooks)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D", "B"}, enrollments(byBooks))
	assert.Equal(t, 9, byBooks[0].BooksRead)

	top2, err := service.Leaderboard(ctx, 2, LeaderboardByPoints)
	require.NoError(t, err)
	assert.Len(t, top2, 2)

	defaulted, err := service.Leaderboard(ctx, 0, LeaderboardByPoints)
	require.NoError(t, err)
	assert.Len(t, defaulted, 4)
}

func TestLeaderboardEmpty(t *testing.T) {
	service := NewLeaderboardService(newTestDB(t), nil)

	entries, err := service.Leaderboard(context.Background(), 10, LeaderboardByPoints)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestLeaderboardCache(t *testing.T) {
	db := newTestDB(t)
	rdb, mr := newTestRedis(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRanked(t, db, "A", 50, 0, base)
	seedRanked(t, db, "B", 10, 0, base.Add(time.Minute))

	service := NewLeaderboardService(db, rdb)
	ctx := context.Background()

	first, err := service.Leaderboard(ctx, 10, LeaderboardByPoints)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, enrollments(first))
	assert.True(t, mr.Exists("leaderboard:points"))
	assert.True(t, mr.TTL("leaderboard:points") > 0)

	require.NoError(t, db.Model(&models.Student{}).Where("enrollment_number = ?", "B").Update("points", 500).Error)

	cached, err := service.Leaderboard(ctx, 10, LeaderboardByPoints)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, enrollments(cached))

	leaderboardCache(rdb).invalidate(ctx, leaderboardKey(LeaderboardByPoints))

	fresh, err := service.Leaderboard(ctx, 10, LeaderboardByPoints)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, enrollments(fresh))
}

func TestLeaderboardInvalidatedByBorrow(t *testing.T) {
	db := newTestDB(t)
	rdb, mr := newTestRedis(t)
	game := NewGamification(DefaultRules(), time.UTC)
	borrow := NewBorrowService(db, rdb, game)
	leaderboard := NewLeaderboardService(db, rdb)
	ctx := context.Background()

	b := seedBook(t, db, "9780306406157", "Science", 1)
	seedStudent(t, db, "EN001")

	_, err := leaderboard.Leaderboard(ctx, 10, LeaderboardByPoints)
	require.NoError(t, err)
	require.True(t, mr.Exists("leaderboard:points"))

	_, err = borrow.Borrow(ctx, &BorrowRequest{EnrollmentNumber: "EN001", ISBN: b.ISBN})
	require.NoError(t, err)
	assert.False(t, mr.Exists("leaderboard:points"))

	entries, err := leaderboard.Leaderboard(ctx, 10, LeaderboardByPoints)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 10, entries[0].Points)

	// the borrow was appended to the event stream
	stream, err := rdb.XRange(ctx, eventStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, stream, 1)
	assert.Equal(t, "book_borrowed", stream[0].Values["event"])
}
