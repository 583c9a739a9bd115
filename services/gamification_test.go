package services

import (
	"testing"
	"time"

	"libraryhub_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAward(t *testing.T) {
	ledger := NewLedger(DefaultRules())
	s := &models.Student{Level: 1}

	award := ledger.Award(s, BorrowBook, 1)
	assert.Equal(t, 10, award.Points)
	assert.Equal(t, 10, s.Points)
	assert.False(t, award.LeveledUp)

	award = ledger.Award(s, MaintainStreak, 3)
	assert.Equal(t, 15, award.Points)
	assert.Equal(t, 25, s.Points)

	s.Points = 95
	award = ledger.Award(s, BorrowBook, 1)
	assert.True(t, award.LeveledUp)
	assert.Equal(t, 2, award.NewLevel)
	assert.Equal(t, 105, award.TotalPoints)
}

func TestLedgerLevelNeverDrops(t *testing.T) {
	ledger := NewLedger(DefaultRules())
	s := &models.Student{Points: 105, Level: 2}

	award := ledger.Award(s, LateReturn, 1)
	assert.Equal(t, 95, s.Points)
	assert.Equal(t, 2, s.Level)
	assert.False(t, award.LeveledUp)
}

func TestLedgerPanicsOnUnpricedActivity(t *testing.T) {
	ledger := NewLedger(DefaultRules())
	assert.Panics(t, func() {
		ledger.Award(&models.Student{Level: 1}, ActivityKind("READ_ALOUD"), 1)
	})
}

func TestStreakTouch(t *testing.T) {
	loc := time.UTC
	tracker := NewStreakTracker(NewLedger(DefaultRules()), loc)
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, loc)

	s := &models.Student{Level: 1}

	first := tracker.Touch(s, day)
	assert.True(t, first.Changed)
	assert.Nil(t, first.Bonus)
	assert.Equal(t, 1, s.Streak.Current)
	assert.Equal(t, 1, s.Streak.Longest)
	require.NotNil(t, s.Streak.LastActiveDate)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, loc), *s.Streak.LastActiveDate)

	again := tracker.Touch(s, day.Add(10*time.Hour))
	assert.False(t, again.Changed)
	assert.Equal(t, 1, s.Streak.Current)
	assert.Equal(t, 0, s.Points)

	next := tracker.Touch(s, day.Add(24*time.Hour))
	assert.True(t, next.Changed)
	require.NotNil(t, next.Bonus)
	assert.Equal(t, 10, next.Bonus.Points)
	assert.Equal(t, 2, s.Streak.Current)
	assert.Equal(t, 2, s.Streak.Longest)
	assert.Equal(t, 10, s.Points)

	third := tracker.Touch(s, day.Add(48*time.Hour))
	require.NotNil(t, third.Bonus)
	assert.Equal(t, 15, third.Bonus.Points)
	assert.Equal(t, 25, s.Points)

	gap := tracker.Touch(s, day.Add(5*24*time.Hour))
	assert.True(t, gap.Changed)
	assert.Nil(t, gap.Bonus)
	assert.Equal(t, 1, s.Streak.Current)
	assert.Equal(t, 3, s.Streak.Longest)
}

func TestStreakTouchIgnoresEarlierDay(t *testing.T) {
	loc := time.UTC
	tracker := NewStreakTracker(NewLedger(DefaultRules()), loc)
	last := time.Date(2024, 5, 3, 0, 0, 0, 0, loc)
	s := &models.Student{Level: 1, Streak: models.Streak{Current: 4, Longest: 4, LastActiveDate: &last}}

	update := tracker.Touch(s, last.Add(-36*time.Hour))
	assert.False(t, update.Changed)
	assert.Equal(t, 4, s.Streak.Current)
}

func TestStreakUsesCalendarDaysOfLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	tracker := NewStreakTracker(NewLedger(DefaultRules()), loc)
	s := &models.Student{Level: 1}

	// 23:30 and 00:30 local are one hour apart but on consecutive days
	tracker.Touch(s, time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC))
	update := tracker.Touch(s, time.Date(2024, 5, 1, 19, 30, 0, 0, time.UTC))

	assert.True(t, update.Changed)
	assert.Equal(t, 2, s.Streak.Current)
}

func TestBadgeEvaluate(t *testing.T) {
	eval := NewBadgeEvaluator(DefaultRules())

	t.Run("first book", func(t *testing.T) {
		s := &models.Student{BorrowedBooks: []models.BorrowRecord{{BookID: "b1"}}}
		assert.Equal(t, []string{BadgeFirstBook}, eval.Evaluate(s))
		assert.Empty(t, eval.Evaluate(s))
		assert.Equal(t, models.StringList{BadgeFirstBook}, s.Badges)
	})

	t.Run("first book only for the first record", func(t *testing.T) {
		s := &models.Student{BorrowedBooks: []models.BorrowRecord{{BookID: "b1"}, {BookID: "b2"}}}
		assert.Empty(t, eval.Evaluate(s))
	})

	t.Run("counters", func(t *testing.T) {
		s := &models.Student{
			Badges: models.StringList{BadgeFirstBook},
			ReadingStats: models.ReadingStats{
				TotalBooksRead: 50,
				BooksThisMonth: 5,
			},
		}
		assert.Equal(t, []string{BadgeBookworm, BadgeSpeedReader}, eval.Evaluate(s))
	})

	t.Run("history based", func(t *testing.T) {
		onTime := true
		var records []models.BorrowRecord
		for i, cat := range []string{"Fiction", "Science", "History", "Poetry", "Art", "Art", "Art", "Art", "Art", "Art"} {
			records = append(records, models.BorrowRecord{
				BookID:         string(rune('a' + i)),
				Book:           &models.Book{Category: cat},
				Review:         "good",
				ReturnedOnTime: &onTime,
			})
		}
		s := &models.Student{BorrowedBooks: records}
		assert.Equal(t, []string{BadgeGenreExplorer, BadgeReviewMaster, BadgeOnTimeReturner}, eval.Evaluate(s))
	})

	t.Run("reserved badges are never unlocked", func(t *testing.T) {
		s := &models.Student{ReadingStats: models.ReadingStats{TotalBooksRead: 1000, BooksThisMonth: 100}}
		unlocked := eval.Evaluate(s)
		assert.NotContains(t, unlocked, BadgeEarlyBird)
		assert.NotContains(t, unlocked, BadgeNightOwl)
	})
}

func TestBadgeCatalogIsACopy(t *testing.T) {
	rules := DefaultRules()
	eval := NewBadgeEvaluator(rules)

	catalog := eval.Catalog()
	assert.Len(t, catalog, 8)
	delete(catalog, BadgeFirstBook)
	assert.Contains(t, rules.Badges, BadgeFirstBook)
}
