package services

import (
	"libraryhub_go/models"
)

// BadgeEvaluator unlocks achievements from a student's cumulative stats.
type BadgeEvaluator struct {
	rules *Rules
}

// NewBadgeEvaluator creates an evaluator over rules
func NewBadgeEvaluator(rules *Rules) *BadgeEvaluator {
	return &BadgeEvaluator{rules: rules}
}

// Catalog returns every declared badge, including the reserved ones that no
// rule unlocks yet.
func (e *BadgeEvaluator) Catalog() map[string]BadgeInfo {
	out := make(map[string]BadgeInfo, len(e.rules.Badges))
	for id, info := range e.rules.Badges {
		out[id] = info
	}
	return out
}

// Evaluate appends newly earned badges to s.Badges and returns them.
// Held badges are never returned again. Genre counting reads
// BorrowedBooks[i].Book, so callers preload it.
func (e *BadgeEvaluator) Evaluate(s *models.Student) []string {
	th := e.rules.BadgeThresholds

	var (
		categories = make(map[string]struct{})
		reviews    int
		onTime     int
	)
	for _, r := range s.BorrowedBooks {
		if r.Book != nil && r.Book.Category != "" {
			categories[r.Book.Category] = struct{}{}
		}
		if r.Review != "" {
			reviews++
		}
		if r.ReturnedOnTime != nil && *r.ReturnedOnTime {
			onTime++
		}
	}

	earned := map[string]bool{
		BadgeFirstBook:      len(s.BorrowedBooks) == 1,
		BadgeBookworm:       s.ReadingStats.TotalBooksRead >= th.Bookworm,
		BadgeSpeedReader:    s.ReadingStats.BooksThisMonth >= th.SpeedReader,
		BadgeGenreExplorer:  len(categories) >= th.GenreExplorer,
		BadgeReviewMaster:   reviews >= th.ReviewMaster,
		BadgeOnTimeReturner: onTime >= th.OnTimeReturner,
	}

	var unlocked []string
	for _, id := range ruledBadges {
		if earned[id] && !s.Badges.Contains(id) {
			s.Badges = append(s.Badges, id)
			unlocked = append(unlocked, id)
		}
	}
	return unlocked
}
