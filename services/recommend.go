package services

import (
	"fmt"
	"math"
	"sort"

	"libraryhub_go/models"
)

// Recommendation is a catalog book with the reason it was picked.
type Recommendation struct {
	models.Book
	Reason string `json:"reason"`
}

// Ranker fills recommendation slots from three buckets in order: books in
// the reader's favourite categories, popular books, then highly rated ones.
type Ranker struct {
	rules RecommendationRules
}

// NewRanker creates a ranker over rules
func NewRanker(rules *Rules) *Ranker {
	return &Ranker{rules: rules.Recommendation}
}

// TopCategories returns up to n categories by borrow frequency. Ties keep
// the order in which categories first appear in history.
func TopCategories(history []models.Book, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, b := range history {
		if b.Category == "" {
			continue
		}
		if _, seen := counts[b.Category]; !seen {
			order = append(order, b.Category)
		}
		counts[b.Category]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// ceilShare is ceil(n*share), tolerant of float error at exact products
func ceilShare(n int, share float64) int {
	return int(math.Ceil(float64(n)*share - 1e-9))
}

// Rank picks at most limit books from catalog that are on the shelf and not
// in history. The result holds no duplicates.
func (r *Ranker) Rank(history, catalog []models.Book, limit int) []Recommendation {
	if limit <= 0 {
		return []Recommendation{}
	}

	borrowed := make(map[string]bool, len(history))
	for _, b := range history {
		borrowed[b.ID] = true
	}
	top := TopCategories(history, r.rules.TopCategories)
	favourite := make(map[string]bool, len(top))
	for _, c := range top {
		favourite[c] = true
	}

	candidates := make([]models.Book, 0, len(catalog))
	seen := make(map[string]bool, len(catalog))
	for _, b := range catalog {
		if b.Available <= 0 || borrowed[b.ID] || seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		candidates = append(candidates, b)
	}

	selected := make(map[string]bool)
	picks := make([]models.Book, 0, min(limit, len(candidates)))

	take := func(n int, keep func(models.Book) bool, less func(a, b models.Book) bool) {
		if n <= 0 {
			return
		}
		pool := make([]models.Book, 0)
		for _, b := range candidates {
			if !selected[b.ID] && keep(b) {
				pool = append(pool, b)
			}
		}
		sort.SliceStable(pool, func(i, j int) bool { return less(pool[i], pool[j]) })
		for _, b := range pool {
			if n == 0 || len(picks) == limit {
				return
			}
			selected[b.ID] = true
			picks = append(picks, b)
			n--
		}
	}

	byRatingThenBorrows := func(a, b models.Book) bool {
		if a.Ratings.Average != b.Ratings.Average {
			return a.Ratings.Average > b.Ratings.Average
		}
		return a.TotalBorrows > b.TotalBorrows
	}
	byBorrowsThenRating := func(a, b models.Book) bool {
		if a.TotalBorrows != b.TotalBorrows {
			return a.TotalBorrows > b.TotalBorrows
		}
		return a.Ratings.Average > b.Ratings.Average
	}
	byRating := func(a, b models.Book) bool {
		return a.Ratings.Average > b.Ratings.Average
	}

	if len(top) > 0 {
		take(ceilShare(limit, r.rules.AffinityShare),
			func(b models.Book) bool { return favourite[b.Category] },
			byRatingThenBorrows)
	}
	if remaining := limit - len(picks); remaining > 0 {
		take(ceilShare(remaining, r.rules.PopularityShare),
			func(models.Book) bool { return true },
			byBorrowsThenRating)
	}
	if remaining := limit - len(picks); remaining > 0 {
		take(remaining,
			func(b models.Book) bool { return b.Ratings.Average >= r.rules.QualityMinRating },
			byRating)
	}

	out := make([]Recommendation, 0, len(picks))
	for _, b := range picks {
		out = append(out, Recommendation{Book: b, Reason: r.reason(b, favourite)})
	}
	return out
}

func (r *Ranker) reason(b models.Book, favourite map[string]bool) string {
	switch {
	case favourite[b.Category]:
		return fmt.Sprintf("Because you enjoy %s books", b.Category)
	case b.TotalBorrows > r.rules.PopularReasonBorrows:
		return "Popular choice among students"
	case b.Ratings.Average >= r.rules.HighlyRatedReason:
		return "Highly rated by readers"
	default:
		return "You might enjoy this"
	}
}
