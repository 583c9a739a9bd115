package services

import (
	"fmt"
	"testing"

	"libraryhub_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book(id, category string, available, borrows int, rating float64) models.Book {
	return models.Book{
		ID:           id,
		Category:     category,
		Available:    available,
		TotalBorrows: borrows,
		Ratings:      models.Ratings{Average: rating},
	}
}

func ids(recs []Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestTopCategories(t *testing.T) {
	history := []models.Book{
		{Category: "Poetry"},
		{Category: "Science"},
		{Category: "Science"},
		{Category: ""},
		{Category: "Fiction"},
		{Category: "Poetry"},
		{Category: "History"},
	}

	assert.Equal(t, []string{"Poetry", "Science", "Fiction"}, TopCategories(history, 3))
	assert.Equal(t, []string{"Poetry"}, TopCategories(history, 1))
	assert.Empty(t, TopCategories(nil, 3))
}

func TestRankExcludesHistoryAndEmptyShelves(t *testing.T) {
	ranker := NewRanker(DefaultRules())
	history := []models.Book{{ID: "read", Category: "Fiction"}}
	catalog := []models.Book{
		book("read", "Fiction", 3, 100, 5),
		book("gone", "Fiction", 0, 100, 5),
		book("ok", "Fiction", 1, 1, 1),
	}

	recs := ranker.Rank(history, catalog, 10)
	assert.Equal(t, []string{"ok"}, ids(recs))
}

func TestRankBoundsAndUniqueness(t *testing.T) {
	ranker := NewRanker(DefaultRules())
	var catalog []models.Book
	for i := 0; i < 30; i++ {
		cat := []string{"Fiction", "Science", "History"}[i%3]
		catalog = append(catalog, book(fmt.Sprintf("b%02d", i), cat, 1, i, float64(i%5)))
	}
	// duplicates in the catalog are collapsed
	catalog = append(catalog, catalog[0], catalog[1])
	history := []models.Book{{ID: "x", Category: "Science"}}

	for _, limit := range []int{0, 1, 5, 10, 40} {
		recs := ranker.Rank(history, catalog, limit)
		want := limit
		if want > 30 {
			want = 30
		}
		require.Len(t, recs, want, "limit=%d", limit)

		seen := make(map[string]bool)
		for _, r := range recs {
			assert.False(t, seen[r.ID], "duplicate %s", r.ID)
			seen[r.ID] = true
		}
	}
}

func TestRankBuckets(t *testing.T) {
	ranker := NewRanker(DefaultRules())
	history := []models.Book{
		{ID: "h1", Category: "Science"},
		{ID: "h2", Category: "Science"},
	}
	catalog := []models.Book{
		book("sci-low", "Science", 1, 5, 3.0),
		book("sci-high", "Science", 1, 1, 4.8),
		book("sci-mid", "Science", 1, 9, 4.0),
		book("pop-1", "Fiction", 1, 90, 2.0),
		book("pop-2", "History", 1, 70, 3.5),
		book("good", "Poetry", 1, 0, 4.7),
	}

	// affinity takes ceil(5*0.6)=3, popularity ceil(2*0.75)=2
	recs := ranker.Rank(history, catalog, 5)
	assert.Equal(t, []string{"sci-high", "sci-mid", "sci-low", "pop-1", "pop-2"}, ids(recs))

	assert.Equal(t, "Because you enjoy Science books", recs[0].Reason)
	assert.Equal(t, "Popular choice among students", recs[3].Reason)
	assert.Equal(t, "Popular choice among students", recs[4].Reason)
}

func TestRankQualityBucketFillsTheRest(t *testing.T) {
	rules := DefaultRules()
	rules.Recommendation.PopularityShare = 0.5
	ranker := NewRanker(rules)
	catalog := []models.Book{
		book("pop", "Fiction", 1, 40, 1.0),
		book("meh", "Fiction", 1, 30, 3.9),
		book("great", "Poetry", 1, 0, 4.9),
		book("fine", "Poetry", 1, 0, 4.1),
	}

	// no history: popularity takes ceil(4*0.5)=2, quality the rest
	recs := ranker.Rank(nil, catalog, 4)
	assert.Equal(t, []string{"pop", "meh", "great", "fine"}, ids(recs))
	assert.Equal(t, "Highly rated by readers", recs[2].Reason)
	assert.Equal(t, "You might enjoy this", recs[3].Reason)
}

func TestRankEmptyCatalog(t *testing.T) {
	ranker := NewRanker(DefaultRules())
	recs := ranker.Rank([]models.Book{{ID: "a", Category: "Art"}}, nil, 10)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRankHugeLimitIsBoundedByCatalog(t *testing.T) {
	catalog := []models.Book{
		book("a", "Science", 1, 5, 4.0),
		book("b", "Fiction", 1, 3, 4.5),
	}
	recs := NewRanker(DefaultRules()).Rank(nil, catalog, 1<<40)
	assert.ElementsMatch(t, []string{"a", "b"}, ids(recs))
}
