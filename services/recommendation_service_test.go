package services

import (
	"context"
	"testing"
	"time"

	"libraryhub_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommend(t *testing.T) {
	db := newTestDB(t)
	rdb, mr := newTestRedis(t)
	game := NewGamification(DefaultRules(), time.UTC)
	borrow := NewBorrowService(db, rdb, game)
	service := NewRecommendationService(db, rdb, game)
	ctx := context.Background()

	s := seedStudent(t, db, "EN001")
	read := seedBook(t, db, "1", "Science", 2)
	sci := seedBook(t, db, "2", "Science", 1)
	empty := seedBook(t, db, "3", "Science", 0)
	fic := seedBook(t, db, "4", "Fiction", 1)

	_, err := borrow.Borrow(ctx, &BorrowRequest{EnrollmentNumber: "EN001", ISBN: read.ISBN})
	require.NoError(t, err)

	recs, err := service.Recommend(ctx, s.ID, 10)
	require.NoError(t, err)

	got := ids(recs)
	assert.NotContains(t, got, read.ID)
	assert.NotContains(t, got, empty.ID)
	assert.Equal(t, []string{sci.ID, fic.ID}, got)
	assert.Equal(t, "Because you enjoy Science books", recs[0].Reason)
	assert.True(t, mr.Exists(recommendationKey(s.ID)))

	_, err = service.Recommend(ctx, "missing", 10)
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestRecommendExcludesDeletedHistory(t *testing.T) {
	db := newTestDB(t)
	game := NewGamification(DefaultRules(), time.UTC)
	service := NewRecommendationService(db, nil, game)
	ctx := context.Background()

	s := seedStudent(t, db, "EN001")
	b := seedBook(t, db, "1", "Science", 1)
	require.NoError(t, db.Create(&models.BorrowRecord{
		StudentID:  s.ID,
		BookID:     "deleted-book",
		BorrowDate: time.Now(),
		Status:     models.LoanReturned,
	}).Error)

	recs, err := service.Recommend(ctx, s.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(recs))
}

func TestSimilar(t *testing.T) {
	db := newTestDB(t)
	service := NewRecommendationService(db, nil, NewGamification(DefaultRules(), time.UTC))
	ctx := context.Background()

	base := seedBook(t, db, "1", "Science", 1)
	sameCat := seedBook(t, db, "2", "Science", 1)
	sameAuthor := &models.Book{Title: "Other", Author: base.Author, ISBN: "3", Category: "Poetry", Quantity: 1, Available: 1}
	require.NoError(t, db.Create(sameAuthor).Error)
	seedBook(t, db, "4", "Fiction", 1)
	seedBook(t, db, "5", "Science", 0)

	books, err := service.Similar(ctx, base.ID, 0)
	require.NoError(t, err)
	got := make([]string, 0, len(books))
	for _, b := range books {
		got = append(got, b.ID)
	}
	assert.ElementsMatch(t, []string{sameCat.ID, sameAuthor.ID}, got)

	_, err = service.Similar(ctx, "missing", 5)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestTrending(t *testing.T) {
	db := newTestDB(t)
	service := NewRecommendationService(db, nil, NewGamification(DefaultRules(), time.UTC))
	ctx := context.Background()

	hot := seedBook(t, db, "1", "Science", 1)
	warm := seedBook(t, db, "2", "Science", 1)
	old := seedBook(t, db, "3", "Science", 1)
	require.NoError(t, db.Model(&models.Book{}).Where("id = ?", hot.ID).Update("total_borrows", 9).Error)
	require.NoError(t, db.Model(&models.Book{}).Where("id = ?", warm.ID).Update("total_borrows", 4).Error)
	require.NoError(t, db.Model(&models.Book{}).Where("id = ?", old.ID).
		UpdateColumns(map[string]interface{}{"total_borrows": 50, "updated_at": time.Now().AddDate(0, -3, 0)}).Error)

	books, err := service.Trending(ctx, 10, 30)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, hot.ID, books[0].ID)
	assert.Equal(t, warm.ID, books[1].ID)
}

func TestRecommendDropsBooksTakenByOthers(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	game := NewGamification(DefaultRules(), time.UTC)
	borrow := NewBorrowService(db, rdb, game)
	service := NewRecommendationService(db, rdb, game)
	ctx := context.Background()

	reader := seedStudent(t, db, "EN001")
	seedStudent(t, db, "EN002")
	last := seedBook(t, db, "1", "Science", 1)
	other := seedBook(t, db, "2", "Fiction", 3)

	before, err := service.Recommend(ctx, reader.ID, 10)
	require.NoError(t, err)
	require.Contains(t, ids(before), last.ID)

	// someone else takes the only copy
	_, err = borrow.Borrow(ctx, &BorrowRequest{EnrollmentNumber: "EN002", ISBN: last.ISBN})
	require.NoError(t, err)

	after, err := service.Recommend(ctx, reader.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, ids(after))
}

func TestListLimitsAreCapped(t *testing.T) {
	db := newTestDB(t)
	game := NewGamification(DefaultRules(), time.UTC)
	service := NewRecommendationService(db, nil, game)
	ctx := context.Background()

	s := seedStudent(t, db, "EN001")
	first := seedBook(t, db, "1", "Science", 1)
	seedBook(t, db, "2", "Science", 1)

	recs, err := service.Recommend(ctx, s.ID, 1<<40)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	similar, err := service.Similar(ctx, first.ID, 1<<40)
	require.NoError(t, err)
	assert.Len(t, similar, 1)

	trending, err := service.Trending(ctx, 1<<40, 0)
	require.NoError(t, err)
	assert.Len(t, trending, 2)

	assert.Equal(t, 10, listLimit(0, 10))
	assert.Equal(t, 10, listLimit(-3, 10))
	assert.Equal(t, 7, listLimit(7, 10))
	assert.Equal(t, MaxListLimit, listLimit(1<<40, 10))
}
