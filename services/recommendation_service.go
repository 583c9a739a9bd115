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

func recommendationKey(studentID string) string {
	return "recommendations:" + studentID
}

func recommendationCache(rdb *redis.Client) hashCache {
	return hashCache{rdb: rdb, name: "recommendations", ttl: time.Hour}
}

// RecommendationService serves the read only discovery endpoints
type RecommendationService struct {
	db     *gorm.DB
	ranker *Ranker
	cache  hashCache
	now    func() time.Time
}

// NewRecommendationService creates the service. rdb may be nil.
func NewRecommendationService(db *gorm.DB, rdb *redis.Client, game *Gamification) *RecommendationService {
	return &RecommendationService{
		db:     db,
		ranker: game.Ranker,
		cache:  recommendationCache(rdb),
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (s *RecommendationService) SetClock(now func() time.Time) {
	s.now = now
}

// Recommend ranks on-shelf books the student has never borrowed
func (s *RecommendationService) Recommend(ctx context.Context, studentID string, limit int) ([]Recommendation, error) {
	limit = listLimit(limit, 10)
	key, field := recommendationKey(studentID), strconv.Itoa(limit)

	var recs []Recommendation
	if s.cache.get(ctx, key, field, &recs) {
		return recs, nil
	}

	db := s.db.WithContext(ctx)
	student, err := loadStudentByID(db, studentID)
	if err != nil {
		return nil, err
	}

	history := make([]models.Book, 0, len(student.BorrowedBooks))
	for _, r := range student.BorrowedBooks {
		if r.Book != nil {
			history = append(history, *r.Book)
		} else {
			// deleted from the catalog, still excluded by id
			history = append(history, models.Book{ID: r.BookID})
		}
	}

	var catalog []models.Book
	if err := db.Where("available > ?", 0).Order("created_at ASC").Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	recs = s.ranker.Rank(history, catalog, limit)
	s.cache.set(ctx, key, field, recs)
	return recs, nil
}

// Similar returns on-shelf books sharing the category or author of bookID
func (s *RecommendationService) Similar(ctx context.Context, bookID string, limit int) ([]models.Book, error) {
	limit = listLimit(limit, 5)
	db := s.db.WithContext(ctx)
	book, err := findBookByID(db, bookID)
	if err != nil {
		return nil, err
	}

	books := make([]models.Book, 0)
	err = db.
		Where("id <> ? AND available > 0 AND (category = ? OR author = ?)", book.ID, book.Category, book.Author).
		Order("ratings_average DESC").
		Order("total_borrows DESC").
		Limit(limit).
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("load similar books: %w", err)
	}
	return books, nil
}

// Trending returns on-shelf books touched within the last days, most borrowed first
func (s *RecommendationService) Trending(ctx context.Context, limit, days int) ([]models.Book, error) {
	limit = listLimit(limit, 10)
	if days <= 0 {
		days = 30
	}
	cutoff := s.now().AddDate(0, 0, -days)

	books := make([]models.Book, 0)
	err := s.db.WithContext(ctx).
		Where("available > 0 AND updated_at >= ?", cutoff).
		Order("total_borrows DESC").
		Order("ratings_average DESC").
		Limit(limit).
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("load trending books: %w", err)
	}
	return books, nil
}
