package services

import (
	"errors"
	"fmt"

	"libraryhub_go/models"

	"gorm.io/gorm"
)

// MaxListLimit caps the size of every list endpoint
const MaxListLimit = 100

// listLimit applies def to unset limits and caps the rest at MaxListLimit
func listLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxListLimit)
}

// withHistory preloads borrow records, oldest first, with their books
func withHistory(db *gorm.DB) *gorm.DB {
	return db.
		Preload("BorrowedBooks", func(db *gorm.DB) *gorm.DB {
			return db.Order("borrow_date ASC, created_at ASC")
		}).
		Preload("BorrowedBooks.Book")
}

func loadStudent(db *gorm.DB, query string, arg interface{}) (*models.Student, error) {
	var student models.Student
	if err := withHistory(db).Where(query, arg).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	return &student, nil
}

func loadStudentByID(db *gorm.DB, id string) (*models.Student, error) {
	return loadStudent(db, "id = ?", id)
}

func loadStudentByEnrollment(db *gorm.DB, enrollment string) (*models.Student, error) {
	return loadStudent(db, "enrollment_number = ?", enrollment)
}

func findBook(db *gorm.DB, query string, arg interface{}) (*models.Book, error) {
	var book models.Book
	if err := db.Where(query, arg).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("load book: %w", err)
	}
	return &book, nil
}

func findBookByID(db *gorm.DB, id string) (*models.Book, error) {
	return findBook(db, "id = ?", id)
}

func findBookByISBN(db *gorm.DB, isbn string) (*models.Book, error) {
	return findBook(db, "isbn = ?", isbn)
}

// saveProgress writes the gamification columns of s, guarded by its version
func saveProgress(db *gorm.DB, s *models.Student) error {
	res := db.Model(&models.Student{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Updates(map[string]interface{}{
			"points":                   s.Points,
			"level":                    s.Level,
			"badges":                   s.Badges,
			"streak_current":           s.Streak.Current,
			"streak_longest":           s.Streak.Longest,
			"streak_last_active_date":  s.Streak.LastActiveDate,
			"reading_total_books_read": s.ReadingStats.TotalBooksRead,
			"reading_books_this_month": s.ReadingStats.BooksThisMonth,
			"reading_books_this_year":  s.ReadingStats.BooksThisYear,
			"reading_average_rating":   s.ReadingStats.AverageRating,
			"version":                  s.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("save student: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	s.Version++
	return nil
}

// refreshTrending recomputes the trending flag from the stored counters.
// It runs as its own statement because MySQL and SQLite disagree on whether
// SET clauses see earlier assignments.
func refreshTrending(db *gorm.DB, rules *Rules, bookID string) error {
	err := db.Model(&models.Book{}).
		Where("id = ?", bookID).
		UpdateColumn("trending", gorm.Expr("(total_borrows > ? AND currently_borrowed > ?)",
			rules.Trending.TotalBorrowsAbove, rules.Trending.CurrentlyBorrowedAbove)).Error
	if err != nil {
		return fmt.Errorf("refresh trending: %w", err)
	}
	return nil
}
