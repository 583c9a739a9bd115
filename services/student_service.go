package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"libraryhub_go/middleware"
	"libraryhub_go/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// StudentService manages student accounts and their reading summaries
type StudentService struct {
	db          *gorm.DB
	leaderboard hashCache
	recommend   hashCache
	rdb         *redis.Client
}

// NewStudentService creates the service. rdb may be nil.
func NewStudentService(db *gorm.DB, rdb *redis.Client) *StudentService {
	return &StudentService{
		db:          db,
		leaderboard: leaderboardCache(rdb),
		recommend:   recommendationCache(rdb),
		rdb:         rdb,
	}
}

// CreateStudentRequest registers a student
type CreateStudentRequest struct {
	Name             string `json:"name" binding:"required,max=100"`
	EnrollmentNumber string `json:"enrollmentNumber" binding:"required,enrollment"`
	Password         string `json:"password" binding:"required,min=6,max=100"`
	RollNumber       string `json:"rollNumber" binding:"omitempty,max=50"`
	Branch           string `json:"branch" binding:"omitempty,max=100"`
	Session          string `json:"session" binding:"omitempty,max=50"`
}

// UpdatePasswordRequest replaces a student's password
type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=6,max=100"`
}

// GenreCount is one entry of StudentStats.FavoriteGenres
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// StudentStats summarizes a student's borrowing history
type StudentStats struct {
	Borrowed       int                 `json:"borrowed"`
	Total          int                 `json:"total"`
	ReturnedOnTime int                 `json:"returnedOnTime"`
	AverageRating  string              `json:"averageRating"`
	FavoriteGenres []GenreCount        `json:"favoriteGenres"`
	Points         int                 `json:"points"`
	Level          int                 `json:"level"`
	Streak         models.Streak       `json:"streak"`
	Badges         models.StringList   `json:"badges"`
	ReadingStats   models.ReadingStats `json:"readingStats"`
}

// LibraryStats are the admin dashboard counters
type LibraryStats struct {
	Books    int64 `json:"books"`
	Students int64 `json:"students"`
	Admins   int64 `json:"admins"`
	Borrowed int64 `json:"borrowed"`
}

// ListStudents returns every student with its borrow records
func (ss *StudentService) ListStudents(ctx context.Context) ([]models.Student, error) {
	students := make([]models.Student, 0)
	if err := ss.db.WithContext(ctx).Preload("BorrowedBooks").Order("created_at ASC").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// CreateStudent stores a student with a hashed password
func (ss *StudentService) CreateStudent(ctx context.Context, req *CreateStudentRequest) (*models.Student, error) {
	if !models.ValidBranch(req.Branch) {
		names := make([]string, 0, len(models.Branches))
		for _, b := range models.Branches {
			names = append(names, string(b))
		}
		return nil, Validationf("branch must be one of: %s", strings.Join(names, ", "))
	}

	db := ss.db.WithContext(ctx)
	enrollment := strings.TrimSpace(req.EnrollmentNumber)

	var count int64
	if err := db.Model(&models.Student{}).Where("enrollment_number = ?", enrollment).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check enrollment number: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateEnroll
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	student := models.Student{
		Name:             strings.TrimSpace(req.Name),
		EnrollmentNumber: enrollment,
		Password:         string(hash),
		RollNumber:       req.RollNumber,
		Branch:           req.Branch,
		Session:          req.Session,
		BorrowedBooks:    []models.BorrowRecord{},
	}
	if err := db.Create(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEnroll
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	ss.leaderboard.invalidate(ctx, leaderboardKey(LeaderboardByPoints), leaderboardKey(LeaderboardByBooks))
	middleware.InfoLogger("student created", zap.String("student_id", student.ID))
	return &student, nil
}

// DeleteStudent removes a student and its loan history. Students holding
// books cannot be deleted.
func (ss *StudentService) DeleteStudent(ctx context.Context, id string) error {
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student models.Student
		if err := tx.Select("id").Where("id = ?", id).First(&student).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStudentNotFound
			}
			return fmt.Errorf("load student: %w", err)
		}

		var active int64
		if err := tx.Model(&models.BorrowRecord{}).
			Where("student_id = ? AND status = ?", id, models.LoanBorrowed).
			Count(&active).Error; err != nil {
			return fmt.Errorf("count active loans: %w", err)
		}
		if active > 0 {
			return ErrStudentHasLoans
		}

		if err := tx.Where("student_id = ?", id).Delete(&models.BorrowRecord{}).Error; err != nil {
			return fmt.Errorf("delete borrow records: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Student{}).Error; err != nil {
			return fmt.Errorf("delete student: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ss.leaderboard.invalidate(ctx, leaderboardKey(LeaderboardByPoints), leaderboardKey(LeaderboardByBooks))
	ss.recommend.invalidate(ctx, recommendationKey(id))
	publishEvent(ctx, ss.rdb, "student_deleted", map[string]interface{}{"student_id": id})
	middleware.InfoLogger("student deleted", zap.String("student_id", id))
	return nil
}

// BorrowedBooks returns the loan history of a student with book details
func (ss *StudentService) BorrowedBooks(ctx context.Context, id string) ([]models.BorrowRecord, error) {
	student, err := loadStudentByID(ss.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if student.BorrowedBooks == nil {
		return []models.BorrowRecord{}, nil
	}
	return student.BorrowedBooks, nil
}

// UpdatePassword replaces the password hash of a student
func (ss *StudentService) UpdatePassword(ctx context.Context, id string, req *UpdatePasswordRequest) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	res := ss.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id).Update("password", string(hash))
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// Stats summarizes the loan history and gamification state of a student
func (ss *StudentService) Stats(ctx context.Context, id string) (*StudentStats, error) {
	student, err := loadStudentByID(ss.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}

	stats := &StudentStats{
		Total:          len(student.BorrowedBooks),
		Borrowed:       student.ActiveLoanCount(),
		AverageRating:  strconv.FormatFloat(student.ReadingStats.AverageRating, 'f', 1, 64),
		FavoriteGenres: favoriteGenres(student.BorrowedBooks, 3),
		Points:         student.Points,
		Level:          student.Level,
		Streak:         student.Streak,
		Badges:         student.Badges,
		ReadingStats:   student.ReadingStats,
	}
	for _, r := range student.BorrowedBooks {
		if r.ReturnedOnTime != nil && *r.ReturnedOnTime {
			stats.ReturnedOnTime++
		}
	}
	return stats, nil
}

// favoriteGenres counts categories over records whose book still exists.
// Ties keep first-seen order.
func favoriteGenres(records []models.BorrowRecord, n int) []GenreCount {
	genres := make([]GenreCount, 0)
	index := make(map[string]int)
	for _, r := range records {
		if r.Book == nil || r.Book.Category == "" {
			continue
		}
		if i, ok := index[r.Book.Category]; ok {
			genres[i].Count++
			continue
		}
		index[r.Book.Category] = len(genres)
		genres = append(genres, GenreCount{Genre: r.Book.Category, Count: 1})
	}
	sort.SliceStable(genres, func(i, j int) bool {
		return genres[i].Count > genres[j].Count
	})
	if len(genres) > n {
		genres = genres[:n]
	}
	return genres
}

// LibraryStats counts books, students, admins and open loans
func (ss *StudentService) LibraryStats(ctx context.Context) (*LibraryStats, error) {
	db := ss.db.WithContext(ctx)
	var stats LibraryStats
	if err := db.Model(&models.Book{}).Count(&stats.Books).Error; err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}
	if err := db.Model(&models.Student{}).Count(&stats.Students).Error; err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	if err := db.Model(&models.Admin{}).Count(&stats.Admins).Error; err != nil {
		return nil, fmt.Errorf("count admins: %w", err)
	}
	if err := db.Model(&models.BorrowRecord{}).Where("status = ?", models.LoanBorrowed).Count(&stats.Borrowed).Error; err != nil {
		return nil, fmt.Errorf("count loans: %w", err)
	}
	return &stats, nil
}
