package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"libraryhub_go/metrics"
	"libraryhub_go/middleware"
	"libraryhub_go/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BorrowService runs the loan lifecycle and the gamification it triggers.
// Book, record and student writes of one call share a transaction; the
// book counters move through conditional updates and the student through
// a version check.
type BorrowService struct {
	db       *gorm.DB
	rdb      *redis.Client
	game     *Gamification
	notifier Notifier
	now      func() time.Time
}

// NewBorrowService creates the service. rdb may be nil.
func NewBorrowService(db *gorm.DB, rdb *redis.Client, game *Gamification) *BorrowService {
	return &BorrowService{
		db:       db,
		rdb:      rdb,
		game:     game,
		notifier: nopNotifier{},
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *BorrowService) SetClock(now func() time.Time) {
	s.now = now
}

// SetNotifier sets where progress events go
func (s *BorrowService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// BorrowRequest lends the book with ISBN to the student
type BorrowRequest struct {
	EnrollmentNumber string `json:"enrollmentNumber" binding:"required"`
	ISBN             string `json:"isbn" binding:"required"`
	// ReturnDate overrides the default due date. RFC 3339 or YYYY-MM-DD.
	ReturnDate string `json:"returnDate" binding:"omitempty"`
}

// ReturnRequest closes the student's open loan of the book with ISBN
type ReturnRequest struct {
	EnrollmentNumber string `json:"enrollmentNumber" binding:"required"`
	ISBN             string `json:"isbn" binding:"required"`
}

// RateRequest rates a returned book
type RateRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Review string `json:"review" binding:"omitempty,max=2000"`
}

// LoanResult is the outcome of a borrow or return
type LoanResult struct {
	Student   *models.Student
	Record    models.BorrowRecord
	Awards    []Award
	NewBadges []string
	// WasOnTime is only meaningful for returns.
	WasOnTime bool
	Streak    *StreakUpdate
}

// RateResult is the outcome of a rating
type RateResult struct {
	Rating    int
	Review    string
	NewBadges []string
}

func parseDueDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, Validationf("returnDate must be an ISO 8601 date")
}

// Borrow lends one copy of a book
func (s *BorrowService) Borrow(ctx context.Context, req *BorrowRequest) (*LoanResult, error) {
	result, err := s.borrow(ctx, req)
	s.recordOutcome("borrow", err)
	if err != nil {
		return nil, err
	}
	s.afterLoan(ctx, "book_borrowed", result)
	return result, nil
}

func (s *BorrowService) borrow(ctx context.Context, req *BorrowRequest) (*LoanResult, error) {
	rules := s.game.Rules
	now := s.now()

	due := now.AddDate(0, 0, rules.LoanDays)
	if req.ReturnDate != "" {
		parsed, err := parseDueDate(req.ReturnDate, s.game.Location)
		if err != nil {
			return nil, err
		}
		due = parsed
	}

	result := &LoanResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		student, err := loadStudentByEnrollment(tx, req.EnrollmentNumber)
		if err != nil {
			return err
		}
		book, err := findBookByISBN(tx, req.ISBN)
		if err != nil {
			return err
		}
		if student.ActiveLoan(book.ID) != nil {
			return ErrAlreadyBorrowed
		}

		res := tx.Model(&models.Book{}).
			Where("id = ? AND available > 0", book.ID).
			Updates(map[string]interface{}{
				"available":          gorm.Expr("available - 1"),
				"total_borrows":      gorm.Expr("total_borrows + 1"),
				"currently_borrowed": gorm.Expr("currently_borrowed + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("reserve copy: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNoCopies
		}
		if err := refreshTrending(tx, rules, book.ID); err != nil {
			return err
		}
		if book, err = findBookByID(tx, book.ID); err != nil {
			return err
		}

		record := models.BorrowRecord{
			StudentID:  student.ID,
			BookID:     book.ID,
			BorrowDate: now,
			DueDate:    &due,
			Status:     models.LoanBorrowed,
		}
		if err := tx.Omit(clause.Associations).Create(&record).Error; err != nil {
			return fmt.Errorf("create borrow record: %w", err)
		}
		record.Book = book
		student.BorrowedBooks = append(student.BorrowedBooks, record)

		result.Awards = append(result.Awards, s.game.Ledger.Award(student, BorrowBook, 1))
		streak := s.game.Streak.Touch(student, now)
		if streak.Bonus != nil {
			result.Awards = append(result.Awards, *streak.Bonus)
		}
		result.Streak = &streak
		result.NewBadges = s.game.Badges.Evaluate(student)

		if err := saveProgress(tx, student); err != nil {
			return err
		}
		result.Student = student
		result.Record = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Return closes a loan and scores its timeliness
func (s *BorrowService) Return(ctx context.Context, req *ReturnRequest) (*LoanResult, error) {
	result, err := s.returnBook(ctx, req)
	s.recordOutcome("return", err)
	if err != nil {
		return nil, err
	}
	s.afterLoan(ctx, "book_returned", result)
	return result, nil
}

// returnTier picks the activity a return earns
func (s *BorrowService) returnTier(record *models.BorrowRecord, now time.Time, onTime bool) ActivityKind {
	if !onTime {
		return LateReturn
	}
	if record.DueDate != nil {
		daysEarly := int(math.Floor(record.DueDate.Sub(now).Hours() / 24))
		if daysEarly >= s.game.Rules.EarlyReturnDays {
			return ReturnEarly
		}
	}
	return ReturnOnTime
}

func (s *BorrowService) returnBook(ctx context.Context, req *ReturnRequest) (*LoanResult, error) {
	rules := s.game.Rules
	now := s.now()

	result := &LoanResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		student, err := loadStudentByEnrollment(tx, req.EnrollmentNumber)
		if err != nil {
			return err
		}
		book, err := findBookByISBN(tx, req.ISBN)
		if err != nil {
			return err
		}
		record := student.ActiveLoan(book.ID)
		if record == nil {
			return ErrNoBorrowRecord
		}

		onTime := record.DueDate == nil || !now.After(*record.DueDate)
		res := tx.Model(&models.BorrowRecord{}).
			Where("id = ? AND status = ?", record.ID, models.LoanBorrowed).
			Updates(map[string]interface{}{
				"status":           models.LoanReturned,
				"return_date":      now,
				"returned_on_time": onTime,
			})
		if res.Error != nil {
			return fmt.Errorf("close borrow record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNoBorrowRecord
		}

		res = tx.Model(&models.Book{}).
			Where("id = ? AND currently_borrowed > 0 AND available < quantity", book.ID).
			Updates(map[string]interface{}{
				"available":          gorm.Expr("available + 1"),
				"currently_borrowed": gorm.Expr("currently_borrowed - 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("restock copy: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			middleware.WarnLogger("return left inventory unchanged, book already at capacity",
				zap.String("book_id", book.ID),
				zap.String("student_id", student.ID),
			)
		}
		if err := refreshTrending(tx, rules, book.ID); err != nil {
			return err
		}
		if book, err = findBookByID(tx, book.ID); err != nil {
			return err
		}

		record.Status = models.LoanReturned
		record.ReturnDate = &now
		record.ReturnedOnTime = &onTime
		record.Book = book

		result.Awards = append(result.Awards, s.game.Ledger.Award(student, s.returnTier(record, now, onTime), 1))
		student.ReadingStats.TotalBooksRead++
		student.ReadingStats.BooksThisMonth++
		student.ReadingStats.BooksThisYear++
		result.NewBadges = s.game.Badges.Evaluate(student)

		if err := saveProgress(tx, student); err != nil {
			return err
		}
		result.Student = student
		result.Record = *record
		result.WasOnTime = onTime
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Rate records a rating and optional review on the latest returned loan of
// bookID. A first review on a record earns WRITE_REVIEW when the rules
// enable review awards.
func (s *BorrowService) Rate(ctx context.Context, studentID, bookID string, req *RateRequest) (*RateResult, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, Validationf("Rating must be between 1 and 5")
	}
	review := strings.TrimSpace(req.Review)

	result := &RateResult{}
	var (
		student *models.Student
		awards  []Award
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		student, err = loadStudentByID(tx, studentID)
		if err != nil {
			return err
		}

		var record *models.BorrowRecord
		for i := len(student.BorrowedBooks) - 1; i >= 0; i-- {
			r := &student.BorrowedBooks[i]
			if r.BookID == bookID && r.Status == models.LoanReturned {
				record = r
				break
			}
		}
		if record == nil {
			return ErrNotRatable
		}

		previous := record.Rating
		firstReview := review != "" && record.Review == ""
		rating := req.Rating
		record.Rating = &rating
		updates := map[string]interface{}{"rating": rating}
		if review != "" {
			record.Review = review
			updates["review"] = review
		}
		if err := tx.Model(&models.BorrowRecord{}).Where("id = ?", record.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("save rating: %w", err)
		}

		if err := s.foldBookRating(tx, bookID, previous, rating); err != nil {
			return err
		}

		var sum, count int
		for _, r := range student.BorrowedBooks {
			if r.Rating != nil {
				sum += *r.Rating
				count++
			}
		}
		if count > 0 {
			student.ReadingStats.AverageRating = float64(sum) / float64(count)
		}

		if firstReview && s.game.Rules.AwardReviews {
			awards = append(awards, s.game.Ledger.Award(student, WriteReview, 1))
		}
		result.NewBadges = s.game.Badges.Evaluate(student)
		if err := saveProgress(tx, student); err != nil {
			return err
		}

		result.Rating = rating
		result.Review = record.Review
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range awards {
		metrics.RecordPoints(string(a.Kind), a.Points)
	}
	metrics.RecordBadges(result.NewBadges)
	s.invalidate(ctx)
	notifyProgress(s.notifier, s.game.Rules, student, awards, result.NewBadges, nil)
	publishEvent(ctx, s.rdb, "book_rated", map[string]interface{}{
		"student_id": student.ID,
		"book_id":    bookID,
		"rating":     result.Rating,
	})
	return result, nil
}

// foldBookRating adds rating to the book aggregate, or swaps out previous
// when the record was already rated. A concurrent change to the aggregate
// aborts with a conflict.
func (s *BorrowService) foldBookRating(tx *gorm.DB, bookID string, previous *int, rating int) error {
	book, err := findBookByID(tx, bookID)
	if errors.Is(err, ErrBookNotFound) {
		// the catalog entry was deleted, the record keeps its rating
		return nil
	}
	if err != nil {
		return err
	}

	old := book.Ratings
	next := old
	if previous == nil {
		next.AddRating(rating)
	} else if next.Count > 0 {
		next.Average = (next.Average*float64(next.Count) - float64(*previous) + float64(rating)) / float64(next.Count)
	}

	res := tx.Model(&models.Book{}).
		Where("id = ? AND ratings_count = ? AND ratings_average = ?", bookID, old.Count, old.Average).
		Updates(map[string]interface{}{
			"ratings_average": next.Average,
			"ratings_count":   next.Count,
		})
	if res.Error != nil {
		return fmt.Errorf("save book rating: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// TouchStreak records activity for a student outside of a loan
func (s *BorrowService) TouchStreak(ctx context.Context, studentID string) (*models.Streak, error) {
	var (
		student *models.Student
		update  StreakUpdate
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		student, err = loadStudentByID(tx, studentID)
		if err != nil {
			return err
		}
		update = s.game.Streak.Touch(student, s.now())
		if !update.Changed {
			return nil
		}
		return saveProgress(tx, student)
	})
	if err != nil {
		return nil, err
	}

	if update.Changed {
		var awards []Award
		if update.Bonus != nil {
			awards = append(awards, *update.Bonus)
			metrics.RecordPoints(string(update.Bonus.Kind), update.Bonus.Points)
		}
		// currentStreak is part of every leaderboard entry
		leaderboardCache(s.rdb).invalidate(ctx, leaderboardKey(LeaderboardByPoints), leaderboardKey(LeaderboardByBooks))
		notifyProgress(s.notifier, s.game.Rules, student, awards, nil, &update)
	}
	return &update.Streak, nil
}

// AllBorrowed lists every student with at least one loan, with history
func (s *BorrowService) AllBorrowed(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := withHistory(s.db.WithContext(ctx)).
		Where("EXISTS (SELECT 1 FROM borrow_records br WHERE br.student_id = students.id)").
		Order("name ASC").
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("list borrowers: %w", err)
	}
	return students, nil
}

func (s *BorrowService) recordOutcome(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "internal"
		if kind := KindOf(err); kind != nil {
			outcome = kind.Error()
		}
	}
	metrics.RecordLoan(action, outcome)
}

// invalidate drops the rankings and every cached recommendation list, since
// stock and ratings feed all of them
func (s *BorrowService) invalidate(ctx context.Context) {
	leaderboardCache(s.rdb).invalidate(ctx, leaderboardKey(LeaderboardByPoints), leaderboardKey(LeaderboardByBooks))
	recommendationCache(s.rdb).invalidateMatching(ctx, recommendationKey("*"))
}

// afterLoan runs the best effort side effects of a committed loan change
func (s *BorrowService) afterLoan(ctx context.Context, event string, r *LoanResult) {
	for _, a := range r.Awards {
		metrics.RecordPoints(string(a.Kind), a.Points)
	}
	metrics.RecordBadges(r.NewBadges)
	s.invalidate(ctx)

	publishEvent(ctx, s.rdb, event, map[string]interface{}{
		"student_id": r.Student.ID,
		"book_id":    r.Record.BookID,
		"points":     r.Student.Points,
		"badges":     strings.Join(r.NewBadges, ","),
	})
	notifyProgress(s.notifier, s.game.Rules, r.Student, r.Awards, r.NewBadges, r.Streak)

	middleware.InfoLogger(event,
		zap.String("student_id", r.Student.ID),
		zap.String("book_id", r.Record.BookID),
		zap.Int("points", r.Student.Points),
		zap.Strings("new_badges", r.NewBadges),
	)
}
