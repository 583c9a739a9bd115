package services

import (
	"context"
	"fmt"
	"time"

	"libraryhub_go/metrics"
	"libraryhub_go/middleware"
	"libraryhub_go/models"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Cron specs, evaluated in the library time zone
const (
	MonthlyResetSpec    = "0 0 1 * *"
	YearlyResetSpec     = "0 0 1 1 *"
	TrendingRefreshSpec = "@hourly"
)

// Scheduler runs the periodic maintenance jobs
type Scheduler struct {
	db    *gorm.DB
	books *BookService
	cache hashCache
	cron  *cron.Cron
}

// NewScheduler creates a scheduler running in loc
func NewScheduler(db *gorm.DB, rdb *redis.Client, books *BookService, loc *time.Location) *Scheduler {
	return &Scheduler{
		db:    db,
		books: books,
		cache: leaderboardCache(rdb),
		cron:  cron.New(cron.WithLocation(loc)),
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{MonthlyResetSpec, "monthly_reset", s.ResetMonthly},
		{YearlyResetSpec, "yearly_reset", s.ResetYearly},
		{TrendingRefreshSpec, "trending_refresh", s.RefreshTrending},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.run(job.name, job.run) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}
	s.cron.Start()
	middleware.InfoLogger("scheduler started", zap.Int("jobs", len(jobs)))
	return nil
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run(name string, job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	metrics.RecordJob(name, err == nil)
	if err != nil {
		middleware.ErrorLogger("scheduled job failed", zap.String("job", name), zap.Error(err))
		return
	}
	middleware.InfoLogger("scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// ResetMonthly zeroes booksThisMonth for every student
func (s *Scheduler) ResetMonthly(ctx context.Context) error {
	return s.resetCounter(ctx, "reading_books_this_month")
}

// ResetYearly zeroes booksThisYear for every student
func (s *Scheduler) ResetYearly(ctx context.Context) error {
	return s.resetCounter(ctx, "reading_books_this_year")
}

// resetCounter bumps version too so in-flight workflows retry instead of
// writing back a stale count.
func (s *Scheduler) resetCounter(ctx context.Context, column string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Student{}).
		Where(column+" <> ?", 0).
		Updates(map[string]interface{}{
			column:    0,
			"version": gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("reset %s: %w", column, err)
	}
	s.cache.invalidate(ctx, leaderboardKey(LeaderboardByPoints), leaderboardKey(LeaderboardByBooks))
	return nil
}

// RefreshTrending recomputes every trending flag
func (s *Scheduler) RefreshTrending(ctx context.Context) error {
	n, err := s.books.RecomputeTrending(ctx)
	if err != nil {
		return err
	}
	middleware.DebugLogger("trending refreshed", zap.Int64("books", n))
	return nil
}
