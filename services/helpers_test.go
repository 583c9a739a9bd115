package services

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"libraryhub_go/config"
	"libraryhub_go/middleware"
	"libraryhub_go/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	middleware.SetLogger(zap.NewNop())
}

// newTestDB opens a migrated SQLite database in a temp dir
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(&config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     filepath.Join(t.TempDir(), "library.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, config.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// newTestRedis starts an in-process Redis
func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func seedBook(t *testing.T, db *gorm.DB, isbn, category string, quantity int) *models.Book {
	t.Helper()
	book := &models.Book{
		Title:     "Book " + isbn,
		Author:    "Author " + category,
		ISBN:      isbn,
		Category:  category,
		Quantity:  quantity,
		Available: quantity,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

func seedStudent(t *testing.T, db *gorm.DB, enrollment string) *models.Student {
	t.Helper()
	student := &models.Student{
		Name:             "Student " + enrollment,
		EnrollmentNumber: enrollment,
		Password:         "unused",
	}
	require.NoError(t, db.Create(student).Error)
	return student
}

func reloadStudent(t *testing.T, db *gorm.DB, id string) *models.Student {
	t.Helper()
	student, err := loadStudentByID(db, id)
	require.NoError(t, err)
	return student
}

func reloadBook(t *testing.T, db *gorm.DB, id string) *models.Book {
	t.Helper()
	book, err := findBookByID(db, id)
	require.NoError(t, err)
	return book
}

// fixedClock returns a settable time source
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notification struct {
	studentID string
	eventType string
	data      interface{}
}

// recordingNotifier keeps every notification it receives
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(studentID, eventType string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{studentID: studentID, eventType: eventType, data: data})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.eventType)
	}
	return out
}
