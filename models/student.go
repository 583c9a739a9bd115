package models

import (
	"time"

	"gorm.io/gorm"
)

// Branch is the academic branch of a student.
type Branch string

const (
	BranchCSE         Branch = "Computer Science and Engineering"
	BranchElectrical  Branch = "Electrical Engineering"
	BranchElectronics Branch = "Electronics"
	BranchCivil       Branch = "Civil Engineering"
	BranchMechanical  Branch = "Mechanical Engineering"
)

// Branches lists every accepted branch.
var Branches = []Branch{BranchCSE, BranchElectrical, BranchElectronics, BranchCivil, BranchMechanical}

// ValidBranch reports whether s names a known branch. The empty string is accepted.
func ValidBranch(s string) bool {
	if s == "" {
		return true
	}
	for _, b := range Branches {
		if string(b) == s {
			return true
		}
	}
	return false
}

// LoanStatus is the state of a borrow record.
type LoanStatus string

const (
	LoanBorrowed LoanStatus = "borrowed"
	LoanReturned LoanStatus = "returned"
)

// Streak counts consecutive calendar days with activity.
type Streak struct {
	Current        int        `gorm:"default:0" json:"current"`
	Longest        int        `gorm:"default:0" json:"longest"`
	LastActiveDate *time.Time `json:"lastActiveDate,omitempty"`
}

// ReadingStats are cumulative reading counters.
type ReadingStats struct {
	TotalBooksRead int     `gorm:"default:0;index" json:"totalBooksRead"`
	BooksThisMonth int     `gorm:"default:0" json:"booksThisMonth"`
	BooksThisYear  int     `gorm:"default:0" json:"booksThisYear"`
	AverageRating  float64 `gorm:"default:0" json:"averageRating"`
}

// Preferences feed the recommendation read path.
type Preferences struct {
	FavoriteCategories StringList `gorm:"type:text" json:"favoriteCategories"`
	ReadingGoal        int        `gorm:"default:0" json:"readingGoal"`
}

// Student is a library member together with its gamification state.
// Writes go through a compare-and-swap on Version.
type Student struct {
	ID               string         `gorm:"type:varchar(36);primaryKey" json:"_id"`
	Name             string         `gorm:"type:varchar(100);not null" json:"name"`
	EnrollmentNumber string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"enrollmentNumber"`
	Password         string         `gorm:"type:varchar(255);not null" json:"-"`
	RollNumber       string         `gorm:"type:varchar(50)" json:"rollNumber,omitempty"`
	Branch           string         `gorm:"type:varchar(100)" json:"branch,omitempty"`
	Session          string         `gorm:"type:varchar(50)" json:"session,omitempty"`
	BorrowedBooks    []BorrowRecord `gorm:"foreignKey:StudentID" json:"borrowedBooks"`
	Points           int            `gorm:"default:0;index" json:"points"`
	Level            int            `gorm:"default:1" json:"level"`
	Badges           StringList     `gorm:"type:text" json:"badges"`
	Streak           Streak         `gorm:"embedded;embeddedPrefix:streak_" json:"streak"`
	ReadingStats     ReadingStats   `gorm:"embedded;embeddedPrefix:reading_" json:"readingStats"`
	Preferences      Preferences    `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`
	Version          int64          `gorm:"not null;default:0" json:"-"`
	CreatedAt        time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// TableName returns the table name
func (Student) TableName() string {
	return "students"
}

// BeforeCreate assigns the id and normalizes list columns
func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateUUID()
	}
	if s.Level == 0 {
		s.Level = 1
	}
	if s.Badges == nil {
		s.Badges = StringList{}
	}
	if s.Preferences.FavoriteCategories == nil {
		s.Preferences.FavoriteCategories = StringList{}
	}
	return nil
}

// ActiveLoan returns the open record for bookID, if any.
func (s *Student) ActiveLoan(bookID string) *BorrowRecord {
	for i := range s.BorrowedBooks {
		r := &s.BorrowedBooks[i]
		if r.BookID == bookID && r.Status == LoanBorrowed {
			return r
		}
	}
	return nil
}

// ActiveLoanCount is the number of records still in the borrowed state.
func (s *Student) ActiveLoanCount() int {
	n := 0
	for _, r := range s.BorrowedBooks {
		if r.Status == LoanBorrowed {
			n++
		}
	}
	return n
}

// BorrowRecord is one loan of a book by a student. Records belong to their
// student and are removed with it.
type BorrowRecord struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"-"`
	StudentID      string     `gorm:"type:varchar(36);index;not null" json:"-"`
	BookID         string     `gorm:"type:varchar(36);index;not null" json:"bookId"`
	Book           *Book      `gorm:"foreignKey:BookID" json:"book,omitempty"`
	BorrowDate     time.Time  `json:"borrowDate"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	ReturnDate     *time.Time `json:"returnDate"`
	Status         LoanStatus `gorm:"type:varchar(20);not null;default:borrowed;index" json:"status"`
	ReturnedOnTime *bool      `json:"returnedOnTime"`
	Rating         *int       `json:"rating,omitempty"`
	Review         string     `gorm:"type:text" json:"review,omitempty"`
	CreatedAt      time.Time  `json:"-"`
}

// TableName returns the table name
func (BorrowRecord) TableName() string {
	return "borrow_records"
}

// BeforeCreate assigns the id
func (r *BorrowRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	if r.Status == "" {
		r.Status = LoanBorrowed
	}
	return nil
}
