package models

import (
	"time"

	"gorm.io/gorm"
)

// Ratings is the running rating aggregate of a book
type Ratings struct {
	Average float64 `gorm:"default:0" json:"average"`
	Count   int     `gorm:"default:0" json:"count"`
}

// Book is a catalog entry. Available and CurrentlyBorrowed are only changed
// through conditional updates so that 0 <= available <= quantity holds.
type Book struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"_id"`
	Title             string    `gorm:"type:varchar(200);not null;index" json:"title"`
	Author            string    `gorm:"type:varchar(100);not null;index" json:"author"`
	ISBN              string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"isbn"`
	Category          string    `gorm:"type:varchar(50);not null;index" json:"category"`
	Quantity          int       `gorm:"not null" json:"quantity"`
	Available         int       `gorm:"not null;index" json:"available"`
	Description       string    `gorm:"type:text" json:"description,omitempty"`
	CoverImage        string    `gorm:"type:varchar(255)" json:"coverImage,omitempty"`
	PublicationYear   int       `json:"publicationYear,omitempty"`
	Ratings           Ratings   `gorm:"embedded;embeddedPrefix:ratings_" json:"ratings"`
	TotalBorrows      int       `gorm:"default:0;index" json:"totalBorrows"`
	CurrentlyBorrowed int       `gorm:"default:0" json:"currentlyBorrowed"`
	Trending          bool      `gorm:"default:false" json:"trending"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TableName returns the table name
func (Book) TableName() string {
	return "books"
}

// BeforeCreate assigns the id
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = generateUUID()
	}
	return nil
}

// AddRating folds a 1-5 rating into the running average.
func (r *Ratings) AddRating(rating int) {
	total := r.Average * float64(r.Count)
	r.Count++
	r.Average = (total + float64(rating)) / float64(r.Count)
}
