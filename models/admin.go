package models

import (
	"time"

	"gorm.io/gorm"
)

// Admin is a library staff account.
type Admin struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"_id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Email     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name
func (Admin) TableName() string {
	return "admins"
}

// BeforeCreate assigns the id
func (a *Admin) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = generateUUID()
	}
	return nil
}
