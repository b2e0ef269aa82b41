package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Book is one title with Total physical copies, Available of which are on the
// shelf right now. Availability only moves through the guarded repository
// update, so 0 <= Available <= Total holds at all times.
type Book struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	Title         string    `gorm:"not null;index" json:"title"`
	Author        string    `gorm:"not null" json:"author"`
	ISBN          string    `gorm:"column:isbn" json:"isbn"`
	Category      string    `gorm:"index" json:"category"`
	Total         int       `gorm:"not null" json:"total"`
	Available     int       `gorm:"not null" json:"available"`
	CoverImage    string    `json:"cover_image"`
	PublishedYear int       `json:"published_year"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (book *Book) BeforeCreate(tx *gorm.DB) (err error) {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	return
}

func (Book) TableName() string {
	return "books"
}
