package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	LoanStatusOpen   = "open"
	LoanStatusClosed = "closed"
)

// Loan records one copy of one Book held by one User. A loan is open until
// ReturnDate is set; after that it is closed for good and Fine is a snapshot,
// never recalculated.
type Loan struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	BookID     string     `gorm:"type:uuid;not null;index" json:"book_id"`
	UserID     string     `gorm:"type:uuid;not null;index" json:"user_id"`
	IssueDate  time.Time  `gorm:"not null" json:"issue_date"`
	DueDate    time.Time  `gorm:"not null" json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Fine       float64    `gorm:"type:decimal(8,2);not null;default:0" json:"fine"`
	CreatedAt  time.Time  `json:"created_at"`

	// Associations
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (loan *Loan) BeforeCreate(tx *gorm.DB) (err error) {
	if loan.ID == "" {
		loan.ID = uuid.New().String()
	}
	return
}

func (Loan) TableName() string {
	return "loans"
}

func (loan *Loan) IsOpen() bool {
	return loan.ReturnDate == nil
}

func (loan *Loan) Status() string {
	if loan.IsOpen() {
		return LoanStatusOpen
	}
	return LoanStatusClosed
}
