package dto

import (
	"time"

	"libtrack/internal/http-api/models"
)

// BorrowRequest: payload for borrowing one copy of a book
type BorrowRequest struct {
	BookID string `json:"book_id" binding:"required,uuid"`
}

// LoanResponse decorates a loan with the derived fields the dashboards show.
type LoanResponse struct {
	ID           string       `json:"id"`
	BookID       string       `json:"book_id"`
	UserID       string       `json:"user_id"`
	IssueDate    time.Time    `json:"issue_date"`
	DueDate      time.Time    `json:"due_date"`
	ReturnDate   *time.Time   `json:"return_date,omitempty"`
	Status       string       `json:"status"`
	DaysUntilDue int          `json:"days_until_due"`
	Fine         float64      `json:"fine"`
	Book         *models.Book `json:"book,omitempty"`
}
