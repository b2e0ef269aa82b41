package repository

import (
	"context"
	"fmt"
	"time"

	"libtrack/internal/http-api/models"

	"gorm.io/gorm"
)

type LoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	FindByID(ctx context.Context, id string) (*models.Loan, error)
	ListByUser(ctx context.Context, userID string) ([]models.Loan, error)
	Close(ctx context.Context, id string, returnDate time.Time, fine float64) error
	Reopen(ctx context.Context, id string) error
	CountOpenByBook(ctx context.Context, bookID string) (int64, error)
}

type loanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	if err := r.db.WithContext(ctx).Create(loan).Error; err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

func (r *loanRepository) FindByID(ctx context.Context, id string) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).Preload("Book").First(&loan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) ListByUser(ctx context.Context, userID string) ([]models.Loan, error) {
	var loans []models.Loan
	if err := r.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("issue_date DESC").
		Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

// Close stamps the return date and fine in a single conditional UPDATE. The
// return_date IS NULL guard makes a second return of the same loan a no-op at
// the database level, so availability can never be incremented twice.
func (r *loanRepository) Close(ctx context.Context, id string, returnDate time.Time, fine float64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND return_date IS NULL", id).
		Updates(map[string]interface{}{
			"return_date": returnDate,
			"fine":        fine,
		})
	if result.Error != nil {
		return fmt.Errorf("close loan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Reopen is the compensating action for a return whose availability increment
// failed after the loan was already closed.
func (r *loanRepository) Reopen(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"return_date": nil,
			"fine":        0,
		})
	if result.Error != nil {
		return fmt.Errorf("reopen loan: %w", result.Error)
	}
	return nil
}

func (r *loanRepository) CountOpenByBook(ctx context.Context, bookID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("book_id = ? AND return_date IS NULL", bookID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
