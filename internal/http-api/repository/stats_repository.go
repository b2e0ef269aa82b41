package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"libtrack/internal/http-api/models"

	"gorm.io/gorm"
)

// CatalogTotals aggregates the size of the catalog.
type CatalogTotals struct {
	Titles int64 `json:"titles"`
	Copies int64 `json:"copies"`
	OnLoan int64 `json:"on_loan"`
}

// MonthlyActivity is one month of issue/return traffic for the admin chart.
type MonthlyActivity struct {
	Month   string  `json:"month"` // YYYY-MM
	Issues  int64   `json:"issues"`
	Returns int64   `json:"returns"`
	Fines   float64 `json:"fines"`
}

type StatsRepository interface {
	CatalogTotals(ctx context.Context) (*CatalogTotals, error)
	CountOpenLoans(ctx context.Context, userID string) (int64, error)
	CountOverdueLoans(ctx context.Context, userID string, asOf time.Time) (int64, error)
	SumClosedFines(ctx context.Context, userID string) (float64, error)
	OpenOverdueLoans(ctx context.Context, userID string, asOf time.Time) ([]models.Loan, error)
	MonthlyActivity(ctx context.Context, since time.Time) ([]MonthlyActivity, error)
}

type statsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) CatalogTotals(ctx context.Context) (*CatalogTotals, error) {
	var totals CatalogTotals
	err := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Select("count(*) as titles, coalesce(sum(total), 0) as copies, coalesce(sum(total - available), 0) as on_loan").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("catalog totals: %w", err)
	}
	return &totals, nil
}

// CountOpenLoans counts open loans; a blank userID counts across all users.
func (r *statsRepository) CountOpenLoans(ctx context.Context, userID string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Loan{}).Where("return_date IS NULL")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *statsRepository) CountOverdueLoans(ctx context.Context, userID string, asOf time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("return_date IS NULL AND due_date < ?", asOf)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *statsRepository) SumClosedFines(ctx context.Context, userID string) (float64, error) {
	q := r.db.WithContext(ctx).Model(&models.Loan{}).Where("return_date IS NOT NULL")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var sum float64
	if err := q.Select("coalesce(sum(fine), 0)").Scan(&sum).Error; err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *statsRepository) OpenOverdueLoans(ctx context.Context, userID string, asOf time.Time) ([]models.Loan, error) {
	q := r.db.WithContext(ctx).
		Where("return_date IS NULL AND due_date < ?", asOf)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var loans []models.Loan
	if err := q.Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("open overdue loans: %w", err)
	}
	return loans, nil
}

type monthlyRow struct {
	Month string
	Count int64
	Fines float64
}

// MonthlyActivity merges per-month issue and return counts since the given
// cutoff. Fines are attributed to the month the loan was closed.
func (r *statsRepository) MonthlyActivity(ctx context.Context, since time.Time) ([]MonthlyActivity, error) {
	var issued []monthlyRow
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Select("to_char(date_trunc('month', issue_date), 'YYYY-MM') as month, count(*) as count, 0 as fines").
		Where("issue_date >= ?", since).
		Group("date_trunc('month', issue_date)").
		Scan(&issued).Error
	if err != nil {
		return nil, fmt.Errorf("monthly issues: %w", err)
	}

	var returned []monthlyRow
	err = r.db.WithContext(ctx).Model(&models.Loan{}).
		Select("to_char(date_trunc('month', return_date), 'YYYY-MM') as month, count(*) as count, coalesce(sum(fine), 0) as fines").
		Where("return_date >= ?", since).
		Group("date_trunc('month', return_date)").
		Scan(&returned).Error
	if err != nil {
		return nil, fmt.Errorf("monthly returns: %w", err)
	}

	byMonth := make(map[string]*MonthlyActivity)
	for _, row := range issued {
		byMonth[row.Month] = &MonthlyActivity{Month: row.Month, Issues: row.Count}
	}
	for _, row := range returned {
		entry, ok := byMonth[row.Month]
		if !ok {
			entry = &MonthlyActivity{Month: row.Month}
			byMonth[row.Month] = entry
		}
		entry.Returns = row.Count
		entry.Fines = row.Fines
	}

	months := make([]MonthlyActivity, 0, len(byMonth))
	for _, entry := range byMonth {
		months = append(months, *entry)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months, nil
}
