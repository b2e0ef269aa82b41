package service

import (
	"context"
	"time"

	"libtrack/internal/auth"
	"libtrack/internal/http-api/models"
	"libtrack/internal/http-api/repository"
)

// StudentSummary backs the student dashboard cards.
type StudentSummary struct {
	CurrentBooks int64   `json:"current_books"`
	Overdue      int64   `json:"overdue"`
	TotalFines   float64 `json:"total_fines"`
}

// AdminSummary backs the admin dashboard cards.
type AdminSummary struct {
	Titles         int64   `json:"titles"`
	Copies         int64   `json:"copies"`
	CopiesOnLoan   int64   `json:"copies_on_loan"`
	Students       int64   `json:"students"`
	OpenLoans      int64   `json:"open_loans"`
	OverdueLoans   int64   `json:"overdue_loans"`
	FinesCollected float64 `json:"fines_collected"`
}

type StatsService interface {
	StudentSummary(ctx context.Context, userID string) (*StudentSummary, error)
	AdminSummary(ctx context.Context, actor *models.User) (*AdminSummary, error)
	MonthlyActivity(ctx context.Context, actor *models.User, months int) ([]repository.MonthlyActivity, error)
}

type statsService struct {
	statsRepo repository.StatsRepository
	userRepo  repository.UserRepository
	lending   LendingService
}

func NewStatsService(
	statsRepo repository.StatsRepository,
	userRepo repository.UserRepository,
	lending LendingService,
) StatsService {
	return &statsService{
		statsRepo: statsRepo,
		userRepo:  userRepo,
		lending:   lending,
	}
}

// StudentSummary totals a user's open loans, overdue loans and fines. Fines
// combine closed-loan snapshots with what open overdue loans have accrued so
// far; the accrued part is display-only and never written back.
func (s *statsService) StudentSummary(ctx context.Context, userID string) (*StudentSummary, error) {
	if userID == "" {
		return nil, auth.ErrAuthenticationRequired
	}
	now := time.Now()

	open, err := s.statsRepo.CountOpenLoans(ctx, userID)
	if err != nil {
		return nil, err
	}
	overdue, err := s.statsRepo.CountOverdueLoans(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	fines, err := s.outstandingFines(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	return &StudentSummary{
		CurrentBooks: open,
		Overdue:      overdue,
		TotalFines:   fines,
	}, nil
}

func (s *statsService) AdminSummary(ctx context.Context, actor *models.User) (*AdminSummary, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	now := time.Now()

	totals, err := s.statsRepo.CatalogTotals(ctx)
	if err != nil {
		return nil, err
	}
	students, err := s.userRepo.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	open, err := s.statsRepo.CountOpenLoans(ctx, "")
	if err != nil {
		return nil, err
	}
	overdue, err := s.statsRepo.CountOverdueLoans(ctx, "", now)
	if err != nil {
		return nil, err
	}
	collected, err := s.statsRepo.SumClosedFines(ctx, "")
	if err != nil {
		return nil, err
	}

	return &AdminSummary{
		Titles:         totals.Titles,
		Copies:         totals.Copies,
		CopiesOnLoan:   totals.OnLoan,
		Students:       students,
		OpenLoans:      open,
		OverdueLoans:   overdue,
		FinesCollected: collected,
	}, nil
}

func (s *statsService) MonthlyActivity(ctx context.Context, actor *models.User, months int) ([]repository.MonthlyActivity, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if months < 1 {
		months = 6
	}
	since := time.Now().AddDate(0, -months, 0)
	return s.statsRepo.MonthlyActivity(ctx, since)
}

func (s *statsService) outstandingFines(ctx context.Context, userID string, now time.Time) (float64, error) {
	closed, err := s.statsRepo.SumClosedFines(ctx, userID)
	if err != nil {
		return 0, err
	}
	openOverdue, err := s.statsRepo.OpenOverdueLoans(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	total := closed
	for i := range openOverdue {
		total += s.lending.AccruedFine(&openOverdue[i], now)
	}
	return total, nil
}
