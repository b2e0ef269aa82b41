package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"libtrack/internal/auth"
	"libtrack/internal/config"
	"libtrack/internal/http-api/models"
	"libtrack/internal/http-api/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBookUnavailable = errors.New("no copies of this book are available")
	ErrLoanNotFound    = errors.New("loan not found or already returned")
	ErrNotLoanOwner    = errors.New("loan belongs to another user")
)

// LendingService owns the loan lifecycle: OPEN on borrow, CLOSED on return,
// nothing else. It is the only writer of loan rows and routes every
// availability change through the guarded repository update.
type LendingService interface {
	Borrow(ctx context.Context, userID, bookID string) (*models.Loan, error)
	Return(ctx context.Context, actor *models.User, loanID string) (*models.Loan, error)
	ListForUser(ctx context.Context, userID string) ([]models.Loan, error)
	DaysUntilDue(loan *models.Loan, now time.Time) int
	AccruedFine(loan *models.Loan, now time.Time) float64
}

type lendingService struct {
	loanRepo   repository.LoanRepository
	bookRepo   repository.BookRepository
	userRepo   repository.UserRepository
	loanPeriod time.Duration
	finePerDay float64
}

func NewLendingService(
	loanRepo repository.LoanRepository,
	bookRepo repository.BookRepository,
	userRepo repository.UserRepository,
	cfg *config.Config,
) LendingService {
	return &lendingService{
		loanRepo:   loanRepo,
		bookRepo:   bookRepo,
		userRepo:   userRepo,
		loanPeriod: time.Duration(cfg.LoanPeriodDays) * 24 * time.Hour,
		finePerDay: cfg.FinePerDay,
	}
}

// Borrow takes one copy of a book for a user. The availability decrement is a
// single conditional UPDATE, so the last copy can only go to one of two
// concurrent borrowers; if persisting the loan fails afterwards, the decrement
// is compensated before the error is returned, leaving no partial state.
func (s *lendingService) Borrow(ctx context.Context, userID, bookID string) (*models.Loan, error) {
	if userID == "" {
		return nil, auth.ErrAuthenticationRequired
	}
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, ErrProfileNotFound
	}
	if _, err := s.bookRepo.GetByID(ctx, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}

	if err := s.bookRepo.AdjustAvailability(ctx, bookID, -1); err != nil {
		switch {
		case errors.Is(err, repository.ErrAvailabilityConflict):
			return nil, ErrBookUnavailable
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrBookNotFound
		default:
			return nil, err
		}
	}

	issueDate := time.Now()
	loan := &models.Loan{
		ID:        uuid.New().String(),
		BookID:    bookID,
		UserID:    userID,
		IssueDate: issueDate,
		DueDate:   issueDate.Add(s.loanPeriod),
		Fine:      0,
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		// put the copy back; the borrow never happened
		if compErr := s.bookRepo.AdjustAvailability(ctx, bookID, 1); compErr != nil {
			return nil, fmt.Errorf("create loan: %w (availability compensation also failed: %v)", err, compErr)
		}
		return nil, err
	}

	return loan, nil
}

// Return closes an open loan, snapshots the fine and puts the copy back on the
// shelf. Returning a closed or unknown loan fails with ErrLoanNotFound and
// never touches availability a second time.
func (s *lendingService) Return(ctx context.Context, actor *models.User, loanID string) (*models.Loan, error) {
	if actor == nil {
		return nil, auth.ErrAuthenticationRequired
	}

	loan, err := s.loanRepo.FindByID(ctx, loanID)
	if err != nil {
		return nil, ErrLoanNotFound
	}
	if loan.UserID != actor.ID && !actor.IsAdmin() {
		return nil, ErrNotLoanOwner
	}
	if !loan.IsOpen() {
		return nil, ErrLoanNotFound
	}

	returnDate := time.Now()
	fine := s.AccruedFine(loan, returnDate)

	// The return_date IS NULL guard inside Close makes this safe against a
	// concurrent return of the same loan.
	if err := s.loanRepo.Close(ctx, loanID, returnDate, fine); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}

	if err := s.bookRepo.AdjustAvailability(ctx, loan.BookID, 1); err != nil {
		// undo the close so the loan can be returned again later
		if compErr := s.loanRepo.Reopen(ctx, loanID); compErr != nil {
			return nil, fmt.Errorf("restore availability: %w (loan reopen also failed: %v)", err, compErr)
		}
		return nil, err
	}

	loan.ReturnDate = &returnDate
	loan.Fine = fine
	return loan, nil
}

func (s *lendingService) ListForUser(ctx context.Context, userID string) ([]models.Loan, error) {
	if userID == "" {
		return nil, auth.ErrAuthenticationRequired
	}
	return s.loanRepo.ListByUser(ctx, userID)
}

// DaysUntilDue reports whole days until the due date; negative means overdue.
// A loan becomes a day closer to due the moment a calendar day's worth of
// hours has passed, matching how the due date itself is computed.
func (s *lendingService) DaysUntilDue(loan *models.Loan, now time.Time) int {
	return int(math.Ceil(loan.DueDate.Sub(now).Hours() / 24))
}

// AccruedFine projects the flat per-day fine a loan has built up by the given
// time. For closed loans it is the stored snapshot; nothing accrues after
// return.
func (s *lendingService) AccruedFine(loan *models.Loan, now time.Time) float64 {
	if !loan.IsOpen() {
		return loan.Fine
	}
	daysLate := -s.DaysUntilDue(loan, now)
	if daysLate <= 0 {
		return 0
	}
	return s.finePerDay * float64(daysLate)
}
