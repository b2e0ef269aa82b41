package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"libtrack/internal/auth"
	"libtrack/internal/config"
	"libtrack/internal/http-api/models"
	"libtrack/internal/http-api/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testLendingConfig() *config.Config {
	return &config.Config{
		LoanPeriodDays: 30,
		FinePerDay:     0.50,
	}
}

func newTestLendingService(loanRepo *MockLoanRepository, bookRepo *MockBookRepository, userRepo *MockUserRepository) LendingService {
	return NewLendingService(loanRepo, bookRepo, userRepo, testLendingConfig())
}

func TestBorrow_Success(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	user := &models.User{ID: "user-1", Role: models.RoleStudent}
	book := &models.Book{ID: "book-1", Title: "The Go Programming Language", Total: 3, Available: 2}

	mockUserRepo.On("FindByID", mock.Anything, "user-1").Return(user, nil)
	mockBookRepo.On("GetByID", mock.Anything, "book-1").Return(book, nil)
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", -1).Return(nil)
	mockLoanRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Loan")).Return(nil)

	loan, err := lendingService.Borrow(context.Background(), "user-1", "book-1")

	assert.NoError(t, err)
	require.NotNil(t, loan)
	assert.Equal(t, "book-1", loan.BookID)
	assert.Equal(t, "user-1", loan.UserID)
	assert.True(t, loan.IsOpen())
	assert.Equal(t, models.LoanStatusOpen, loan.Status())
	assert.Equal(t, float64(0), loan.Fine)
	assert.Equal(t, 30*24*time.Hour, loan.DueDate.Sub(loan.IssueDate))
	mockLoanRepo.AssertExpectations(t)
	mockBookRepo.AssertExpectations(t)
}

func TestBorrow_Unauthenticated(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	loan, err := lendingService.Borrow(context.Background(), "", "book-1")

	assert.ErrorIs(t, err, auth.ErrAuthenticationRequired)
	assert.Nil(t, loan)
	mockBookRepo.AssertNotCalled(t, "AdjustAvailability", mock.Anything, mock.Anything, mock.Anything)
}

func TestBorrow_BookNotFound(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	mockUserRepo.On("FindByID", mock.Anything, "user-1").Return(&models.User{ID: "user-1"}, nil)
	mockBookRepo.On("GetByID", mock.Anything, "missing").Return(nil, gorm.ErrRecordNotFound)

	loan, err := lendingService.Borrow(context.Background(), "user-1", "missing")

	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.Nil(t, loan)
	mockLoanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBorrow_NoCopiesAvailable(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	book := &models.Book{ID: "book-1", Total: 2, Available: 0}
	mockUserRepo.On("FindByID", mock.Anything, "user-1").Return(&models.User{ID: "user-1"}, nil)
	mockBookRepo.On("GetByID", mock.Anything, "book-1").Return(book, nil)
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", -1).Return(repository.ErrAvailabilityConflict)

	loan, err := lendingService.Borrow(context.Background(), "user-1", "book-1")

	assert.ErrorIs(t, err, ErrBookUnavailable)
	assert.Nil(t, loan)
	mockLoanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBorrow_CompensatesWhenLoanCreateFails(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	book := &models.Book{ID: "book-1", Total: 2, Available: 1}
	createErr := errors.New("insert failed")

	mockUserRepo.On("FindByID", mock.Anything, "user-1").Return(&models.User{ID: "user-1"}, nil)
	mockBookRepo.On("GetByID", mock.Anything, "book-1").Return(book, nil)
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", -1).Return(nil)
	mockLoanRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Loan")).Return(createErr)
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", 1).Return(nil)

	loan, err := lendingService.Borrow(context.Background(), "user-1", "book-1")

	assert.ErrorIs(t, err, createErr)
	assert.Nil(t, loan)
	mockBookRepo.AssertCalled(t, "AdjustAvailability", mock.Anything, "book-1", 1)
}

// Two borrowers racing for the last copy: the guarded availability update lets
// exactly one decrement succeed, so exactly one loan is created.
func TestBorrow_LastCopyHasOneWinner(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	book := &models.Book{ID: "book-1", Total: 1, Available: 1}
	mockUserRepo.On("FindByID", mock.Anything, mock.Anything).Return(&models.User{ID: "user-1"}, nil)
	mockBookRepo.On("GetByID", mock.Anything, "book-1").Return(book, nil)
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", -1).Return(nil).Once()
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", -1).Return(repository.ErrAvailabilityConflict)
	mockLoanRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Loan")).Return(nil)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := lendingService.Borrow(context.Background(), userID, "book-1")
			results <- err
		}("user-" + string(rune('1'+i)))
	}
	wg.Wait()
	close(results)

	var successes, unavailable int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrBookUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, unavailable)
	mockLoanRepo.AssertNumberOfCalls(t, "Create", 1)
}

func TestReturn_Success(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	actor := &models.User{ID: "user-1", Role: models.RoleStudent}
	loan := &models.Loan{
		ID:        "loan-1",
		BookID:    "book-1",
		UserID:    "user-1",
		IssueDate: time.Now().Add(-5 * 24 * time.Hour),
		DueDate:   time.Now().Add(25 * 24 * time.Hour),
	}

	mockLoanRepo.On("FindByID", mock.Anything, "loan-1").Return(loan, nil)
	mockLoanRepo.On("Close", mock.Anything, "loan-1", mock.AnythingOfType("time.Time"), float64(0)).Return(nil)
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", 1).Return(nil)

	returned, err := lendingService.Return(context.Background(), actor, "loan-1")

	assert.NoError(t, err)
	require.NotNil(t, returned)
	assert.False(t, returned.IsOpen())
	assert.Equal(t, models.LoanStatusClosed, returned.Status())
	assert.Equal(t, float64(0), returned.Fine)
	mockBookRepo.AssertExpectations(t)
}

func TestReturn_OverdueAccruesFine(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	actor := &models.User{ID: "user-1", Role: models.RoleStudent}
	// due 3 days ago, with an hour of slack so the day count is stable
	loan := &models.Loan{
		ID:      "loan-1",
		BookID:  "book-1",
		UserID:  "user-1",
		DueDate: time.Now().Add(-3*24*time.Hour - time.Hour),
	}

	mockLoanRepo.On("FindByID", mock.Anything, "loan-1").Return(loan, nil)
	mockLoanRepo.On("Close", mock.Anything, "loan-1", mock.AnythingOfType("time.Time"), 1.50).Return(nil)
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", 1).Return(nil)

	returned, err := lendingService.Return(context.Background(), actor, "loan-1")

	assert.NoError(t, err)
	require.NotNil(t, returned)
	assert.Equal(t, 1.50, returned.Fine)
	mockLoanRepo.AssertExpectations(t)
}

func TestReturn_AlreadyClosed(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	actor := &models.User{ID: "user-1", Role: models.RoleStudent}
	returnDate := time.Now().Add(-time.Hour)
	loan := &models.Loan{ID: "loan-1", BookID: "book-1", UserID: "user-1", ReturnDate: &returnDate}

	mockLoanRepo.On("FindByID", mock.Anything, "loan-1").Return(loan, nil)

	returned, err := lendingService.Return(context.Background(), actor, "loan-1")

	assert.ErrorIs(t, err, ErrLoanNotFound)
	assert.Nil(t, returned)
	mockLoanRepo.AssertNotCalled(t, "Close", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockBookRepo.AssertNotCalled(t, "AdjustAvailability", mock.Anything, mock.Anything, mock.Anything)
}

func TestReturn_NotOwner(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	actor := &models.User{ID: "user-2", Role: models.RoleStudent}
	loan := &models.Loan{ID: "loan-1", BookID: "book-1", UserID: "user-1", DueDate: time.Now().Add(24 * time.Hour)}

	mockLoanRepo.On("FindByID", mock.Anything, "loan-1").Return(loan, nil)

	returned, err := lendingService.Return(context.Background(), actor, "loan-1")

	assert.ErrorIs(t, err, ErrNotLoanOwner)
	assert.Nil(t, returned)
}

func TestReturn_AdminCanReturnForStudent(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	actor := &models.User{ID: "admin-1", Role: models.RoleAdmin}
	loan := &models.Loan{ID: "loan-1", BookID: "book-1", UserID: "user-1", DueDate: time.Now().Add(24 * time.Hour)}

	mockLoanRepo.On("FindByID", mock.Anything, "loan-1").Return(loan, nil)
	mockLoanRepo.On("Close", mock.Anything, "loan-1", mock.AnythingOfType("time.Time"), float64(0)).Return(nil)
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", 1).Return(nil)

	returned, err := lendingService.Return(context.Background(), actor, "loan-1")

	assert.NoError(t, err)
	assert.NotNil(t, returned)
}

func TestReturn_ReopensWhenRestoreFails(t *testing.T) {
	mockLoanRepo := new(MockLoanRepository)
	mockBookRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	lendingService := newTestLendingService(mockLoanRepo, mockBookRepo, mockUserRepo)

	actor := &models.User{ID: "user-1", Role: models.RoleStudent}
	loan := &models.Loan{ID: "loan-1", BookID: "book-1", UserID: "user-1", DueDate: time.Now().Add(24 * time.Hour)}
	restoreErr := errors.New("update failed")

	mockLoanRepo.On("FindByID", mock.Anything, "loan-1").Return(loan, nil)
	mockLoanRepo.On("Close", mock.Anything, "loan-1", mock.AnythingOfType("time.Time"), float64(0)).Return(nil)
	mockBookRepo.On("AdjustAvailability", mock.Anything, "book-1", 1).Return(restoreErr)
	mockLoanRepo.On("Reopen", mock.Anything, "loan-1").Return(nil)

	returned, err := lendingService.Return(context.Background(), actor, "loan-1")

	assert.ErrorIs(t, err, restoreErr)
	assert.Nil(t, returned)
	mockLoanRepo.AssertCalled(t, "Reopen", mock.Anything, "loan-1")
}

func TestDaysUntilDue(t *testing.T) {
	lendingService := newTestLendingService(new(MockLoanRepository), new(MockBookRepository), new(MockUserRepository))
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want int
	}{
		{"due in a week", now.Add(7 * 24 * time.Hour), 7},
		{"due in an hour still counts as a day", now.Add(time.Hour), 1},
		{"just past due", now.Add(-time.Hour), 0},
		{"three days late", now.Add(-3*24*time.Hour - time.Hour), -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := &models.Loan{DueDate: tt.due}
			assert.Equal(t, tt.want, lendingService.DaysUntilDue(loan, now))
		})
	}
}

func TestAccruedFine(t *testing.T) {
	lendingService := newTestLendingService(new(MockLoanRepository), new(MockBookRepository), new(MockUserRepository))
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("open loan on time accrues nothing", func(t *testing.T) {
		loan := &models.Loan{DueDate: now.Add(24 * time.Hour)}
		assert.Equal(t, float64(0), lendingService.AccruedFine(loan, now))
	})

	t.Run("open loan four days late", func(t *testing.T) {
		loan := &models.Loan{DueDate: now.Add(-4*24*time.Hour - time.Hour)}
		assert.Equal(t, 2.0, lendingService.AccruedFine(loan, now))
	})

	t.Run("closed loan keeps its snapshot", func(t *testing.T) {
		returnDate := now.Add(-10 * 24 * time.Hour)
		loan := &models.Loan{DueDate: now.Add(-20 * 24 * time.Hour), ReturnDate: &returnDate, Fine: 1.50}
		assert.Equal(t, 1.50, lendingService.AccruedFine(loan, now))
	})
}
