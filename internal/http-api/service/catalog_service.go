package service

import (
	"context"
	"errors"

	"libtrack/internal/auth"
	"libtrack/internal/http-api/models"
	"libtrack/internal/http-api/repository"

	"gorm.io/gorm"
)

var (
	ErrBookNotFound        = errors.New("book not found")
	ErrInvalidAvailability = errors.New("available copies must stay between 0 and total")
	ErrBookOnLoan          = errors.New("book has open loans")
)

type CatalogService interface {
	List(ctx context.Context) ([]models.Book, error)
	Search(ctx context.Context, query string) ([]models.Book, error)
	Get(ctx context.Context, id string) (*models.Book, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, actor *models.User, book *models.Book) (*models.Book, error)
	Update(ctx context.Context, actor *models.User, id string, update *models.Book) (*models.Book, error)
	Delete(ctx context.Context, actor *models.User, id string) error
}

type catalogService struct {
	bookRepo repository.BookRepository
	loanRepo repository.LoanRepository
}

func NewCatalogService(bookRepo repository.BookRepository, loanRepo repository.LoanRepository) CatalogService {
	return &catalogService{
		bookRepo: bookRepo,
		loanRepo: loanRepo,
	}
}

func (s *catalogService) List(ctx context.Context) ([]models.Book, error) {
	return s.bookRepo.GetAll(ctx)
}

func (s *catalogService) Search(ctx context.Context, query string) ([]models.Book, error) {
	return s.bookRepo.Search(ctx, query)
}

func (s *catalogService) Get(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

func (s *catalogService) Categories(ctx context.Context) ([]string, error) {
	return s.bookRepo.Categories(ctx)
}

// Create adds a new title to the catalog. All copies of a new title start on
// the shelf, so Available is forced to Total regardless of input.
func (s *catalogService) Create(ctx context.Context, actor *models.User, book *models.Book) (*models.Book, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if book.Total < 1 {
		return nil, ErrInvalidAvailability
	}
	book.Available = book.Total

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Update edits catalog metadata and stock. When Total changes, Available moves
// by the same delta so copies on loan stay accounted for; an edit that would
// leave Available outside [0, Total] is rejected.
func (s *catalogService) Update(ctx context.Context, actor *models.User, id string, update *models.Book) (*models.Book, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	newAvailable := book.Available + (update.Total - book.Total)
	if newAvailable < 0 || newAvailable > update.Total {
		return nil, ErrInvalidAvailability
	}

	book.Title = update.Title
	book.Author = update.Author
	book.ISBN = update.ISBN
	book.Category = update.Category
	book.CoverImage = update.CoverImage
	book.PublishedYear = update.PublishedYear
	book.Description = update.Description
	book.Total = update.Total
	book.Available = newAvailable

	if err := s.bookRepo.Update(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Delete removes a title. Titles with open loans cannot be deleted; the copies
// out in the world still have to come back.
func (s *catalogService) Delete(ctx context.Context, actor *models.User, id string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}

	open, err := s.loanRepo.CountOpenByBook(ctx, id)
	if err != nil {
		return err
	}
	if open > 0 {
		return ErrBookOnLoan
	}

	if err := s.bookRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		return err
	}
	return nil
}
