package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"libtrack/internal/http-api/models"

	"gorm.io/gorm"
)

// ErrAvailabilityConflict is returned when a guarded availability update would
// push a book outside 0 <= available <= total.
var ErrAvailabilityConflict = errors.New("availability update rejected by guard")

type BookRepository interface {
	GetAll(ctx context.Context) ([]models.Book, error)
	GetByID(ctx context.Context, id string) (*models.Book, error)
	Search(ctx context.Context, query string) ([]models.Book, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id string) error
	AdjustAvailability(ctx context.Context, id string, delta int) error
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) GetAll(ctx context.Context) ([]models.Book, error) {
	var list []models.Book
	if err := r.db.WithContext(ctx).Order("created_at asc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return list, nil
}

func (r *bookRepository) GetByID(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// Search performs a case-insensitive substring match on title, author and
// category. Splits the query into tokens and requires each token to appear in
// at least one of the fields. A blank query returns the full catalog.
func (r *bookRepository) Search(ctx context.Context, query string) ([]models.Book, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return r.GetAll(ctx)
	}

	clauses := make([]string, 0, len(tokens))
	args := make([]interface{}, 0, len(tokens)*3)
	for _, t := range tokens {
		p := "%" + t + "%"
		clauses = append(clauses, "(title ILIKE ? OR author ILIKE ? OR category ILIKE ?)")
		args = append(args, p, p, p)
	}

	var list []models.Book
	where := strings.Join(clauses, " AND ")
	if err := r.db.WithContext(ctx).Where(where, args...).Order("created_at asc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return list, nil
}

func (r *bookRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Distinct("category").
		Where("category <> ''").
		Order("category asc").
		Pluck("category", &categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

func (r *bookRepository) Update(ctx context.Context, book *models.Book) error {
	if err := r.db.WithContext(ctx).Save(book).Error; err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

func (r *bookRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Book{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete book: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdjustAvailability is the sole mutation entry point for the available
// counter. The delta is applied in a single conditional UPDATE so that two
// concurrent borrows of the last copy can never both succeed; a plain
// read-then-write pair here would be racy.
func (r *bookRepository) AdjustAvailability(ctx context.Context, id string, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND available + ? >= 0 AND available + ? <= total", id, delta, delta).
		UpdateColumn("available", gorm.Expr("available + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("adjust availability: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the book does not exist or the guard rejected the delta.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Book{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("adjust availability: %w", err)
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return ErrAvailabilityConflict
	}
	return nil
}
