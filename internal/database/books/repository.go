// Package books provides database operations for the book catalog.
package books

import (
	"context"

	"gorm.io/gorm"

	"library-backend/internal/entities"
)

// Repository handles all catalog database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, book *entities.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

func (r *Repository) Get(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Preload("Category").First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) GetByISBN(ctx context.Context, isbn string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Where("isbn = ?", isbn).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Update applies the given field changes to a book.
func (r *Repository) Update(ctx context.Context, id uint, fields map[string]any) (*entities.Book, error) {
	res := r.db.WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.Get(ctx, id)
}

// UpdateStatus flips a book's status only if it still has the expected one.
// Returns false without error when the condition does not hold, which callers
// treat as a conflict.
func (r *Repository) UpdateStatus(ctx context.Context, id uint, expected, next entities.BookStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entities.Book{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete soft-deletes a book.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&entities.Book{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListFilter narrows List. String fields match as case-insensitive substrings
// except Status, which matches exactly.
type ListFilter struct {
	ISBN      string
	Title     string
	Author    string
	Edition   string
	Publisher string
	Status    entities.BookStatus
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]entities.Book, error) {
	query := r.db.WithContext(ctx).Preload("Category").Order("created_at DESC")

	like := func(q *gorm.DB, column, value string) *gorm.DB {
		if value == "" {
			return q
		}
		return q.Where("LOWER("+column+") LIKE LOWER(?)", "%"+value+"%")
	}
	query = like(query, "isbn", filter.ISBN)
	query = like(query, "title", filter.Title)
	query = like(query, "author", filter.Author)
	query = like(query, "edition", filter.Edition)
	query = like(query, "publisher", filter.Publisher)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var books []entities.Book
	err := query.Find(&books).Error
	return books, err
}

// SearchIDs resolves a title/author substring search to book ids, for
// filtering the borrow ledger.
func (r *Repository) SearchIDs(ctx context.Context, title, author string) ([]uint, error) {
	query := r.db.WithContext(ctx).Model(&entities.Book{})
	if title != "" {
		query = query.Where("LOWER(title) LIKE LOWER(?)", "%"+title+"%")
	}
	if author != "" {
		query = query.Where("LOWER(author) LIKE LOWER(?)", "%"+author+"%")
	}
	ids := make([]uint, 0)
	err := query.Pluck("id", &ids).Error
	return ids, err
}

// CountByStatus reports how many books hold each status.
func (r *Repository) CountByStatus(ctx context.Context) (map[entities.BookStatus]int64, error) {
	type row struct {
		Status entities.BookStatus
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&entities.Book{}).
		Select("status, COUNT(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[entities.BookStatus]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Total
	}
	return counts, nil
}
