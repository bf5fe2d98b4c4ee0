// Package cards provides database operations for library card issuance.
package cards

import (
	"context"

	"gorm.io/gorm"

	"library-backend/internal/entities"
)

// Repository handles all library card database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new library card repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new card. The unique index on user_id rejects a second
// card for the same user.
func (r *Repository) Create(ctx context.Context, card *entities.LibraryCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// Get retrieves a card by ID.
func (r *Repository) Get(ctx context.Context, id uint) (*entities.LibraryCard, error) {
	var card entities.LibraryCard
	err := r.db.WithContext(ctx).Preload("User").First(&card, id).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// GetByUser retrieves the card belonging to a user.
func (r *Repository) GetByUser(ctx context.Context, userID uint) (*entities.LibraryCard, error) {
	var card entities.LibraryCard
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// Update applies the given field changes to a card.
func (r *Repository) Update(ctx context.Context, id uint, fields map[string]any) (*entities.LibraryCard, error) {
	res := r.db.WithContext(ctx).Model(&entities.LibraryCard{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a card.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&entities.LibraryCard{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
