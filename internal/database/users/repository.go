// Package users provides database operations for user accounts.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByEmail(ctx, email)
package users

import (
	"context"

	"gorm.io/gorm"

	"library-backend/internal/entities"
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new user. The password must already be hashed.
func (r *Repository) Create(ctx context.Context, user *entities.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// Get retrieves a user by ID.
func (r *Repository) Get(ctx context.Context, id uint) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).Preload("Batch").Preload("Department").First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns all users with batch and department loaded.
func (r *Repository) List(ctx context.Context) ([]entities.User, error) {
	var users []entities.User
	err := r.db.WithContext(ctx).Preload("Batch").Preload("Department").Find(&users).Error
	return users, err
}

// Update applies the given field changes to a user. Role is not touched here;
// role changes go through UpdateRole so the admin-only rule has one home.
func (r *Repository) Update(ctx context.Context, id uint, fields map[string]any) (*entities.User, error) {
	delete(fields, "role")
	res := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.Get(ctx, id)
}

// UpdateRole assigns a user's role. Callers gate this behind the admin check.
func (r *Repository) UpdateRole(ctx context.Context, id uint, role entities.Role) error {
	res := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete soft-deletes a user.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&entities.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Search returns users whose name or email contains the given substrings.
// Empty arguments are ignored.
func (r *Repository) Search(ctx context.Context, name, email string) ([]entities.User, error) {
	query := r.db.WithContext(ctx).Preload("Batch").Preload("Department")
	if name != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+name+"%")
	}
	if email != "" {
		query = query.Where("LOWER(email) LIKE LOWER(?)", "%"+email+"%")
	}

	var users []entities.User
	err := query.Find(&users).Error
	return users, err
}

// SearchIDsByName resolves a case-insensitive name substring to user ids.
func (r *Repository) SearchIDsByName(ctx context.Context, name string) ([]uint, error) {
	ids := make([]uint, 0)
	err := r.db.WithContext(ctx).Model(&entities.User{}).
		Where("LOWER(name) LIKE LOWER(?)", "%"+name+"%").
		Pluck("id", &ids).Error
	return ids, err
}

// SearchIDsByEmail resolves a case-insensitive email substring to user ids.
func (r *Repository) SearchIDsByEmail(ctx context.Context, email string) ([]uint, error) {
	ids := make([]uint, 0)
	err := r.db.WithContext(ctx).Model(&entities.User{}).
		Where("LOWER(email) LIKE LOWER(?)", "%"+email+"%").
		Pluck("id", &ids).Error
	return ids, err
}
