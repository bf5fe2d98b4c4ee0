// Package reference provides database operations for batch, department and
// category reference data.
package reference

import (
	"context"

	"gorm.io/gorm"

	"library-backend/internal/entities"
)

// Repository handles reference data database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new reference data repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Batches

func (r *Repository) CreateBatch(ctx context.Context, batch *entities.Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *Repository) GetBatch(ctx context.Context, id uint) (*entities.Batch, error) {
	var batch entities.Batch
	if err := r.db.WithContext(ctx).First(&batch, id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *Repository) ListBatches(ctx context.Context) ([]entities.Batch, error) {
	var batches []entities.Batch
	err := r.db.WithContext(ctx).Order("starting_year DESC").Find(&batches).Error
	return batches, err
}

func (r *Repository) UpdateBatch(ctx context.Context, id uint, fields map[string]any) (*entities.Batch, error) {
	res := r.db.WithContext(ctx).Model(&entities.Batch{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetBatch(ctx, id)
}

func (r *Repository) DeleteBatch(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&entities.Batch{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Departments

func (r *Repository) CreateDepartment(ctx context.Context, dept *entities.Department) error {
	return r.db.WithContext(ctx).Create(dept).Error
}

func (r *Repository) GetDepartment(ctx context.Context, id uint) (*entities.Department, error) {
	var dept entities.Department
	if err := r.db.WithContext(ctx).First(&dept, id).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *Repository) ListDepartments(ctx context.Context) ([]entities.Department, error) {
	var depts []entities.Department
	err := r.db.WithContext(ctx).Order("name ASC").Find(&depts).Error
	return depts, err
}

func (r *Repository) UpdateDepartment(ctx context.Context, id uint, fields map[string]any) (*entities.Department, error) {
	res := r.db.WithContext(ctx).Model(&entities.Department{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetDepartment(ctx, id)
}

func (r *Repository) DeleteDepartment(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&entities.Department{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Categories

func (r *Repository) CreateCategory(ctx context.Context, category *entities.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *Repository) GetCategory(ctx context.Context, id uint) (*entities.Category, error) {
	var category entities.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// ListCategories returns all categories with their book counts refreshed
// from the catalog.
func (r *Repository) ListCategories(ctx context.Context) ([]entities.Category, error) {
	var categories []entities.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	for i := range categories {
		var count int64
		if err := r.db.WithContext(ctx).Model(&entities.Book{}).
			Where("category_id = ?", categories[i].ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		categories[i].BookCount = count
	}
	return categories, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, id uint, fields map[string]any) (*entities.Category, error) {
	res := r.db.WithContext(ctx).Model(&entities.Category{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetCategory(ctx, id)
}

func (r *Repository) DeleteCategory(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&entities.Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
