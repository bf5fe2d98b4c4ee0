package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"library-backend/internal/database/reference"
	"library-backend/internal/entities"
)

type ReferenceController struct {
	store *reference.Repository
}

func NewReferenceController(store *reference.Repository) *ReferenceController {
	return &ReferenceController{store: store}
}

// isUniqueViolation reports whether the error is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// --- Batches ---

type batchRequest struct {
	Name         string `json:"name"`
	StartingYear int    `json:"starting_year"`
	EndingYear   int    `json:"ending_year"`
}

func (controller *ReferenceController) CreateBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondBadRequest(c, "Batch name is required.")
		return
	}

	batch := &entities.Batch{
		Name:         req.Name,
		StartingYear: req.StartingYear,
		EndingYear:   req.EndingYear,
	}
	if err := controller.store.CreateBatch(c.Request.Context(), batch); err != nil {
		if isUniqueViolation(err) {
			respondConflict(c, "A batch with this name already exists.")
			return
		}
		respondInternalError(c, err, "create batch")
		return
	}

	respondCreated(c, gin.H{"message": "Batch created successfully.", "batch": batch})
}

func (controller *ReferenceController) GetAllBatches(c *gin.Context) {
	batches, err := controller.store.ListBatches(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list batches")
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (controller *ReferenceController) UpdateBatch(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body.")
		return
	}

	fields := map[string]any{}
	if req.Name != "" {
		fields["name"] = req.Name
	}
	if req.StartingYear != 0 {
		fields["starting_year"] = req.StartingYear
	}
	if req.EndingYear != 0 {
		fields["ending_year"] = req.EndingYear
	}
	if len(fields) == 0 {
		respondBadRequest(c, "No fields to update.")
		return
	}

	batch, err := controller.store.UpdateBatch(c.Request.Context(), id, fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Batch not found.")
			return
		}
		if isUniqueViolation(err) {
			respondConflict(c, "A batch with this name already exists.")
			return
		}
		respondInternalError(c, err, "update batch")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Batch updated successfully.", "batch": batch})
}

func (controller *ReferenceController) DeleteBatch(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.store.DeleteBatch(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Batch not found.")
			return
		}
		respondInternalError(c, err, "delete batch")
		return
	}

	respondSuccess(c, "Batch deleted successfully.")
}

// --- Departments ---

type departmentRequest struct {
	Name string `json:"name"`
}

func (controller *ReferenceController) CreateDepartment(c *gin.Context) {
	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondBadRequest(c, "Department name is required.")
		return
	}

	dept := &entities.Department{Name: req.Name}
	if err := controller.store.CreateDepartment(c.Request.Context(), dept); err != nil {
		if isUniqueViolation(err) {
			respondConflict(c, "A department with this name already exists.")
			return
		}
		respondInternalError(c, err, "create department")
		return
	}

	respondCreated(c, gin.H{"message": "Department created successfully.", "department": dept})
}

func (controller *ReferenceController) GetAllDepartments(c *gin.Context) {
	depts, err := controller.store.ListDepartments(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list departments")
		return
	}

	c.JSON(http.StatusOK, gin.H{"departments": depts})
}

func (controller *ReferenceController) UpdateDepartment(c *gin.Context) {
	id, ok := parseIDParam(c, "dept")
	if !ok {
		return
	}

	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondBadRequest(c, "Department name is required.")
		return
	}

	dept, err := controller.store.UpdateDepartment(c.Request.Context(), id, map[string]any{"name": req.Name})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Department not found.")
			return
		}
		if isUniqueViolation(err) {
			respondConflict(c, "A department with this name already exists.")
			return
		}
		respondInternalError(c, err, "update department")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Department updated successfully.", "department": dept})
}

func (controller *ReferenceController) DeleteDepartment(c *gin.Context) {
	id, ok := parseIDParam(c, "dept")
	if !ok {
		return
	}

	if err := controller.store.DeleteDepartment(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Department not found.")
			return
		}
		respondInternalError(c, err, "delete department")
		return
	}

	respondSuccess(c, "Department deleted successfully.")
}

// --- Categories ---

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (controller *ReferenceController) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondBadRequest(c, "Category name is required.")
		return
	}

	category := &entities.Category{Name: req.Name, Description: req.Description}
	if err := controller.store.CreateCategory(c.Request.Context(), category); err != nil {
		if isUniqueViolation(err) {
			respondConflict(c, "A category with this name already exists.")
			return
		}
		respondInternalError(c, err, "create category")
		return
	}

	respondCreated(c, gin.H{"message": "Category created successfully.", "category": category})
}

func (controller *ReferenceController) GetAllCategories(c *gin.Context) {
	categories, err := controller.store.ListCategories(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (controller *ReferenceController) UpdateCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "categoryId")
	if !ok {
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body.")
		return
	}

	fields := map[string]any{}
	if req.Name != "" {
		fields["name"] = req.Name
	}
	if req.Description != "" {
		fields["description"] = req.Description
	}
	if len(fields) == 0 {
		respondBadRequest(c, "No fields to update.")
		return
	}

	category, err := controller.store.UpdateCategory(c.Request.Context(), id, fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Category not found.")
			return
		}
		if isUniqueViolation(err) {
			respondConflict(c, "A category with this name already exists.")
			return
		}
		respondInternalError(c, err, "update category")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category updated successfully.", "category": category})
}

func (controller *ReferenceController) DeleteCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "categoryId")
	if !ok {
		return
	}

	if err := controller.store.DeleteCategory(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Category not found.")
			return
		}
		respondInternalError(c, err, "delete category")
		return
	}

	respondSuccess(c, "Category deleted successfully.")
}
