package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"library-backend/internal/auth"
	"library-backend/internal/database/books"
	"library-backend/internal/database/reference"
	"library-backend/internal/entities"
)

type BooksController struct {
	store    *books.Repository
	refStore *reference.Repository
}

func NewBooksController(store *books.Repository, refStore *reference.Repository) *BooksController {
	return &BooksController{
		store:    store,
		refStore: refStore,
	}
}

type createBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	Publisher   string `json:"publisher"`
	Description string `json:"description"`
	Edition     string `json:"edition"`
	CategoryID  *uint  `json:"category_id"`
}

func (controller *BooksController) Create(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body.")
		return
	}
	if req.Title == "" || req.Author == "" || req.ISBN == "" {
		respondBadRequest(c, "Title, author and ISBN are required.")
		return
	}

	if req.CategoryID != nil {
		if _, err := controller.refStore.GetCategory(c.Request.Context(), *req.CategoryID); err != nil {
			respondBadRequest(c, "Referenced category does not exist.")
			return
		}
	}

	if _, err := controller.store.GetByISBN(c.Request.Context(), req.ISBN); err == nil {
		respondConflict(c, "A book with this ISBN already exists.")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondInternalError(c, err, "check duplicate isbn")
		return
	}

	book := &entities.Book{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Publisher:   req.Publisher,
		Description: req.Description,
		Edition:     req.Edition,
		CategoryID:  req.CategoryID,
		Status:      entities.BookStatusAvailable,
		CreatedBy:   auth.GetUserID(c),
	}
	if err := controller.store.Create(c.Request.Context(), book); err != nil {
		respondInternalError(c, err, "create book")
		return
	}

	respondCreated(c, gin.H{"message": "Book created successfully.", "book": book})
}

func (controller *BooksController) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}

	book, err := controller.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Book not found.")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	c.JSON(http.StatusOK, gin.H{"book": book})
}

func (controller *BooksController) GetAll(c *gin.Context) {
	list, err := controller.store.List(c.Request.Context(), books.ListFilter{})
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}

	c.JSON(http.StatusOK, gin.H{"books": list, "count": len(list)})
}

func (controller *BooksController) Search(c *gin.Context) {
	filter := books.ListFilter{
		ISBN:      c.Query("isbn"),
		Title:     c.Query("title"),
		Author:    c.Query("author"),
		Edition:   c.Query("edition"),
		Publisher: c.Query("publisher"),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = entities.BookStatus(status)
	}

	list, err := controller.store.List(c.Request.Context(), filter)
	if err != nil {
		respondInternalError(c, err, "search books")
		return
	}

	c.JSON(http.StatusOK, gin.H{"books": list, "count": len(list)})
}

func (controller *BooksController) Count(c *gin.Context) {
	counts, err := controller.store.CountByStatus(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "count books")
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{"total": total, "by_status": counts})
}

type updateBookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Publisher   *string `json:"publisher"`
	Description *string `json:"description"`
	Edition     *string `json:"edition"`
	CategoryID  *uint   `json:"category_id"`
	Status      *string `json:"status"`
}

func (controller *BooksController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}

	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body.")
		return
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Author != nil {
		fields["author"] = *req.Author
	}
	if req.Publisher != nil {
		fields["publisher"] = *req.Publisher
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Edition != nil {
		fields["edition"] = *req.Edition
	}
	if req.CategoryID != nil {
		if _, err := controller.refStore.GetCategory(c.Request.Context(), *req.CategoryID); err != nil {
			respondBadRequest(c, "Referenced category does not exist.")
			return
		}
		fields["category_id"] = *req.CategoryID
	}
	if req.Status != nil {
		switch entities.BookStatus(*req.Status) {
		case entities.BookStatusAvailable, entities.BookStatusReserved, entities.BookStatusLost:
			fields["status"] = *req.Status
		default:
			// Issued is owned by the loan lifecycle and cannot be set directly.
			respondBadRequest(c, "Invalid book status.")
			return
		}
	}
	if len(fields) == 0 {
		respondBadRequest(c, "No fields to update.")
		return
	}

	book, err := controller.store.Update(c.Request.Context(), id, fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Book not found.")
			return
		}
		respondInternalError(c, err, "update book")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Book updated successfully.", "book": book})
}

func (controller *BooksController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}

	book, err := controller.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Book not found.")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}
	if book.Status == entities.BookStatusIssued {
		respondConflict(c, "Book is currently issued and cannot be deleted.")
		return
	}

	if err := controller.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Book not found.")
			return
		}
		respondInternalError(c, err, "delete book")
		return
	}

	respondSuccess(c, "Book deleted successfully.")
}
