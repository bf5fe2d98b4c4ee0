package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"library-backend/internal/auth"
	"library-backend/internal/entities"
	"library-backend/internal/loans"
	"library-backend/internal/tasks"
)

type BorrowsController struct {
	service      *loans.Service
	taskClient   *tasks.Client
	sweeper      Sweeper
	returnedKeep int
}

func NewBorrowsController(service *loans.Service, taskClient *tasks.Client, sweeper Sweeper, returnedKeep int) *BorrowsController {
	return &BorrowsController{
		service:      service,
		taskClient:   taskClient,
		sweeper:      sweeper,
		returnedKeep: returnedKeep,
	}
}

type borrowRequest struct {
	UserID  uint   `json:"userId"`
	BookID  uint   `json:"bookId"`
	DueDate string `json:"dueDate"`
}

func (controller *BorrowsController) Borrow(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body.")
		return
	}

	caller := auth.GetCaller(c)
	userID := req.UserID
	if caller.Role != entities.RoleAdmin || userID == 0 {
		userID = caller.UserID
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", req.DueDate)
		}
		if err != nil {
			respondBadRequest(c, "Invalid due date format.")
			return
		}
		dueDate = &parsed
	}

	borrow, err := controller.service.Borrow(c.Request.Context(), userID, req.BookID, dueDate)
	if err != nil {
		respondLoanError(c, err, "borrow book")
		return
	}

	respondCreated(c, gin.H{"message": "Book borrowed successfully.", "borrow": borrow})
}

type borrowIDRequest struct {
	BorrowID uint `json:"borrowId"`
}

func (controller *BorrowsController) Return(c *gin.Context) {
	var req borrowIDRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BorrowID == 0 {
		respondBadRequest(c, "borrowId is required.")
		return
	}

	borrow, err := controller.service.Return(c.Request.Context(), req.BorrowID)
	if err != nil {
		respondLoanError(c, err, "return book")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Book returned successfully.", "borrow": borrow})
}

func (controller *BorrowsController) PayFine(c *gin.Context) {
	var req borrowIDRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BorrowID == 0 {
		respondBadRequest(c, "borrowId is required.")
		return
	}

	borrow, err := controller.service.PayFine(c.Request.Context(), req.BorrowID)
	if err != nil {
		respondLoanError(c, err, "pay fine")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Fine paid successfully.", "borrow": borrow})
}

func (controller *BorrowsController) GetAllBorrowed(c *gin.Context) {
	caller := auth.GetCaller(c)

	filter := loans.BorrowFilter{
		Name:   c.Query("name"),
		Title:  c.Query("title"),
		Author: c.Query("author"),
		ISBN:   c.Query("isbn"),
	}
	if idStr := c.Query("userId"); idStr != "" {
		id, ok := parseQueryUint(c, "userId", idStr)
		if !ok {
			return
		}
		filter.UserID = id
	}

	borrows, err := controller.service.ListBorrowed(c.Request.Context(), caller, filter)
	if err != nil {
		respondLoanError(c, err, "list borrowed")
		return
	}
	if len(borrows) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No borrowed books found."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"borrows": borrows})
}

func (controller *BorrowsController) GetAllReturned(c *gin.Context) {
	borrows, err := controller.service.ListReturned(c.Request.Context(), controller.returnedKeep)
	if err != nil {
		respondLoanError(c, err, "list returned")
		return
	}

	c.JSON(http.StatusOK, gin.H{"borrows": borrows})
}

func (controller *BorrowsController) Search(c *gin.Context) {
	isbn := c.Query("isbn")
	name := c.Query("name")
	email := c.Query("email")
	if isbn == "" && name == "" && email == "" {
		respondBadRequest(c, "Provide isbn, name or email to search.")
		return
	}

	borrows, err := controller.service.SearchBorrowed(c.Request.Context(), isbn, name, email)
	if err != nil {
		respondLoanError(c, err, "search borrowed")
		return
	}
	if len(borrows) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No records found."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"borrows": borrows})
}

func (controller *BorrowsController) CountIssued(c *gin.Context) {
	count, err := controller.service.CountAllBorrowed(c.Request.Context())
	if err != nil {
		respondLoanError(c, err, "count issued")
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (controller *BorrowsController) CountForUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	count, err := controller.service.CountBorrowedByUser(c.Request.Context(), userID)
	if err != nil {
		respondLoanError(c, err, "count borrowed for user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// SendNotifications triggers the due-soon reminder sweep immediately.
func (controller *BorrowsController) SendNotifications(c *gin.Context) {
	if controller.sweeper == nil {
		respondError(c, http.StatusServiceUnavailable, "Notification scheduler is not running.")
		return
	}

	controller.sweeper.RunNow()
	respondSuccess(c, "Due notifications triggered.")
}

// PruneReturned enqueues the retention task that trims old returned records.
func (controller *BorrowsController) PruneReturned(c *gin.Context) {
	if controller.taskClient == nil {
		respondError(c, http.StatusServiceUnavailable, "Task queue is not running.")
		return
	}

	if err := controller.taskClient.SchedulePrune(c.Request.Context(), controller.returnedKeep); err != nil {
		respondInternalError(c, err, "schedule prune")
		return
	}
	respondSuccess(c, "Prune task scheduled.")
}
