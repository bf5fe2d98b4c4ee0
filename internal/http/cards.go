package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"library-backend/internal/auth"
	"library-backend/internal/database/cards"
	"library-backend/internal/database/users"
	"library-backend/internal/entities"
)

type CardsController struct {
	store     *cards.Repository
	userStore *users.Repository
}

func NewCardsController(store *cards.Repository, userStore *users.Repository) *CardsController {
	return &CardsController{
		store:     store,
		userStore: userStore,
	}
}

type issueCardRequest struct {
	UserID     uint   `json:"userId"`
	CardNumber string `json:"cardNumber"`
	IssueDate  string `json:"issueDate"`
	ExpiryDate string `json:"expiryDate"`
}

// Issue creates an approved card for a student. A pending card created by a
// prior request is approved in place instead of creating a second one.
func (controller *CardsController) Issue(c *gin.Context) {
	var req issueCardRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		respondBadRequest(c, "userId is required.")
		return
	}

	user, err := controller.userStore.Get(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "User not found.")
			return
		}
		respondInternalError(c, err, "lookup card user")
		return
	}
	if user.Role != entities.RoleStudent {
		respondBadRequest(c, "Library cards can only be issued to students.")
		return
	}

	cardNumber := req.CardNumber
	if cardNumber == "" {
		cardNumber = uuid.NewString()
	}

	issueDate := time.Now()
	if req.IssueDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.IssueDate); err == nil {
			issueDate = parsed
		} else {
			respondBadRequest(c, "Invalid issue date format.")
			return
		}
	}
	expiryDate := issueDate.AddDate(1, 0, 0)
	if req.ExpiryDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.ExpiryDate); err == nil {
			expiryDate = parsed
		} else {
			respondBadRequest(c, "Invalid expiry date format.")
			return
		}
	}

	fields := map[string]any{
		"card_number": cardNumber,
		"status":      entities.CardStatusApproved,
		"issue_date":  issueDate,
		"expiry_date": expiryDate,
	}

	existing, err := controller.store.GetByUser(c.Request.Context(), req.UserID)
	if err == nil {
		if existing.Status == entities.CardStatusApproved {
			respondConflict(c, "User already has a library card.")
			return
		}
		card, err := controller.store.Update(c.Request.Context(), existing.ID, fields)
		if err != nil {
			respondInternalError(c, err, "approve card")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Library card issued successfully", "card": card})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondInternalError(c, err, "lookup existing card")
		return
	}

	card := &entities.LibraryCard{
		UserID:       req.UserID,
		CardNumber:   cardNumber,
		Status:       entities.CardStatusApproved,
		IssueDate:    &issueDate,
		ExpiryDate:   &expiryDate,
		BatchID:      user.BatchID,
		DepartmentID: user.DepartmentID,
	}
	if err := controller.store.Create(c.Request.Context(), card); err != nil {
		respondInternalError(c, err, "issue card")
		return
	}

	respondCreated(c, gin.H{"message": "Library card issued successfully", "card": card})
}

// Request records a pending card request for the authenticated student.
func (controller *CardsController) Request(c *gin.Context) {
	userID := auth.GetUserID(c)

	user, err := controller.userStore.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "User not found.")
			return
		}
		respondInternalError(c, err, "lookup requesting user")
		return
	}
	if user.Role != entities.RoleStudent {
		respondBadRequest(c, "Only students can request a library card.")
		return
	}

	if _, err := controller.store.GetByUser(c.Request.Context(), userID); err == nil {
		respondConflict(c, "A library card already exists for this user.")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondInternalError(c, err, "lookup existing card")
		return
	}

	card := &entities.LibraryCard{
		UserID:       userID,
		Status:       entities.CardStatusPending,
		BatchID:      user.BatchID,
		DepartmentID: user.DepartmentID,
	}
	if err := controller.store.Create(c.Request.Context(), card); err != nil {
		respondInternalError(c, err, "request card")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Library card request submitted, pending admin approval", "card": card})
}

type editCardRequest struct {
	CardNumber *string `json:"cardNumber"`
	IssueDate  *string `json:"issueDate"`
	ExpiryDate *string `json:"expiryDate"`
	Status     *string `json:"status"`
}

func (controller *CardsController) Edit(c *gin.Context) {
	id, ok := parseIDParam(c, "cardId")
	if !ok {
		return
	}

	var req editCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body.")
		return
	}

	fields := map[string]any{}
	if req.CardNumber != nil {
		fields["card_number"] = *req.CardNumber
	}
	if req.IssueDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.IssueDate)
		if err != nil {
			respondBadRequest(c, "Invalid issue date format.")
			return
		}
		fields["issue_date"] = parsed
	}
	if req.ExpiryDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.ExpiryDate)
		if err != nil {
			respondBadRequest(c, "Invalid expiry date format.")
			return
		}
		fields["expiry_date"] = parsed
	}
	if req.Status != nil {
		switch entities.CardStatus(*req.Status) {
		case entities.CardStatusPending, entities.CardStatusApproved:
			fields["status"] = *req.Status
		default:
			respondBadRequest(c, "Invalid card status.")
			return
		}
	}
	if len(fields) == 0 {
		respondBadRequest(c, "No fields to update.")
		return
	}

	card, err := controller.store.Update(c.Request.Context(), id, fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Library card not found")
			return
		}
		respondInternalError(c, err, "update card")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Library card updated successfully", "card": card})
}

func (controller *CardsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "cardId")
	if !ok {
		return
	}

	if err := controller.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Library card not found")
			return
		}
		respondInternalError(c, err, "delete card")
		return
	}

	respondSuccess(c, "Library card deleted successfully")
}

func (controller *CardsController) GetByUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	card, err := controller.store.GetByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Library card not found")
			return
		}
		respondInternalError(c, err, "get card")
		return
	}

	c.IndentedJSON(http.StatusOK, card)
}
