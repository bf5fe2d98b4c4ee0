package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"library-backend/internal/auth"
	"library-backend/internal/database/reference"
	"library-backend/internal/database/users"
	"library-backend/internal/entities"
)

type UsersController struct {
	store       *users.Repository
	refStore    *reference.Repository
	jwtSecret   string
	tokenExpiry int
	bcryptCost  int
}

func NewUsersController(store *users.Repository, refStore *reference.Repository, cfg RouterConfig) *UsersController {
	return &UsersController{
		store:       store,
		refStore:    refStore,
		jwtSecret:   cfg.JWTSecret,
		tokenExpiry: cfg.TokenExpiry,
		bcryptCost:  cfg.BcryptCost,
	}
}

func tokenDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

type createUserRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	MobileNumber string `json:"mobile_number"`
	Role         string `json:"role"`
	BatchID      *uint  `json:"batch_id"`
	DepartmentID *uint  `json:"department_id"`
}

func (controller *UsersController) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body.")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondBadRequest(c, "Name, email and password are required.")
		return
	}

	role := entities.RoleStudent
	if req.Role != "" {
		switch entities.Role(req.Role) {
		case entities.RoleAdmin, entities.RoleStudent:
			role = entities.Role(req.Role)
		default:
			respondBadRequest(c, "Invalid role.")
			return
		}
	}

	if !controller.validateRefs(c, req.BatchID, req.DepartmentID) {
		return
	}

	if _, err := controller.store.GetByEmail(c.Request.Context(), req.Email); err == nil {
		respondConflict(c, "A user with this email already exists.")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondInternalError(c, err, "check duplicate email")
		return
	}

	hash, err := auth.HashPassword(req.Password, controller.bcryptCost)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	user := &entities.User{
		Name:         req.Name,
		Email:        req.Email,
		Password:     hash,
		MobileNumber: req.MobileNumber,
		Role:         role,
		BatchID:      req.BatchID,
		DepartmentID: req.DepartmentID,
	}
	if err := controller.store.Create(c.Request.Context(), user); err != nil {
		respondInternalError(c, err, "create user")
		return
	}

	respondCreated(c, gin.H{"message": "User created successfully.", "user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (controller *UsersController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		respondBadRequest(c, "Email and password are required.")
		return
	}

	user, err := controller.store.GetByEmail(c.Request.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		respondInternalError(c, err, "login lookup")
		return
	}

	if err := auth.CheckPassword(req.Password, user.Password); err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	token, err := auth.IssueToken(controller.jwtSecret, user, tokenDuration(controller.tokenExpiry))
	if err != nil {
		respondInternalError(c, err, "issue token")
		return
	}

	c.SetCookie(auth.TokenCookieName, token, controller.tokenExpiry, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful.", "token": token, "user": user})
}

func (controller *UsersController) Logout(c *gin.Context) {
	c.SetCookie(auth.TokenCookieName, "", -1, "/", "", false, true)
	respondSuccess(c, "Logged out successfully.")
}

func (controller *UsersController) Profile(c *gin.Context) {
	user, err := controller.store.Get(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "User not found.")
			return
		}
		respondInternalError(c, err, "load profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (controller *UsersController) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	user, err := controller.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "User not found.")
			return
		}
		respondInternalError(c, err, "get user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (controller *UsersController) GetAll(c *gin.Context) {
	list, err := controller.store.List(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list users")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": list, "count": len(list)})
}

func (controller *UsersController) Search(c *gin.Context) {
	name := c.Query("name")
	email := c.Query("email")
	if name == "" && email == "" {
		respondBadRequest(c, "Provide name or email to search.")
		return
	}

	list, err := controller.store.Search(c.Request.Context(), name, email)
	if err != nil {
		respondInternalError(c, err, "search users")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": list, "count": len(list)})
}

type updateUserRequest struct {
	Name         *string `json:"name"`
	MobileNumber *string `json:"mobile_number"`
	Role         *string `json:"role"`
	BatchID      *uint   `json:"batch_id"`
	DepartmentID *uint   `json:"department_id"`
}

func (controller *UsersController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body.")
		return
	}

	if !controller.validateRefs(c, req.BatchID, req.DepartmentID) {
		return
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.MobileNumber != nil {
		fields["mobile_number"] = *req.MobileNumber
	}
	if req.BatchID != nil {
		fields["batch_id"] = *req.BatchID
	}
	if req.DepartmentID != nil {
		fields["department_id"] = *req.DepartmentID
	}

	if len(fields) > 0 {
		if _, err := controller.store.Update(c.Request.Context(), id, fields); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respondNotFound(c, "User not found.")
				return
			}
			respondInternalError(c, err, "update user")
			return
		}
	}

	// Role changes are admin-only; this route sits behind AdminOnly already,
	// so a provided role is applied here rather than through Update.
	if req.Role != nil {
		role := entities.Role(*req.Role)
		if role != entities.RoleAdmin && role != entities.RoleStudent {
			respondBadRequest(c, "Invalid role.")
			return
		}
		if err := controller.store.UpdateRole(c.Request.Context(), id, role); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respondNotFound(c, "User not found.")
				return
			}
			respondInternalError(c, err, "update role")
			return
		}
	}

	user, err := controller.store.Get(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "reload user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully.", "user": user})
}

func (controller *UsersController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	if err := controller.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "User not found.")
			return
		}
		respondInternalError(c, err, "delete user")
		return
	}

	respondSuccess(c, "User deleted successfully.")
}

// validateRefs confirms that referenced batch and department records exist.
// Responds with a 400 error and returns false when one is missing.
func (controller *UsersController) validateRefs(c *gin.Context, batchID, departmentID *uint) bool {
	if batchID != nil {
		if _, err := controller.refStore.GetBatch(c.Request.Context(), *batchID); err != nil {
			respondBadRequest(c, "Referenced batch does not exist.")
			return false
		}
	}
	if departmentID != nil {
		if _, err := controller.refStore.GetDepartment(c.Request.Context(), *departmentID); err != nil {
			respondBadRequest(c, "Referenced department does not exist.")
			return false
		}
	}
	return true
}
