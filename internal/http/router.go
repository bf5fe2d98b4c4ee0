package http

import (
	"github.com/gin-gonic/gin"

	"library-backend/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Create controllers with appropriate dependencies
	health := NewHealthController(cfg.Database, cfg.Version)
	usersController := NewUsersController(cfg.UserStore, cfg.ReferenceStore, cfg)
	booksController := NewBooksController(cfg.BookStore, cfg.ReferenceStore)
	borrowsController := NewBorrowsController(cfg.LoanService, cfg.TaskClient, cfg.Sweeper, cfg.ReturnedKeep)
	cardsController := NewCardsController(cfg.CardStore, cfg.UserStore)
	referenceController := NewReferenceController(cfg.ReferenceStore)

	authenticated := auth.Authenticated(cfg.JWTSecret)
	adminOnly := auth.AdminOnly()

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// User endpoints
	users := router.Group("/api/users")
	{
		users.POST("/login", usersController.Login)
		users.POST("/logout", usersController.Logout)

		users.GET("/profile", authenticated, usersController.Profile)
		users.GET("/all", authenticated, adminOnly, usersController.GetAll)
		users.POST("/create", authenticated, adminOnly, usersController.Create)
		users.GET("/search", authenticated, adminOnly, usersController.Search)
		users.GET("/:userId", authenticated, adminOnly, usersController.GetByID)
		users.PUT("/:userId", authenticated, adminOnly, usersController.Update)
		users.DELETE("/:userId", authenticated, adminOnly, usersController.Delete)
	}

	// Book endpoints
	books := router.Group("/api/books", authenticated)
	{
		books.POST("/create", adminOnly, booksController.Create)
		books.GET("/search", adminOnly, booksController.Search)
		books.GET("/count", adminOnly, booksController.Count)
		books.PUT("/update/:bookId", adminOnly, booksController.Update)
		books.DELETE("/delete/:bookId", adminOnly, booksController.Delete)
		books.GET("/all", booksController.GetAll)
		books.GET("/:bookId", booksController.GetByID)
	}

	// Borrow endpoints
	borrow := router.Group("/api/borrow", authenticated)
	{
		borrow.POST("/borrow", borrowsController.Borrow)
		borrow.POST("/return", borrowsController.Return)
		borrow.POST("/payFine", borrowsController.PayFine)
		borrow.GET("/getAll", borrowsController.GetAllBorrowed)
		borrow.GET("/getReturn", borrowsController.GetAllReturned)
		borrow.GET("/count", borrowsController.CountIssued)
		borrow.GET("/borrowedBooksCount/:userId", borrowsController.CountForUser)
		borrow.GET("/search", adminOnly, borrowsController.Search)
		borrow.POST("/notification", adminOnly, borrowsController.SendNotifications)
		borrow.POST("/prune", adminOnly, borrowsController.PruneReturned)
	}

	// Library card endpoints
	card := router.Group("/api/card", authenticated)
	{
		card.POST("/issue", adminOnly, cardsController.Issue)
		card.PUT("/edit/:cardId", adminOnly, cardsController.Edit)
		card.DELETE("/delete/:cardId", adminOnly, cardsController.Delete)
		card.POST("/request", cardsController.Request)
		card.GET("/:userId", cardsController.GetByUser)
	}

	// Batch endpoints
	batch := router.Group("/api/batch")
	{
		batch.POST("/createbatch", authenticated, adminOnly, referenceController.CreateBatch)
		batch.GET("/getall", referenceController.GetAllBatches)
		batch.PUT("/update/:id", authenticated, adminOnly, referenceController.UpdateBatch)
		batch.DELETE("/delete/:id", authenticated, adminOnly, referenceController.DeleteBatch)
	}

	// Department endpoints
	department := router.Group("/api/department")
	{
		department.POST("/createdepartment", authenticated, adminOnly, referenceController.CreateDepartment)
		department.GET("/all", referenceController.GetAllDepartments)
		department.PUT("/updatedept/:dept", authenticated, adminOnly, referenceController.UpdateDepartment)
		department.DELETE("/delete/:dept", authenticated, adminOnly, referenceController.DeleteDepartment)
	}

	// Category endpoints
	category := router.Group("/api/category")
	{
		category.POST("/create", authenticated, adminOnly, referenceController.CreateCategory)
		category.PUT("/update/:categoryId", authenticated, adminOnly, referenceController.UpdateCategory)
		category.DELETE("/delete/:categoryId", authenticated, adminOnly, referenceController.DeleteCategory)
		category.GET("/all", referenceController.GetAllCategories)
	}

	return router
}
