package http

import (
	"library-backend/internal/database"
	"library-backend/internal/database/books"
	"library-backend/internal/database/cards"
	"library-backend/internal/database/reference"
	"library-backend/internal/database/users"
	"library-backend/internal/loans"
	"library-backend/internal/tasks"
)

// Sweeper triggers the due-soon reminder sweep outside its cron schedule.
type Sweeper interface {
	RunNow()
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces a long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core dependencies
	Database    *database.Database
	LoanService *loans.Service

	// Stores
	UserStore      *users.Repository
	BookStore      *books.Repository
	CardStore      *cards.Repository
	ReferenceStore *reference.Repository

	// Authentication
	JWTSecret   string
	TokenExpiry int // seconds, used for the login cookie max-age
	BcryptCost  int

	// Task queue client (optional, exposes admin maintenance endpoints)
	TaskClient   *tasks.Client
	ReturnedKeep int

	// Due-soon reminder scheduler (optional)
	Sweeper Sweeper

	// Application info
	Version string
}
