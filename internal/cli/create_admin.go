package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gorm.io/gorm"

	"library-backend/internal/auth"
	"library-backend/internal/config"
	"library-backend/internal/database"
	"library-backend/internal/database/users"
	"library-backend/internal/entities"
)

// CreateAdminCommand bootstraps the first administrator account. User
// creation over the API is admin-only, so the initial admin has to come
// from outside it.
type CreateAdminCommand struct {
	DatabasePath string
	Name         string
	Email        string
	Password     string
	BcryptCost   int
}

// NewCreateAdminCommand creates a new CreateAdminCommand
func NewCreateAdminCommand() *CreateAdminCommand {
	return &CreateAdminCommand{}
}

// ParseFlags parses command line flags
func (cmd *CreateAdminCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the SQLite database file")
	fs.StringVar(&cmd.Name, "name", "Administrator", "Display name for the admin account")
	fs.StringVar(&cmd.Email, "email", "", "Email address for the admin account (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password for the admin account (required, min 8 characters)")
	fs.IntVar(&cmd.BcryptCost, "bcrypt-cost", 10, "bcrypt cost factor for the password hash")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-admin [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create an administrator account in the library database.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s create-admin -email admin@library.local -password changeme123\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Email == "" || cmd.Password == "" {
		fs.Usage()
		return errors.New("-email and -password are required")
	}

	return nil
}

// Run creates the admin account, or promotes an existing user with the
// given email to admin.
func (cmd *CreateAdminCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := users.NewRepository(db.DB)

	if existing, err := repo.GetByEmail(ctx, cmd.Email); err == nil {
		if existing.Role == entities.RoleAdmin {
			fmt.Printf("User %s is already an administrator\n", cmd.Email)
			return nil
		}
		if err := repo.UpdateRole(ctx, existing.ID, entities.RoleAdmin); err != nil {
			return fmt.Errorf("promoting user: %w", err)
		}
		fmt.Printf("Promoted %s to administrator\n", cmd.Email)
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("looking up user: %w", err)
	}

	hash, err := auth.HashPassword(cmd.Password, cmd.BcryptCost)
	if err != nil {
		return err
	}

	admin := &entities.User{
		Name:     cmd.Name,
		Email:    cmd.Email,
		Password: hash,
		Role:     entities.RoleAdmin,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}

	fmt.Printf("Created administrator %s (id %d)\n", cmd.Email, admin.ID)
	return nil
}
