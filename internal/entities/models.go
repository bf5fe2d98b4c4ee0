package entities

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

type BookStatus string

const (
	BookStatusAvailable BookStatus = "Available"
	BookStatusReserved  BookStatus = "Reserved"
	BookStatusIssued    BookStatus = "Issued"
	BookStatusLost      BookStatus = "Lost"
)

type BorrowStatus string

const (
	BorrowStatusBorrowed BorrowStatus = "Borrowed"
	BorrowStatusReturned BorrowStatus = "Returned"
)

type FineStatus string

const (
	FineStatusUnpaid FineStatus = "Unpaid"
	FineStatusPaid   FineStatus = "Paid"
)

type CardStatus string

const (
	CardStatusPending  CardStatus = "pending"
	CardStatusApproved CardStatus = "approved"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"index;size:256" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:255" json:"email"`
	Password     string         `gorm:"size:128" json:"-"` // bcrypt hash, hidden from JSON
	MobileNumber string         `gorm:"size:20" json:"mobile_number,omitempty"`
	Role         Role           `gorm:"size:20;default:'student'" json:"role"`
	BatchID      *uint          `gorm:"index" json:"batch_id,omitempty"`
	DepartmentID *uint          `gorm:"index" json:"department_id,omitempty"`
	Batch        *Batch         `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
	Department   *Department    `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type Book struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"index;size:512" json:"title"`
	Author      string         `gorm:"index;size:256" json:"author"`
	ISBN        string         `gorm:"uniqueIndex;size:20" json:"isbn"`
	Publisher   string         `gorm:"size:256" json:"publisher,omitempty"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Edition     string         `gorm:"size:50" json:"edition,omitempty"`
	CategoryID  *uint          `gorm:"index" json:"category_id,omitempty"`
	Category    *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Status      BookStatus     `gorm:"size:20;default:'Available';index" json:"status"`
	CreatedBy   uint           `gorm:"index" json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Borrow is one checkout transaction linking a user to a book copy.
// ISBN and UserEmail are captured at borrow time so notifications and audits
// keep working even if the referenced records change later.
type Borrow struct {
	ID        uint  `gorm:"primaryKey" json:"id"`
	UserID    uint  `gorm:"index" json:"user_id"`
	BookID    uint  `gorm:"index" json:"book_id"`
	User      *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book      *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
	ISBN      string `gorm:"size:20" json:"isbn"`
	UserEmail string `gorm:"size:255" json:"user_email"`

	BorrowDate   time.Time  `gorm:"<-:create;index" json:"borrow_date"` // immutable after creation
	DueDate      time.Time  `gorm:"index" json:"due_date"`
	ReturnedDate *time.Time `gorm:"index" json:"returned_date,omitempty"`

	Fine       int        `gorm:"default:0" json:"fine"`
	FineStatus FineStatus `gorm:"size:10;default:'Unpaid'" json:"fine_status"`
	IsPaid     bool       `gorm:"default:false" json:"is_paid"`

	Status           BorrowStatus `gorm:"size:20;default:'Borrowed';index" json:"status"`
	NotificationSent bool         `gorm:"default:false" json:"notification_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LibraryCard struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"uniqueIndex" json:"user_id"` // one card per user
	User         *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CardNumber   string     `gorm:"uniqueIndex;size:64" json:"card_number,omitempty"`
	Status       CardStatus `gorm:"size:20;default:'pending'" json:"status"`
	IssueDate    *time.Time `json:"issue_date,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	BatchID      *uint      `gorm:"index" json:"batch_id,omitempty"`
	DepartmentID *uint      `gorm:"index" json:"department_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Batch struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"uniqueIndex;size:100" json:"name"`
	StartingYear int    `json:"starting_year"`
	EndingYear   int    `json:"ending_year"`
}

type Department struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;size:100" json:"name"`
}

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:100" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	BookCount   int64     `gorm:"default:0" json:"book_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (User) TableName() string        { return "users" }
func (Book) TableName() string        { return "books" }
func (Borrow) TableName() string      { return "borrows" }
func (LibraryCard) TableName() string { return "library_cards" }
func (Batch) TableName() string       { return "batches" }
func (Department) TableName() string  { return "departments" }
func (Category) TableName() string    { return "categories" }
