package model

import (
	"time"
)

type Book struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Copies       int       `json:"copies" db:"copies"`
	Description  string    `json:"description" db:"description"`
	BookCoverURL string    `json:"bookCoverURL" db:"book_cover_url"`
	AuthorID     string    `json:"authorId" db:"author_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// BookSummary is the slice of a book returned alongside borrowing mutations.
type BookSummary struct {
	ID     string `json:"id" db:"id"`
	Title  string `json:"title" db:"title"`
	Copies int    `json:"copies" db:"copies"`
}

// Borrowing is a loan ledger entry. ReturnedAt == nil means the loan is open
// and the copy is currently out.
type Borrowing struct {
	ID         string     `json:"id" db:"id"`
	BookID     string     `json:"bookId" db:"book_id"`
	UserID     string     `json:"userId" db:"user_id"`
	BorrowedAt time.Time  `json:"borrowedAt" db:"borrowed_at"`
	DueDate    time.Time  `json:"dueDate" db:"due_date"`
	ReturnedAt *time.Time `json:"returnedAt" db:"returned_at"`
}

// BorrowingWithBook is an open loan joined with its book details.
type BorrowingWithBook struct {
	Borrowing
	Title        string `json:"title" db:"title"`
	BookCoverURL string `json:"bookCoverURL" db:"book_cover_url"`
}

type BorrowRequest struct {
	BookID string `json:"bookId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type BorrowStatus struct {
	HasBorrowed bool   `json:"hasBorrowed"`
	BorrowingID string `json:"borrowingId,omitempty"`
}

type CreateBookRequest struct {
	Title        string `json:"title" validate:"required"`
	Copies       int    `json:"copies" validate:"required,gt=0"`
	Description  string `json:"description" validate:"required"`
	BookCoverURL string `json:"bookCoverURL"`
	AuthorID     string `json:"authorId" validate:"required"`
}
