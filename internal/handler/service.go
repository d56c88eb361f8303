package handler

import (
	"context"

	"library-backend/internal/model"
	"library-backend/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go -package=mocks

type BorrowingService interface {
	BorrowBook(ctx context.Context, req model.BorrowRequest) (model.Borrowing, error)
	ReturnBook(ctx context.Context, borrowingID string) (model.BookSummary, error)
	RemoveBorrowing(ctx context.Context, borrowingID string) (model.BookSummary, error)
	CheckStatus(ctx context.Context, bookID, userID string) (model.BorrowStatus, error)
	ListBorrowings(ctx context.Context) ([]model.Borrowing, error)
	ListUserBorrowings(ctx context.Context, userID string) ([]model.BorrowingWithBook, error)
}

type BookService interface {
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id string, req model.CreateBookRequest) error
	DeleteBook(ctx context.Context, id string) error
}

var (
	_ BorrowingService = (*service.Service)(nil)
	_ BookService      = (*service.Service)(nil)
)
