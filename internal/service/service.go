package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library-backend/internal/errs"
	"library-backend/internal/model"
	"library-backend/internal/repository"
)

// loanTerm is the fixed loan policy: every due date is 90 days out.
const loanTerm = 90 * 24 * time.Hour

type Service struct {
	log   *zap.Logger
	repo  repository.Repository
	audit Notifier
}

func NewService(repo repository.Repository, audit Notifier, log *zap.Logger) *Service {
	return &Service{
		log:   log,
		repo:  repo,
		audit: audit,
	}
}

func (s *Service) BorrowBook(ctx context.Context, req model.BorrowRequest) (model.Borrowing, error) {
	now := time.Now().UTC()
	br, book, err := s.repo.Borrow(ctx, req.BookID, req.UserID, now.Add(loanTerm))
	if err != nil {
		return model.Borrowing{}, err
	}
	s.audit.Notify(ctx, req.UserID, fmt.Sprintf("borrowed book: %s", book.Title), http.MethodPost)
	return br, nil
}

func (s *Service) ReturnBook(ctx context.Context, borrowingID string) (model.BookSummary, error) {
	book, userID, err := s.repo.Return(ctx, borrowingID, time.Now().UTC())
	if err != nil {
		return model.BookSummary{}, err
	}
	s.audit.Notify(ctx, userID, fmt.Sprintf("returned book: %s", book.Title), http.MethodPut)
	return book, nil
}

func (s *Service) RemoveBorrowing(ctx context.Context, borrowingID string) (model.BookSummary, error) {
	book, userID, err := s.repo.Remove(ctx, borrowingID)
	if err != nil {
		return model.BookSummary{}, err
	}
	s.audit.Notify(ctx, userID, fmt.Sprintf("removed borrowing of book: %s", book.Title), http.MethodDelete)
	return book, nil
}

func (s *Service) CheckStatus(ctx context.Context, bookID, userID string) (model.BorrowStatus, error) {
	br, err := s.repo.FindOpenBorrowing(ctx, bookID, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.BorrowStatus{HasBorrowed: false}, nil
		}
		return model.BorrowStatus{}, err
	}
	return model.BorrowStatus{HasBorrowed: true, BorrowingID: br.ID}, nil
}

func (s *Service) ListBorrowings(ctx context.Context) ([]model.Borrowing, error) {
	return s.repo.ListBorrowings(ctx)
}

func (s *Service) ListUserBorrowings(ctx context.Context, userID string) ([]model.BorrowingWithBook, error) {
	items, err := s.repo.ListUserBorrowings(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.audit.Notify(ctx, userID, "listed open borrowings", http.MethodGet)
	return items, nil
}

func (s *Service) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

func (s *Service) GetBook(ctx context.Context, id string) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	return s.repo.CreateBook(ctx, req)
}

func (s *Service) UpdateBook(ctx context.Context, id string, req model.CreateBookRequest) error {
	return s.repo.UpdateBook(ctx, id, req)
}

func (s *Service) DeleteBook(ctx context.Context, id string) error {
	return s.repo.DeleteBook(ctx, id)
}
