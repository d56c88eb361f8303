package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library-backend/internal/errs"
	"library-backend/internal/model"
)

func (r *repository) ListBooks(ctx context.Context) ([]model.Book, error) {
	q, args, err := qb.Select("id", "title", "copies", "description", "book_cover_url", "author_id", "created_at").
		From(bookTableName).
		OrderBy("title").
		ToSql()
	if err != nil {
		return nil, err
	}
	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) GetBook(ctx context.Context, id string) (model.Book, error) {
	q, args, err := qb.Select("id", "title", "copies", "description", "book_cover_url", "author_id", "created_at").
		From(bookTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	q, args, err := qb.Insert(bookTableName).
		Columns("id", "title", "copies", "description", "book_cover_url", "author_id").
		Values(uuid.New(), req.Title, req.Copies, req.Description, req.BookCoverURL, req.AuthorID).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args))
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) UpdateBook(ctx context.Context, id string, req model.CreateBookRequest) error {
	q, args, err := qb.Update(bookTableName).
		Set("title", req.Title).
		Set("copies", req.Copies).
		Set("description", req.Description).
		Set("book_cover_url", req.BookCoverURL).
		Set("author_id", req.AuthorID).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteBook(ctx context.Context, id string) error {
	q, args, err := qb.Delete(bookTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// adjustCopies shifts the available-copy counter by delta inside the caller's
// transaction. It does not enforce non-negativity itself: the caller checks
// availability first, the check constraint on copies is the backstop.
func adjustCopies(ctx context.Context, tx *sqlx.Tx, bookID string, delta int) (model.BookSummary, error) {
	q := fmt.Sprintf(`update %s set copies = copies + $2 where id = $1 returning id, title, copies`, bookTableName)

	var book model.BookSummary
	if err := tx.GetContext(ctx, &book, q, bookID, delta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BookSummary{}, errs.ErrNotFound
		}
		return model.BookSummary{}, asDomainErr(err)
	}
	return book, nil
}
