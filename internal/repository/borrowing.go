package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library-backend/internal/errs"
	"library-backend/internal/model"
)

const borrowingColumns = "id, book_id, user_id, borrowed_at, due_date, returned_at"

func (r *repository) ListBorrowings(ctx context.Context) ([]model.Borrowing, error) {
	q, args, err := qb.Select("id", "book_id", "user_id", "borrowed_at", "due_date", "returned_at").
		From(borrowingTableName).
		OrderBy("borrowed_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Borrowing
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListUserBorrowings(ctx context.Context, userID string) ([]model.BorrowingWithBook, error) {
	q, args, err := qb.Select("br.id", "br.book_id", "br.user_id", "br.borrowed_at", "br.due_date", "br.returned_at",
		"b.title", "b.book_cover_url").
		From(borrowingTableName + " br").
		Join(fmt.Sprintf("%s b on b.id = br.book_id", bookTableName)).
		Where(sq.Eq{"br.user_id": userID}).
		Where("br.returned_at is null").
		OrderBy("br.borrowed_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.BorrowingWithBook
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		r.log.Error("ListUserBorrowings", zap.String("q", q), zap.Any("args", args))
		return nil, err
	}
	return items, nil
}

func (r *repository) FindOpenBorrowing(ctx context.Context, bookID, userID string) (model.Borrowing, error) {
	var br model.Borrowing
	err := findOpenBorrowing(ctx, r.db, bookID, userID, &br)
	return br, err
}

func findOpenBorrowing(ctx context.Context, q sqlx.QueryerContext, bookID, userID string, dest *model.Borrowing) error {
	query, args, err := qb.Select("id", "book_id", "user_id", "borrowed_at", "due_date", "returned_at").
		From(borrowingTableName).
		Where(sq.Eq{"book_id": bookID, "user_id": userID}).
		Where("returned_at is null").
		ToSql()
	if err != nil {
		return err
	}
	if err := sqlx.GetContext(ctx, q, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	return nil
}

// Borrow creates an open loan and takes one copy off the shelf as a single
// transaction. The book row is locked for the duration, so concurrent
// borrows of the last copy serialize here: the loser sees copies == 0 and
// gets ErrNoCopies, never a negative counter.
func (r *repository) Borrow(ctx context.Context, bookID, userID string, dueDate time.Time) (model.Borrowing, model.BookSummary, error) {
	var (
		br   model.Borrowing
		book model.BookSummary
	)
	err := r.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var open model.Borrowing
		switch err := findOpenBorrowing(ctx, tx, bookID, userID, &open); {
		case err == nil:
			return errs.ErrAlreadyBorrowed
		case !errors.Is(err, errs.ErrNotFound):
			return err
		}

		var copies int
		q := fmt.Sprintf(`select copies from %s where id = $1 for update`, bookTableName)
		if err := tx.QueryRowContext(ctx, q, bookID).Scan(&copies); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if copies <= 0 {
			return errs.ErrNoCopies
		}

		var err error
		if book, err = adjustCopies(ctx, tx, bookID, -1); err != nil {
			return err
		}

		q, args, err := qb.Insert(borrowingTableName).
			Columns("id", "book_id", "user_id", "due_date").
			Values(uuid.New(), bookID, userID, dueDate).
			Suffix("returning " + borrowingColumns).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &br, q, args...); err != nil {
			r.log.Error("Borrow", zap.String("q", q), zap.Any("args", args))
			return asDomainErr(err)
		}
		return nil
	})
	if err != nil {
		return model.Borrowing{}, model.BookSummary{}, err
	}
	return br, book, nil
}

// Return closes an open loan and puts the copy back, both sides in one
// transaction. Closing an already-returned loan is ErrNotFound, not a no-op.
func (r *repository) Return(ctx context.Context, borrowingID string, returnedAt time.Time) (model.BookSummary, string, error) {
	var (
		book   model.BookSummary
		userID string
	)
	err := r.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		q := fmt.Sprintf(`update %s set returned_at = $2
	where id = $1 and returned_at is null
	returning book_id, user_id`, borrowingTableName)

		var bookID string
		if err := tx.QueryRowContext(ctx, q, borrowingID, returnedAt).Scan(&bookID, &userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}

		var err error
		book, err = adjustCopies(ctx, tx, bookID, 1)
		return err
	})
	if err != nil {
		return model.BookSummary{}, "", err
	}
	return book, userID, nil
}

// Remove hard-deletes a loan, restoring inventory as if it were returned.
func (r *repository) Remove(ctx context.Context, borrowingID string) (model.BookSummary, string, error) {
	var (
		book   model.BookSummary
		userID string
	)
	err := r.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		q := fmt.Sprintf(`delete from %s where id = $1 returning book_id, user_id, returned_at`, borrowingTableName)

		var (
			bookID     string
			returnedAt *time.Time
		)
		if err := tx.QueryRowContext(ctx, q, borrowingID).Scan(&bookID, &userID, &returnedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}

		// a closed loan already gave its copy back
		delta := 1
		if returnedAt != nil {
			delta = 0
		}

		var err error
		book, err = adjustCopies(ctx, tx, bookID, delta)
		return err
	})
	if err != nil {
		return model.BookSummary{}, "", err
	}
	return book, userID, nil
}
