package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library-backend/internal/errs"
	"library-backend/internal/model"
)

type Repository interface {
	// catalog
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id string, req model.CreateBookRequest) error
	DeleteBook(ctx context.Context, id string) error

	// loan ledger
	ListBorrowings(ctx context.Context) ([]model.Borrowing, error)
	ListUserBorrowings(ctx context.Context, userID string) ([]model.BorrowingWithBook, error)
	FindOpenBorrowing(ctx context.Context, bookID, userID string) (model.Borrowing, error)

	// inventory transitions; each runs in a single transaction.
	// Return and Remove also report the user who held the loan.
	Borrow(ctx context.Context, bookID, userID string, dueDate time.Time) (model.Borrowing, model.BookSummary, error)
	Return(ctx context.Context, borrowingID string, returnedAt time.Time) (model.BookSummary, string, error)
	Remove(ctx context.Context, borrowingID string) (model.BookSummary, string, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	bookTableName      = `book`
	borrowingTableName = `borrowing`
)

// every mutating transaction is a single row read plus at most two row
// writes; anything slower than this is a stuck lock and must fail
const txTimeout = 3 * time.Second

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) withTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// asDomainErr maps constraint violations raised by a racing transaction to
// the same errors the in-transaction checks produce.
func asDomainErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return errs.ErrAlreadyBorrowed
		case pgerrcode.CheckViolation:
			return errs.ErrNoCopies
		}
	}
	return err
}
