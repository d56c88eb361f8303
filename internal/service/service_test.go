package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"library-backend/internal/errs"
	"library-backend/internal/model"
	"library-backend/internal/service"
)

// memStore mimics the repository contract: every inventory transition is
// atomic, checks run under the same lock as the writes.
type memStore struct {
	mu    sync.Mutex
	books map[string]*model.Book
	loans map[string]*model.Borrowing
}

func newMemStore(books ...model.Book) *memStore {
	m := &memStore{
		books: make(map[string]*model.Book),
		loans: make(map[string]*model.Borrowing),
	}
	for i := range books {
		b := books[i]
		m.books[b.ID] = &b
	}
	return m
}

func (m *memStore) openLoans(bookID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.loans {
		if l.BookID == bookID && l.ReturnedAt == nil {
			n++
		}
	}
	return n
}

func (m *memStore) copies(bookID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[bookID].Copies
}

func (m *memStore) ListBooks(context.Context) ([]model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, *b)
	}
	return out, nil
}

func (m *memStore) GetBook(_ context.Context, id string) (model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	return *b, nil
}

func (m *memStore) CreateBook(_ context.Context, req model.CreateBookRequest) (model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := model.Book{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Copies:       req.Copies,
		Description:  req.Description,
		BookCoverURL: req.BookCoverURL,
		AuthorID:     req.AuthorID,
	}
	m.books[b.ID] = &b
	return b, nil
}

func (m *memStore) UpdateBook(_ context.Context, id string, req model.CreateBookRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return errs.ErrNotFound
	}
	b.Title, b.Copies, b.Description, b.BookCoverURL, b.AuthorID =
		req.Title, req.Copies, req.Description, req.BookCoverURL, req.AuthorID
	return nil
}

func (m *memStore) DeleteBook(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *memStore) ListBorrowings(context.Context) ([]model.Borrowing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Borrowing, 0, len(m.loans))
	for _, l := range m.loans {
		out = append(out, *l)
	}
	return out, nil
}

func (m *memStore) ListUserBorrowings(_ context.Context, userID string) ([]model.BorrowingWithBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BorrowingWithBook
	for _, l := range m.loans {
		if l.UserID != userID || l.ReturnedAt != nil {
			continue
		}
		item := model.BorrowingWithBook{Borrowing: *l}
		if b, ok := m.books[l.BookID]; ok {
			item.Title, item.BookCoverURL = b.Title, b.BookCoverURL
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *memStore) FindOpenBorrowing(_ context.Context, bookID, userID string) (model.Borrowing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loans {
		if l.BookID == bookID && l.UserID == userID && l.ReturnedAt == nil {
			return *l, nil
		}
	}
	return model.Borrowing{}, errs.ErrNotFound
}

func (m *memStore) Borrow(_ context.Context, bookID, userID string, dueDate time.Time) (model.Borrowing, model.BookSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loans {
		if l.BookID == bookID && l.UserID == userID && l.ReturnedAt == nil {
			return model.Borrowing{}, model.BookSummary{}, errs.ErrAlreadyBorrowed
		}
	}
	b, ok := m.books[bookID]
	if !ok {
		return model.Borrowing{}, model.BookSummary{}, errs.ErrNotFound
	}
	if b.Copies <= 0 {
		return model.Borrowing{}, model.BookSummary{}, errs.ErrNoCopies
	}
	b.Copies--
	br := model.Borrowing{
		ID:         uuid.NewString(),
		BookID:     bookID,
		UserID:     userID,
		BorrowedAt: time.Now().UTC(),
		DueDate:    dueDate,
	}
	m.loans[br.ID] = &br
	return br, model.BookSummary{ID: b.ID, Title: b.Title, Copies: b.Copies}, nil
}

func (m *memStore) Return(_ context.Context, borrowingID string, returnedAt time.Time) (model.BookSummary, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[borrowingID]
	if !ok || l.ReturnedAt != nil {
		return model.BookSummary{}, "", errs.ErrNotFound
	}
	l.ReturnedAt = &returnedAt
	b := m.books[l.BookID]
	b.Copies++
	return model.BookSummary{ID: b.ID, Title: b.Title, Copies: b.Copies}, l.UserID, nil
}

func (m *memStore) Remove(_ context.Context, borrowingID string) (model.BookSummary, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[borrowingID]
	if !ok {
		return model.BookSummary{}, "", errs.ErrNotFound
	}
	delete(m.loans, borrowingID)
	b := m.books[l.BookID]
	if l.ReturnedAt == nil {
		b.Copies++
	}
	return model.BookSummary{ID: b.ID, Title: b.Title, Copies: b.Copies}, l.UserID, nil
}

type recordNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordNotifier) Notify(_ context.Context, actorID, description, verb string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, fmt.Sprintf("%s %s %s", verb, actorID, description))
}

func (n *recordNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func newTestService(store *memStore, audit *recordNotifier) *service.Service {
	return service.NewService(store, audit, zap.NewExample().Named("test"))
}

func TestService_BorrowBook(t *testing.T) {
	t.Parallel()

	store := newMemStore(model.Book{ID: "book-x", Title: "X", Copies: 2})
	audit := &recordNotifier{}
	svc := newTestService(store, audit)
	ctx := context.Background()

	br, err := svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-x", UserID: "u-1"})
	require.NoError(t, err)
	require.Equal(t, "book-x", br.BookID)
	require.Nil(t, br.ReturnedAt)
	require.WithinDuration(t, time.Now().UTC().Add(90*24*time.Hour), br.DueDate, time.Minute)
	require.Equal(t, 1, store.copies("book-x"))
	require.Equal(t, 1, audit.count())

	// same user cannot hold the same book twice
	_, err = svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-x", UserID: "u-1"})
	require.ErrorIs(t, err, errs.ErrAlreadyBorrowed)
	require.Equal(t, 1, store.copies("book-x"))
	require.Equal(t, 1, audit.count())

	_, err = svc.BorrowBook(ctx, model.BorrowRequest{BookID: "missing", UserID: "u-1"})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_BorrowBook_NoCopies(t *testing.T) {
	t.Parallel()

	store := newMemStore(model.Book{ID: "book-y", Title: "Y", Copies: 0})
	audit := &recordNotifier{}
	svc := newTestService(store, audit)

	_, err := svc.BorrowBook(context.Background(), model.BorrowRequest{BookID: "book-y", UserID: "u-2"})
	require.ErrorIs(t, err, errs.ErrNoCopies)
	require.Equal(t, 0, store.copies("book-y"))
	require.Equal(t, 0, store.openLoans("book-y"))
	require.Equal(t, 0, audit.count())
}

func TestService_BorrowBook_Concurrent(t *testing.T) {
	t.Parallel()

	store := newMemStore(model.Book{ID: "book-x", Title: "X", Copies: 1})
	svc := newTestService(store, &recordNotifier{})

	const n = 16
	results := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.BorrowBook(context.Background(),
				model.BorrowRequest{BookID: "book-x", UserID: fmt.Sprintf("u-%d", i)})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	success := 0
	for _, err := range results {
		if err == nil {
			success++
		} else {
			require.ErrorIs(t, err, errs.ErrNoCopies)
		}
	}
	require.Equal(t, 1, success)
	require.Equal(t, 0, store.copies("book-x"))
	require.Equal(t, 1, store.openLoans("book-x"))
}

func TestService_ReturnBook(t *testing.T) {
	t.Parallel()

	store := newMemStore(model.Book{ID: "book-x", Title: "X", Copies: 2})
	audit := &recordNotifier{}
	svc := newTestService(store, audit)
	ctx := context.Background()

	br, err := svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-x", UserID: "u-1"})
	require.NoError(t, err)
	require.Equal(t, 1, store.copies("book-x"))

	book, err := svc.ReturnBook(ctx, br.ID)
	require.NoError(t, err)
	require.Equal(t, 2, book.Copies)
	require.Equal(t, 2, store.copies("book-x"))

	// second return is an error and must not increment again
	_, err = svc.ReturnBook(ctx, br.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Equal(t, 2, store.copies("book-x"))
	require.Equal(t, 2, audit.count())
}

func TestService_RemoveBorrowing(t *testing.T) {
	t.Parallel()

	store := newMemStore(model.Book{ID: "book-z", Title: "Z", Copies: 1})
	svc := newTestService(store, &recordNotifier{})
	ctx := context.Background()

	br, err := svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-z", UserID: "u-3"})
	require.NoError(t, err)
	require.Equal(t, 0, store.copies("book-z"))

	book, err := svc.RemoveBorrowing(ctx, br.ID)
	require.NoError(t, err)
	require.Equal(t, 1, book.Copies)
	require.Equal(t, 1, store.copies("book-z"))
	require.Equal(t, 0, store.openLoans("book-z"))

	_, err = svc.RemoveBorrowing(ctx, br.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_CheckStatus(t *testing.T) {
	t.Parallel()

	store := newMemStore(model.Book{ID: "book-x", Title: "X", Copies: 1})
	svc := newTestService(store, &recordNotifier{})
	ctx := context.Background()

	status, err := svc.CheckStatus(ctx, "book-x", "u-1")
	require.NoError(t, err)
	require.False(t, status.HasBorrowed)

	br, err := svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-x", UserID: "u-1"})
	require.NoError(t, err)

	status, err = svc.CheckStatus(ctx, "book-x", "u-1")
	require.NoError(t, err)
	require.True(t, status.HasBorrowed)
	require.Equal(t, br.ID, status.BorrowingID)
}

// copies + open loans must stay constant through any borrow/return/remove mix.
func TestService_InventoryConservation(t *testing.T) {
	t.Parallel()

	const total = 3
	store := newMemStore(model.Book{ID: "book-x", Title: "X", Copies: total})
	svc := newTestService(store, &recordNotifier{})
	ctx := context.Background()

	check := func() {
		require.Equal(t, total, store.copies("book-x")+store.openLoans("book-x"))
	}

	br1, err := svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-x", UserID: "u-1"})
	require.NoError(t, err)
	check()
	br2, err := svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-x", UserID: "u-2"})
	require.NoError(t, err)
	check()
	_, err = svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-x", UserID: "u-3"})
	require.NoError(t, err)
	check()

	_, err = svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-x", UserID: "u-4"})
	require.ErrorIs(t, err, errs.ErrNoCopies)
	check()

	_, err = svc.ReturnBook(ctx, br1.ID)
	require.NoError(t, err)
	check()
	_, err = svc.RemoveBorrowing(ctx, br2.ID)
	require.NoError(t, err)
	check()

	_, err = svc.BorrowBook(ctx, model.BorrowRequest{BookID: "book-x", UserID: "u-4"})
	require.NoError(t, err)
	check()
}
