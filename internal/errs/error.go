package errs

import (
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyBorrowed = errors.New("book is already borrowed by this user")
	ErrNoCopies        = errors.New("no copies of the book are available")
)
