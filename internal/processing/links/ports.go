package links

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("link not found")
	ErrInvalidURL  = errors.New("invalid url")
	ErrInvalidCode = errors.New("invalid code")
	ErrCodeExists  = errors.New("code already exists")
)

// LinkRepository is the single storage boundary of the service. Every
// method is one atomic storage-level operation.
type LinkRepository interface {
	FindByCode(ctx context.Context, code string) (*Link, error)
	// Insert creates a row with clicks=0 and a null last_clicked_at.
	// Returns ErrCodeExists when the unique index rejects the code.
	Insert(ctx context.Context, code, url string) (*Link, error)
	// DeleteByCode reports whether a row was removed. A missing code is
	// not an error.
	DeleteByCode(ctx context.Context, code string) (bool, error)
	// IncrementClick atomically bumps clicks, stamps last_clicked_at and
	// returns the post-update row, or ErrNotFound.
	IncrementClick(ctx context.Context, code string) (*Link, error)
	// ListAll returns every link ordered by created_at descending.
	ListAll(ctx context.Context) ([]*Link, error)
}

// ClickOutboxRepository records click events for asynchronous fan-out.
type ClickOutboxRepository interface {
	EnqueueClick(ctx context.Context, code string, at time.Time) error
}

type CodeGenerator interface {
	Generate(length int) (string, error)
}
