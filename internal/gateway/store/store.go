package store

import (
	"context"
	"errors"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned when an optimistic version check fails,
	// i.e. another request updated the same authorisation first.
	ErrConflict = errors.New("store: version conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement this. It exposes sub-repositories to keep concerns tidy
// and testable.
type Store interface {
	Authorisations() Authorisations
	Consents() Consents
	Payments() Payments

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. State
	// transitions that touch an authorisation together with its parent or
	// siblings go through this so no partial transition is ever visible.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Authorisations interface {
	// Create inserts a new authorisation record (id is provided by the
	// app via ULID).
	Create(ctx context.Context, a domain.Authorisation) error

	// GetByID returns an authorisation by id.
	GetByID(ctx context.Context, id string) (domain.Authorisation, error)

	// ListByParent returns every authorisation, terminal or not, ever
	// created for a parent. Records are retained for audit, so callers
	// filter by status themselves.
	ListByParent(ctx context.Context, parentID string, parentType domain.AuthorisationType) ([]domain.Authorisation, error)

	// Update persists a mutated authorisation guarded by its Version.
	// Returns ErrConflict when the stored version no longer matches, so
	// two concurrent updates for the same authorisation cannot both win.
	Update(ctx context.Context, a domain.Authorisation) (domain.Authorisation, error)

	// FailExpired force-fails non-terminal authorisations whose deadline
	// passed before the cutoff. Used by housekeeping only; the hot path
	// enforces deadlines on read.
	FailExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type Consents interface {
	Create(ctx context.Context, c domain.Consent) error
	GetByID(ctx context.Context, id string) (domain.Consent, error)

	// Update persists status and flag changes.
	Update(ctx context.Context, c domain.Consent) error

	// TerminateOldConsents moves older non-finalised recurring consents
	// of the same (TPP, PSU) pair to terminatedByAspsp once a newer
	// consent became valid. Returns the number of consents terminated.
	TerminateOldConsents(ctx context.Context, current domain.Consent) (int64, error)
}

type Payments interface {
	// Create inserts the aggregate and all of its legs.
	Create(ctx context.Context, p domain.Payment) error

	// GetByID loads the aggregate with its legs rebuilt.
	GetByID(ctx context.Context, id string) (domain.Payment, error)

	// Update persists transaction status and flag changes (legs are
	// immutable after creation).
	Update(ctx context.Context, p domain.Payment) error
}
