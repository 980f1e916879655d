package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
	_ "modernc.org/sqlite"
)

// dbtx is the subset of *sql.DB / *sql.Tx the repositories use, so the
// same repo types serve both the root store and transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection; a second pooled
	// connection would see an empty schema.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling
// commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	return tx.Commit()
}

func (s *Store) Authorisations() store.Authorisations { return &authorisationsRepo{db: s.db} }
func (s *Store) Consents() store.Consents             { return &consentsRepo{db: s.db} }
func (s *Store) Payments() store.Payments             { return &paymentsRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// joinPsuIDs flattens a PSU list into the space-delimited column form.
// Only the ids matter for sibling matching and multilevel counting.
func joinPsuIDs(psus []domain.PsuData) string {
	ids := make([]string, 0, len(psus))
	for _, p := range psus {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	return strings.Join(ids, " ")
}

func splitPsuIDs(s string) []domain.PsuData {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	psus := make([]domain.PsuData, 0, len(fields))
	for _, id := range fields {
		psus = append(psus, domain.PsuData{ID: id})
	}
	return psus
}
