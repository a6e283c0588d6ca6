package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the table used by [PostgresStore].
const Schema = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
	token_ref  TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	consumed   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS refresh_tokens_owner_idx ON refresh_tokens (owner_id) WHERE consumed = FALSE;
`

// PostgresStore is a [Store] over a refresh_tokens table. It expects a
// database/sql handle opened with the pgx driver.
type PostgresStore struct {
	DB *sql.DB
}

// NewPostgresStore creates a [PostgresStore].
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// Migrate applies [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Put implements [Store].
func (s *PostgresStore) Put(ctx context.Context, rec Record, now time.Time) error {
	if !now.Before(rec.ExpiresAt) {
		return ErrExpired
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_ref, owner_id, expires_at, consumed) VALUES ($1, $2, $3, $4)`,
		rec.Ref, rec.OwnerID, rec.ExpiresAt.UTC(), rec.Consumed,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, ref string) (Record, error) {
	rec := Record{Ref: ref}
	err := s.DB.QueryRowContext(ctx,
		`SELECT owner_id, expires_at, consumed FROM refresh_tokens WHERE token_ref = $1`,
		ref,
	).Scan(&rec.OwnerID, &rec.ExpiresAt, &rec.Consumed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// Consume implements [Store]. The conditional UPDATE is the compare-and-set;
// when it matches nothing the row is read back to classify the failure.
func (s *PostgresStore) Consume(ctx context.Context, ref string, now time.Time) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET consumed = TRUE WHERE token_ref = $1 AND consumed = FALSE AND expires_at > $2`,
		ref, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 1 {
		return nil
	}

	rec, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if rec.Consumed {
		return ErrAlreadyConsumed
	}
	return ErrNotFound
}

// ConsumeAll implements [Store].
func (s *PostgresStore) ConsumeAll(ctx context.Context, ownerID string, now time.Time) (int, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET consumed = TRUE WHERE owner_id = $1 AND consumed = FALSE AND expires_at > $2`,
		ownerID, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

// DeleteExpired removes rows whose expiry is before now and returns how many
// were deleted.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res.RowsAffected()
}
