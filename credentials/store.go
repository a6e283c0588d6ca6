package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	careAuth "github.com/MrEthical07/careAuth"
	"github.com/MrEthical07/careAuth/password"
	"github.com/MrEthical07/careAuth/permission"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrUnavailable wraps database failures.
var ErrUnavailable = errors.New("credential store unavailable")

// Schema creates the accounts table used by [SQLStore].
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id              UUID PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL DEFAULT '',
	role            TEXT NOT NULL,
	password_hash   TEXT NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	approval_status TEXT NOT NULL DEFAULT 'pending',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const selectAccount = `SELECT id, email, role, password_hash, is_active, approval_status FROM accounts`

// SQLStore keeps accounts in Postgres. It implements
// [careAuth.CredentialStore], [careAuth.AccountLookup] and
// [careAuth.AccountCreator].
type SQLStore struct {
	DB     *sql.DB
	Hasher *password.Hasher
	Now    func() time.Time
}

// Open connects to Postgres through the pgx database/sql driver and pings it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewSQLStore(db *sql.DB, hasher *password.Hasher) *SQLStore {
	return &SQLStore{DB: db, Hasher: hasher, Now: time.Now}
}

// Migrate applies [Schema].
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FindByEmail implements [careAuth.CredentialStore]. Emails are compared
// case-insensitively.
func (s *SQLStore) FindByEmail(ctx context.Context, email string) (careAuth.CredentialRecord, error) {
	row := s.DB.QueryRowContext(ctx, selectAccount+` WHERE email = $1`, normalizeEmail(email))
	return scanAccount(row)
}

// FindByID implements [careAuth.AccountLookup].
func (s *SQLStore) FindByID(ctx context.Context, userID string) (careAuth.CredentialRecord, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return careAuth.CredentialRecord{}, careAuth.ErrUserNotFound
	}
	row := s.DB.QueryRowContext(ctx, selectAccount+` WHERE id = $1`, userID)
	return scanAccount(row)
}

// VerifyPassword implements [careAuth.CredentialStore].
func (s *SQLStore) VerifyPassword(plain, hash string) (bool, error) {
	return s.Hasher.Verify(plain, hash)
}

// CreateAccount implements [careAuth.AccountCreator].
func (s *SQLStore) CreateAccount(ctx context.Context, acc careAuth.NewAccount) (careAuth.CredentialRecord, error) {
	status := acc.ApprovalStatus
	if status == "" {
		status = careAuth.ApprovalPending
	}
	rec := careAuth.CredentialRecord{
		UserID:         uuid.NewString(),
		Email:          normalizeEmail(acc.Email),
		Role:           acc.Role,
		PasswordHash:   acc.PasswordHash,
		IsActive:       true,
		ApprovalStatus: status,
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO accounts (id, email, name, role, password_hash, is_active, approval_status) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.UserID, rec.Email, strings.TrimSpace(acc.Name), rec.Role.String(), rec.PasswordHash, rec.IsActive, string(rec.ApprovalStatus),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return careAuth.CredentialRecord{}, careAuth.ErrAccountExists
		}
		return careAuth.CredentialRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, nil
}

// SetApproval records an administrator's decision on a pending account.
func (s *SQLStore) SetApproval(ctx context.Context, userID string, status careAuth.ApprovalStatus) error {
	switch status {
	case careAuth.ApprovalApproved, careAuth.ApprovalPending, careAuth.ApprovalRejected:
	default:
		return fmt.Errorf("%w: approval status %q", careAuth.ErrInvalidInput, status)
	}
	return s.update(ctx, `UPDATE accounts SET approval_status = $2, updated_at = $3 WHERE id = $1`, userID, string(status))
}

// SetActive toggles the account. Pair deactivation with
// careAuth.Engine.RevokeUser so outstanding refresh tokens stop working.
func (s *SQLStore) SetActive(ctx context.Context, userID string, active bool) error {
	return s.update(ctx, `UPDATE accounts SET is_active = $2, updated_at = $3 WHERE id = $1`, userID, active)
}

// UpdatePasswordHash replaces the stored hash. The engine calls it for a
// password change and to upgrade an outdated hash after login.
func (s *SQLStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.update(ctx, `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, hash)
}

func (s *SQLStore) update(ctx context.Context, query, userID string, value any) error {
	res, err := s.DB.ExecContext(ctx, query, userID, value, s.now().UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return careAuth.ErrUserNotFound
	}
	return nil
}

func (s *SQLStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func scanAccount(row *sql.Row) (careAuth.CredentialRecord, error) {
	var (
		rec      careAuth.CredentialRecord
		roleName string
		status   string
	)
	err := row.Scan(&rec.UserID, &rec.Email, &roleName, &rec.PasswordHash, &rec.IsActive, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return careAuth.CredentialRecord{}, careAuth.ErrUserNotFound
		}
		return careAuth.CredentialRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	role, ok := permission.ParseRole(roleName)
	if !ok {
		return careAuth.CredentialRecord{}, fmt.Errorf("%w: account %s has unknown role %q", ErrUnavailable, rec.UserID, roleName)
	}
	rec.Role = role
	rec.ApprovalStatus = careAuth.ApprovalStatus(status)
	return rec, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
