package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Record is the persisted state of one issued refresh token.
type Record struct {
	Ref       string
	OwnerID   string
	ExpiresAt time.Time
	Consumed  bool
}

// Active reports whether the record can still authorize a rotation at now.
func (r Record) Active(now time.Time) bool {
	return !r.Consumed && now.Before(r.ExpiresAt)
}

// Store persists refresh records. Consume must be atomic per ref: of any
// number of concurrent calls for the same active record exactly one returns
// nil. Put rejects a record that is no longer active at now with [ErrExpired].
type Store interface {
	Put(ctx context.Context, rec Record, now time.Time) error
	Get(ctx context.Context, ref string) (Record, error)
	Consume(ctx context.Context, ref string, now time.Time) error
	ConsumeAll(ctx context.Context, ownerID string, now time.Time) (int, error)
}

// TokenRef derives the storage key for a raw refresh token.
func TokenRef(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Registry is the single-use bookkeeping layer over a [Store].
type Registry struct {
	store Store
	now   func() time.Time
}

// NewRegistry creates a [Registry]. A nil now uses time.Now.
func NewRegistry(store Store, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, now: now}
}

// Store records a newly issued refresh token as active.
func (r *Registry) Store(ctx context.Context, token, ownerID string, expiresAt time.Time) error {
	if token == "" || ownerID == "" {
		return errors.New("refresh token and owner are required")
	}
	return wrap(r.store.Put(ctx, Record{
		Ref:       TokenRef(token),
		OwnerID:   ownerID,
		ExpiresAt: expiresAt,
	}, r.now()))
}

// Lookup returns the owner of token when its record exists, is unexpired and
// has not been consumed. ok is false otherwise; err is reserved for backend
// failures.
func (r *Registry) Lookup(ctx context.Context, token string) (string, bool, error) {
	rec, err := r.store.Get(ctx, TokenRef(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, wrap(err)
	}
	if !rec.Active(r.now()) {
		return "", false, nil
	}
	return rec.OwnerID, true, nil
}

// Consume marks token as used. It returns [ErrAlreadyConsumed] when another
// caller consumed it first and [ErrNotFound] for unknown or expired tokens.
func (r *Registry) Consume(ctx context.Context, token string) error {
	return wrap(r.store.Consume(ctx, TokenRef(token), r.now()))
}

// RevokeAll consumes every active record owned by ownerID and returns how
// many were revoked.
func (r *Registry) RevokeAll(ctx context.Context, ownerID string) (int, error) {
	n, err := r.store.ConsumeAll(ctx, ownerID, r.now())
	return n, wrap(err)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyConsumed) ||
		errors.Is(err, ErrDuplicate) || errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
