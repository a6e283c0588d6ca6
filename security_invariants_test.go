package careAuth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/careAuth/permission"
)

func TestSecurityInvariantRefreshReplayRejected(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	engine := newTestEngine(t, testEngineOptions{store: store, redis: rdb})

	pair, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on replay, got %v", err)
	}
}

func TestSecurityInvariantRefreshStoreHoldsNoRawToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	engine := newTestEngine(t, testEngineOptions{store: store, redis: rdb})

	pair, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	for _, key := range mr.Keys() {
		if strings.Contains(key, pair.RefreshToken) {
			t.Fatalf("raw refresh token used as key %q", key)
		}
		if mr.Exists(key) {
			if v, err := mr.Get(key); err == nil && strings.Contains(v, pair.RefreshToken) {
				t.Fatalf("raw refresh token stored under %q", key)
			}
			if fields, err := mr.HKeys(key); err == nil {
				for _, f := range fields {
					if strings.Contains(mr.HGet(key, f), pair.RefreshToken) {
						t.Fatalf("raw refresh token stored in %q.%s", key, f)
					}
				}
			}
		}
	}
}

func TestSecurityInvariantTokenKindsAreNotInterchangeable(t *testing.T) {
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	engine := newTestEngine(t, testEngineOptions{store: store})

	pair, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.Authenticate(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenExpiredOrInvalid) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrTokenExpiredOrInvalid) {
		t.Fatalf("access token accepted for refresh: %v", err)
	}
}

func TestSecurityInvariantForeignSignatureRejected(t *testing.T) {
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleSuperAdmin, ApprovalApproved, true)

	other := engineTestConfig()
	other.JWT.Secret = []byte(strings.Repeat("z", 32))
	forger := newTestEngine(t, testEngineOptions{cfg: &other, store: store})
	engine := newTestEngine(t, testEngineOptions{store: store})

	pair, err := forger.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, ErrTokenExpiredOrInvalid) {
		t.Fatalf("token signed with another secret accepted: %v", err)
	}
}

func TestSecurityInvariantRateLimitPrecedesCredentialCheck(t *testing.T) {
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	engine := newTestEngine(t, testEngineOptions{store: store})
	ctx := WithClientIP(context.Background(), "203.0.113.50")

	for i := 0; i < 5; i++ {
		_, _ = engine.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "guess-" + strings.Repeat("x", i+1)})
	}
	_, err := engine.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("correct password should be denied once limited, got %v", err)
	}
}

func TestSecurityInvariantDeactivationRevokesOnRefresh(t *testing.T) {
	mem := newMemCredentialStore(t)
	mem.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	engine := newTestEngine(t, testEngineOptions{store: lookupStore{mem}})
	ctx := context.Background()

	first, err := engine.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	second, err := engine.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	mem.update("ana@example.org", func(r *CredentialRecord) { r.IsActive = false })
	if _, err := engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrAccountDeactivated) {
		t.Fatalf("expected ErrAccountDeactivated, got %v", err)
	}

	mem.update("ana@example.org", func(r *CredentialRecord) { r.IsActive = true })
	if _, err := engine.Refresh(ctx, second.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("sibling session should be revoked, got %v", err)
	}
}
