package careAuth

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/careAuth/password"
	"github.com/MrEthical07/careAuth/permission"
)

// passwordStore adds FindByID and UpdatePasswordHash to the in-memory store.
type passwordStore struct {
	lookupStore
	updateErr   error
	updateCalls int
}

func newPasswordStore(t testing.TB) *passwordStore {
	return &passwordStore{lookupStore: lookupStore{newMemCredentialStore(t)}}
}

func (s *passwordStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	for _, rec := range s.byEmail {
		if rec.UserID == userID {
			rec.PasswordHash = hash
			return nil
		}
	}
	return ErrUserNotFound
}

func (s *passwordStore) hashOf(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byEmail[email].PasswordHash
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	store := newPasswordStore(t)
	rec := store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	e := newTestEngine(t, testEngineOptions{store: store})
	ctx := context.Background()

	first, err := e.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	second, err := e.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}

	if err := e.ChangePassword(ctx, rec.UserID, "correct horse", "battery staple"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	for _, pair := range []*TokenPair{first, second} {
		if _, err := e.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("expected ErrTokenRevoked for pre-change session, got %v", err)
		}
	}
	if _, err := e.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "correct horse"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := e.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "battery staple"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if got := e.MetricsSnapshot().Counters[MetricPasswordChangeSuccess]; got != 1 {
		t.Fatalf("password change success metric = %d, want 1", got)
	}
}

func TestChangePasswordRejectsWrongOldPassword(t *testing.T) {
	store := newPasswordStore(t)
	rec := store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	e := newTestEngine(t, testEngineOptions{store: store})
	ctx := context.Background()

	pair, err := e.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	err = e.ChangePassword(ctx, rec.UserID, "wrong horse", "battery staple")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if store.updateCalls != 0 {
		t.Fatal("hash must not change after a wrong old password")
	}
	if _, err := e.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("session must survive a failed change: %v", err)
	}
	if got := e.MetricsSnapshot().Counters[MetricPasswordChangeInvalidOld]; got != 1 {
		t.Fatalf("invalid old password metric = %d, want 1", got)
	}
}

func TestChangePasswordValidation(t *testing.T) {
	store := newPasswordStore(t)
	rec := store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	store.add(t, "max@example.org", "correct horse", permission.RoleFamily, ApprovalApproved, false)
	e := newTestEngine(t, testEngineOptions{store: store})
	ctx := context.Background()

	inactive, err := store.FindByEmail(ctx, "max@example.org")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}

	cases := []struct {
		name    string
		userID  string
		oldPW   string
		newPW   string
		wantErr error
	}{
		{"empty new password", rec.UserID, "correct horse", "", ErrInvalidInput},
		{"short new password", rec.UserID, "correct horse", "short", ErrInvalidInput},
		{"same password", rec.UserID, "correct horse", "correct horse", ErrPasswordReuse},
		{"unknown user", "missing", "correct horse", "battery staple", ErrUserNotFound},
		{"deactivated account", inactive.UserID, "correct horse", "battery staple", ErrAccountDeactivated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := e.ChangePassword(ctx, tc.userID, tc.oldPW, tc.newPW); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
	if store.updateCalls != 0 {
		t.Fatalf("no case may write a hash, got %d writes", store.updateCalls)
	}
}

func TestChangePasswordRequiresUpdater(t *testing.T) {
	store := newMemCredentialStore(t)
	rec := store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	e := newTestEngine(t, testEngineOptions{store: lookupStore{store}})

	err := e.ChangePassword(context.Background(), rec.UserID, "correct horse", "battery staple")
	if !errors.Is(err, ErrPasswordChangeUnsupported) {
		t.Fatalf("expected ErrPasswordChangeUnsupported, got %v", err)
	}
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	store := newPasswordStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	weak := store.hashOf("ana@example.org")

	cfg := engineTestConfig()
	cfg.Password.Memory = 16 * 1024
	cfg.Password.Time = 2
	e := newTestEngine(t, testEngineOptions{cfg: &cfg, store: store})
	ctx := context.Background()

	if _, err := e.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "correct horse"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	upgraded := store.hashOf("ana@example.org")
	if upgraded == weak {
		t.Fatal("stored hash should be replaced after login")
	}
	current, err := password.NewHasher(cfg.Password.Hasher())
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if current.NeedsRehash(upgraded) {
		t.Fatalf("upgraded hash still uses old parameters: %s", upgraded)
	}
	if ok, err := current.Verify("correct horse", upgraded); err != nil || !ok {
		t.Fatalf("upgraded hash must verify: ok=%v err=%v", ok, err)
	}
	if got := e.MetricsSnapshot().Counters[MetricPasswordUpgraded]; got != 1 {
		t.Fatalf("password upgraded metric = %d, want 1", got)
	}

	if _, err := e.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "correct horse"}); err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if store.updateCalls != 1 {
		t.Fatalf("current hash must not be rewritten, got %d updates", store.updateCalls)
	}
}

func TestLoginSucceedsWhenHashUpgradeFails(t *testing.T) {
	store := newPasswordStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	weak := store.hashOf("ana@example.org")
	store.updateErr = errors.New("disk full")

	cfg := engineTestConfig()
	cfg.Password.Time = 2
	e := newTestEngine(t, testEngineOptions{cfg: &cfg, store: store})

	if _, err := e.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"}); err != nil {
		t.Fatalf("upgrade failure must not fail login: %v", err)
	}
	if store.updateCalls != 1 || store.hashOf("ana@example.org") != weak {
		t.Fatalf("expected one failed update attempt, got %d", store.updateCalls)
	}
}

func TestLoginSkipsUpgradeWhenDisabled(t *testing.T) {
	store := newPasswordStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)

	cfg := engineTestConfig()
	cfg.Password.Time = 2
	cfg.Password.UpgradeOnLogin = false
	e := newTestEngine(t, testEngineOptions{cfg: &cfg, store: store})

	if _, err := e.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if store.updateCalls != 0 {
		t.Fatalf("upgrade disabled, got %d updates", store.updateCalls)
	}
}
