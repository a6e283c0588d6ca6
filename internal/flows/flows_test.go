package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/careAuth/internal/limiters"
	"github.com/MrEthical07/careAuth/internal/rate"
	"github.com/MrEthical07/careAuth/jwt"
	"github.com/MrEthical07/careAuth/permission"
	"github.com/MrEthical07/careAuth/refresh"
)

var (
	errNotReady    = errors.New("not ready")
	errBadCreds    = errors.New("bad credentials")
	errBadInput    = errors.New("bad input")
	errInternal    = errors.New("internal")
	errNoUser      = errors.New("no user")
	errInvalid     = errors.New("invalid token")
	errRevoked     = errors.New("revoked")
	errDeactivated = errors.New("deactivated")
	errPending     = errors.New("pending")
	errRejected    = errors.New("rejected")
	errExists      = errors.New("exists")
	errDisabled    = errors.New("disabled")
	errLimited     = errors.New("limited")
)

var stateErrors = AccountStateErrors{Deactivated: errDeactivated, Pending: errPending, Rejected: errRejected}

var lifetimes = TokenLifetimes{
	Access:            15 * time.Minute,
	Refresh:           7 * 24 * time.Hour,
	RememberMeRefresh: 30 * 24 * time.Hour,
}

type harness struct {
	jwt      *jwt.Manager
	registry *refresh.Registry
	login    *limiters.LoginLimiter
	accounts map[string]Account
	counts   map[int]int
	events   []string
	mu       sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{Secret: []byte(strings.Repeat("s", 32))})
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}
	return &harness{
		jwt:      m,
		registry: refresh.NewRegistry(refresh.NewMemoryStore(nil), nil),
		login:    limiters.NewLoginLimiter(rate.New(rate.NewMemoryStore(nil)), limiters.DefaultLoginPolicy),
		accounts: map[string]Account{
			"ana@example.org": {UserID: "u-ana", Email: "ana@example.org", Role: permission.RoleVolunteer, PasswordHash: "pw:correct-horse", IsActive: true, ApprovalStatus: ApprovalApproved},
			"pat@example.org": {UserID: "u-pat", Email: "pat@example.org", Role: permission.RoleFamily, PasswordHash: "pw:correct-horse", IsActive: true, ApprovalStatus: ApprovalPending},
		},
		counts: map[int]int{},
	}
}

func (h *harness) metricInc(id int) {
	h.mu.Lock()
	h.counts[id]++
	h.mu.Unlock()
}

func (h *harness) emitAudit(_ context.Context, event string, _ bool, _, _ string, _ error, meta func() map[string]string) {
	if meta != nil {
		_ = meta()
	}
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
}

func (h *harness) loginDeps() LoginDeps {
	return LoginDeps{
		Lifetimes:        lifetimes,
		CheckLoginRate:   h.login.Check,
		ResetLoginRate:   h.login.Reset,
		RateLimitedError: func(time.Duration) error { return errLimited },
		FindAccount: func(_ context.Context, email string) (Account, error) {
			acc, ok := h.accounts[strings.ToLower(email)]
			if !ok {
				return Account{}, errNoUser
			}
			return acc, nil
		},
		VerifyPassword: func(plain, hash string) (bool, error) { return "pw:"+plain == hash, nil },
		IssueToken:     h.jwt.Issue,
		StoreRefresh:   h.registry.Store,
		MetricInc:      h.metricInc,
		EmitAudit:      h.emitAudit,
		Metrics:        LoginMetrics{LoginSuccess: 1, LoginFailure: 2, LoginRateLimited: 3, LoginAccountBlocked: 4},
		Events:         LoginEvents{LoginSuccess: "login_success", LoginFailure: "login_failure", LoginRateLimited: "login_rate_limited"},
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errBadCreds,
			InvalidInput:       errBadInput,
			Internal:           errInternal,
			UserNotFound:       errNoUser,
			AccountState:       stateErrors,
		},
	}
}

func (h *harness) refreshDeps() RefreshDeps {
	return RefreshDeps{
		Lifetimes:      lifetimes,
		VerifyToken:    h.jwt.Verify,
		LookupRefresh:  h.registry.Lookup,
		ConsumeRefresh: h.registry.Consume,
		StoreRefresh:   h.registry.Store,
		RevokeAll:      h.registry.RevokeAll,
		IssueToken:     h.jwt.Issue,
		MetricInc:      h.metricInc,
		EmitAudit:      h.emitAudit,
		Metrics:        RefreshMetrics{RefreshSuccess: 10, RefreshFailure: 11, RefreshReuseDetected: 12, RevokeAll: 13},
		Events:         RefreshEvents{RefreshSuccess: "refresh_success", RefreshInvalid: "refresh_invalid", RefreshReuseDetected: "refresh_reuse_detected"},
		Errors: RefreshErrors{
			EngineNotReady:        errNotReady,
			TokenExpiredOrInvalid: errInvalid,
			TokenRevoked:          errRevoked,
			Internal:              errInternal,
			UserNotFound:          errNoUser,
			AccountState:          stateErrors,
		},
	}
}

func TestRunLoginIssuesRegisteredPair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tokens, err := RunLogin(ctx, "ana@example.org", "correct-horse", false, h.loginDeps())
	if err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.RememberMe {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
	if tokens.Identity.Role != "volunteer" {
		t.Fatalf("role = %q", tokens.Identity.Role)
	}

	owner, ok, err := h.registry.Lookup(ctx, tokens.RefreshToken)
	if err != nil || !ok || owner != "u-ana" {
		t.Fatalf("refresh record = %q, %v, %v", owner, ok, err)
	}
	claims, ok := h.jwt.Verify(tokens.AccessToken)
	if !ok || claims.Kind != jwt.KindAccess {
		t.Fatal("access token does not verify as access")
	}
	if h.counts[1] != 1 {
		t.Fatalf("login success metric = %d", h.counts[1])
	}
}

func TestRunLoginUndifferentiatedFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := RunLogin(ctx, "nobody@example.org", "correct-horse", false, h.loginDeps()); !errors.Is(err, errBadCreds) {
		t.Fatalf("unknown account: %v", err)
	}
	if _, err := RunLogin(ctx, "ana@example.org", "wrong-horse", false, h.loginDeps()); !errors.Is(err, errBadCreds) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := RunLogin(ctx, "", "", false, h.loginDeps()); !errors.Is(err, errBadCreds) {
		t.Fatalf("empty input: %v", err)
	}
}

func TestRunLoginDummyHashOnUnknownAccount(t *testing.T) {
	h := newHarness(t)
	deps := h.loginDeps()
	deps.DummyHash = "pw:dummy"
	var calls int32
	verify := deps.VerifyPassword
	deps.VerifyPassword = func(plain, hash string) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return verify(plain, hash)
	}

	_, _ = RunLogin(context.Background(), "nobody@example.org", "x", false, deps)
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("VerifyPassword calls = %d, want 1", calls)
	}
}

func TestRunLoginPendingAccountAfterPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := RunLogin(ctx, "pat@example.org", "wrong", false, h.loginDeps()); !errors.Is(err, errBadCreds) {
		t.Fatalf("state must not leak before password check: %v", err)
	}
	if _, err := RunLogin(ctx, "pat@example.org", "correct-horse", false, h.loginDeps()); !errors.Is(err, errPending) {
		t.Fatalf("expected pending, got %v", err)
	}
	if h.counts[4] != 1 {
		t.Fatalf("blocked metric = %d", h.counts[4])
	}
}

func TestRunLoginRateLimitedBeforeCredentials(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := RunLogin(ctx, "ana@example.org", "wrong", false, h.loginDeps()); !errors.Is(err, errBadCreds) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if _, err := RunLogin(ctx, "ana@example.org", "correct-horse", false, h.loginDeps()); !errors.Is(err, errLimited) {
		t.Fatalf("sixth attempt: expected rate limit, got %v", err)
	}
	if h.counts[3] != 1 {
		t.Fatalf("rate limited metric = %d", h.counts[3])
	}
}

func TestRunLoginStoreFailureIssuesNothing(t *testing.T) {
	h := newHarness(t)
	deps := h.loginDeps()
	deps.StoreRefresh = func(context.Context, string, string, time.Time) error { return errors.New("db down") }

	tokens, err := RunLogin(context.Background(), "ana@example.org", "correct-horse", false, deps)
	if !errors.Is(err, errInternal) {
		t.Fatalf("expected internal, got %v", err)
	}
	if tokens.AccessToken != "" || tokens.RefreshToken != "" {
		t.Fatal("tokens returned despite store failure")
	}
}

func TestRunRefreshRotatesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := RunLogin(ctx, "ana@example.org", "correct-horse", true, h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	second, err := RunRefresh(ctx, first.RefreshToken, h.refreshDeps())
	if err != nil {
		t.Fatalf("first rotation: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("rotation returned the same refresh token")
	}
	if !second.RememberMe {
		t.Fatal("rotation dropped the remember-me lifetime")
	}

	if _, err := RunRefresh(ctx, first.RefreshToken, h.refreshDeps()); !errors.Is(err, errRevoked) {
		t.Fatalf("second rotation: expected revoked, got %v", err)
	}
	if _, err := RunRefresh(ctx, second.RefreshToken, h.refreshDeps()); err != nil {
		t.Fatalf("rotated token should be usable: %v", err)
	}
}

func TestRunRefreshRejectsAccessTokens(t *testing.T) {
	h := newHarness(t)
	tokens, err := RunLogin(context.Background(), "ana@example.org", "correct-horse", false, h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := RunRefresh(context.Background(), tokens.AccessToken, h.refreshDeps()); !errors.Is(err, errInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if _, err := RunRefresh(context.Background(), "garbage", h.refreshDeps()); !errors.Is(err, errInvalid) {
		t.Fatalf("expected invalid for garbage, got %v", err)
	}
}

func TestRunRefreshConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tokens, err := RunLogin(ctx, "ana@example.org", "correct-horse", false, h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	const workers = 16
	var wins, revoked int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := RunRefresh(ctx, tokens.RefreshToken, h.refreshDeps())
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, errRevoked):
				atomic.AddInt32(&revoked, 1)
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || revoked != workers-1 {
		t.Fatalf("wins=%d revoked=%d", wins, revoked)
	}
}

func TestRunRefreshDeactivatedOwnerRevokesAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := RunLogin(ctx, "ana@example.org", "correct-horse", false, h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	b, err := RunLogin(ctx, "ana@example.org", "correct-horse", false, h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	deps := h.refreshDeps()
	deps.FindAccountByID = func(context.Context, string) (Account, error) {
		acc := h.accounts["ana@example.org"]
		acc.IsActive = false
		return acc, nil
	}
	if _, err := RunRefresh(ctx, a.RefreshToken, deps); !errors.Is(err, errDeactivated) {
		t.Fatalf("expected deactivated, got %v", err)
	}
	if _, ok, _ := h.registry.Lookup(ctx, b.RefreshToken); ok {
		t.Fatal("other tokens of a deactivated owner must be revoked")
	}
}

func TestRunRefreshPicksUpRoleChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tokens, err := RunLogin(ctx, "ana@example.org", "correct-horse", false, h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	deps := h.refreshDeps()
	deps.FindAccountByID = func(context.Context, string) (Account, error) {
		acc := h.accounts["ana@example.org"]
		acc.Role = permission.RoleProfessional
		return acc, nil
	}
	rotated, err := RunRefresh(ctx, tokens.RefreshToken, deps)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.Identity.Role != "professional" {
		t.Fatalf("role = %q", rotated.Identity.Role)
	}
}

func TestRunLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tokens, err := RunLogin(ctx, "ana@example.org", "correct-horse", false, h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	deps := LogoutDeps{VerifyToken: h.jwt.Verify, Registry: h.registry, Errors: LogoutErrors{EngineNotReady: errNotReady, InvalidInput: errBadInput, Internal: errInternal}}
	for i := 0; i < 2; i++ {
		if err := RunLogout(ctx, tokens.RefreshToken, deps); err != nil {
			t.Fatalf("logout %d: %v", i+1, err)
		}
	}
	if err := RunLogout(ctx, "", deps); err != nil {
		t.Fatalf("empty logout: %v", err)
	}
	if _, err := RunRefresh(ctx, tokens.RefreshToken, h.refreshDeps()); !errors.Is(err, errRevoked) {
		t.Fatalf("refresh after logout: %v", err)
	}
}

type failingRegistry struct{}

func (failingRegistry) Consume(context.Context, string) error { return refresh.ErrStoreUnavailable }
func (failingRegistry) RevokeAll(context.Context, string) (int, error) {
	return 0, refresh.ErrStoreUnavailable
}

func TestRunLogoutSwallowsStoreFailures(t *testing.T) {
	var warned bool
	deps := LogoutDeps{
		Registry: failingRegistry{},
		Warn:     func(string, ...any) { warned = true },
		Errors:   LogoutErrors{Internal: errInternal, InvalidInput: errBadInput},
	}
	if err := RunLogout(context.Background(), "some-token", deps); err != nil {
		t.Fatalf("logout must not fail: %v", err)
	}
	if !warned {
		t.Fatal("store failure was not logged")
	}
	if _, err := RunRevokeUser(context.Background(), "u-1", deps); !errors.Is(err, errInternal) {
		t.Fatalf("revoke all: expected internal, got %v", err)
	}
}

func TestRunAuthenticate(t *testing.T) {
	h := newHarness(t)
	tokens, err := RunLogin(context.Background(), "ana@example.org", "correct-horse", false, h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	resolve := func(name string) bool {
		_, ok := permission.ParseRole(name)
		return ok
	}
	deps := AuthenticateDeps{
		VerifyToken: h.jwt.Verify,
		ResolveRole: resolve,
		Errors:      AuthenticateErrors{EngineNotReady: errNotReady, AuthenticationRequired: errBadInput, TokenExpiredOrInvalid: errInvalid},
	}
	id, err := RunAuthenticate(context.Background(), tokens.AccessToken, deps)
	if err != nil || id.UserID != "u-ana" {
		t.Fatalf("authenticate = %+v, %v", id, err)
	}
	if _, err := RunAuthenticate(context.Background(), tokens.RefreshToken, deps); !errors.Is(err, errInvalid) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
	if _, err := RunAuthenticate(context.Background(), "", deps); !errors.Is(err, errBadInput) {
		t.Fatalf("empty token: %v", err)
	}
}

func registerDeps(created map[string]Account) RegisterDeps {
	return RegisterDeps{
		Enabled:          true,
		AllowedRoles:     []permission.Role{permission.RoleElderly, permission.RoleFamily, permission.RoleVolunteer, permission.RoleProfessional},
		EnforceRate:      limiters.NewRegistrationLimiter(rate.New(rate.NewMemoryStore(nil)), limiters.DefaultRegistrationPolicy).Enforce,
		RateLimitedError: func(time.Duration) error { return errLimited },
		CheckPassword: func(p string) error {
			if len(p) < 8 {
				return errBadInput
			}
			return nil
		},
		HashPassword: func(p string) (string, error) { return "pw:" + p, nil },
		CreateAccount: func(_ context.Context, in NewAccountInput) (Account, error) {
			if _, ok := created[in.Email]; ok {
				return Account{}, errExists
			}
			acc := Account{UserID: "u-" + in.Email, Email: in.Email, Role: in.Role, PasswordHash: in.PasswordHash, IsActive: true, ApprovalStatus: in.ApprovalStatus}
			created[in.Email] = acc
			return acc, nil
		},
		Errors: RegisterErrors{EngineNotReady: errNotReady, RegistrationDisabled: errDisabled, InvalidInput: errBadInput, AccountExists: errExists, Internal: errInternal},
	}
}

func TestRunRegister(t *testing.T) {
	created := map[string]Account{}
	deps := registerDeps(created)
	ctx := context.Background()

	acc, err := RunRegister(ctx, RegisterInput{Email: " Rosa@Example.org ", Password: "long-enough", Name: "Rosa", Role: permission.RoleFamily}, deps)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if acc.ApprovalStatus != ApprovalPending || acc.Email != "rosa@example.org" {
		t.Fatalf("unexpected account %+v", acc)
	}

	if _, err := RunRegister(ctx, RegisterInput{Email: "rosa@example.org", Password: "long-enough", Name: "Rosa", Role: permission.RoleFamily}, deps); !errors.Is(err, errExists) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := RunRegister(ctx, RegisterInput{Email: "luis@example.org", Password: "long-enough", Name: "Luis", Role: permission.RoleVolunteer}, deps); err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if _, err := RunRegister(ctx, RegisterInput{Email: "eva@example.org", Password: "long-enough", Name: "Eva", Role: permission.RoleElderly}, deps); !errors.Is(err, errLimited) {
		t.Fatalf("fourth attempt from one ip must be limited, got %v", err)
	}
}

func TestRunRegisterRejectsInput(t *testing.T) {
	ctx := context.Background()
	cases := []RegisterInput{
		{Email: "boss@example.org", Password: "long-enough", Name: "Boss", Role: permission.RoleSuperAdmin},
		{Email: "not-an-email", Password: "long-enough", Name: "X", Role: permission.RoleFamily},
		{Email: "x@example.org", Password: "short", Name: "X", Role: permission.RoleFamily},
	}
	for _, in := range cases {
		deps := registerDeps(map[string]Account{})
		if _, err := RunRegister(ctx, in, deps); !errors.Is(err, errBadInput) {
			t.Fatalf("%+v: expected invalid input, got %v", in, err)
		}
	}

	deps := registerDeps(map[string]Account{})
	deps.Enabled = false
	if _, err := RunRegister(ctx, cases[0], deps); !errors.Is(err, errDisabled) {
		t.Fatalf("disabled: %v", err)
	}
}

func TestRunLoginUpgradesOutdatedHash(t *testing.T) {
	h := newHarness(t)
	deps := h.loginDeps()
	deps.Metrics.PasswordUpgraded = 5
	deps.NeedsRehash = func(hash string) bool { return strings.HasPrefix(hash, "pw:") }
	deps.HashPassword = func(plain string) (string, error) { return "v2:" + plain, nil }
	var stored []string
	deps.UpgradePassword = func(_ context.Context, userID, hash string) error {
		stored = append(stored, userID+"="+hash)
		return nil
	}

	if _, err := RunLogin(context.Background(), "ana@example.org", "correct-horse", false, deps); err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	if len(stored) != 1 || stored[0] != "u-ana=v2:correct-horse" {
		t.Fatalf("upgrade writes = %v", stored)
	}
	if h.counts[5] != 1 {
		t.Fatalf("upgraded metric = %d", h.counts[5])
	}

	if _, err := RunLogin(context.Background(), "ana@example.org", "wrong-horse", false, deps); !errors.Is(err, errBadCreds) {
		t.Fatalf("wrong password: %v", err)
	}
	if len(stored) != 1 {
		t.Fatal("a failed login must not rehash")
	}
}

func TestRunLoginIgnoresUpgradeFailure(t *testing.T) {
	h := newHarness(t)
	deps := h.loginDeps()
	deps.NeedsRehash = func(string) bool { return true }
	deps.HashPassword = func(string) (string, error) { return "", errors.New("entropy exhausted") }
	deps.UpgradePassword = func(context.Context, string, string) error {
		t.Fatal("update must not run without a hash")
		return nil
	}
	var warned int
	deps.Warn = func(string, ...any) { warned++ }

	if _, err := RunLogin(context.Background(), "ana@example.org", "correct-horse", false, deps); err != nil {
		t.Fatalf("upgrade failure must not fail login: %v", err)
	}
	if warned != 1 {
		t.Fatalf("warnings = %d, want 1", warned)
	}
}

func (h *harness) changePasswordDeps(update func(context.Context, string, string) error) ChangePasswordDeps {
	return ChangePasswordDeps{
		FindAccountByID: func(_ context.Context, userID string) (Account, error) {
			for _, acc := range h.accounts {
				if acc.UserID == userID {
					return acc, nil
				}
			}
			return Account{}, errNoUser
		},
		VerifyPassword: func(plain, hash string) (bool, error) { return "pw:"+plain == hash, nil },
		CheckPassword: func(plain string) error {
			if len(plain) < 8 {
				return errors.New("too short")
			}
			return nil
		},
		HashPassword:       func(plain string) (string, error) { return "pw:" + plain, nil },
		UpdatePasswordHash: update,
		RevokeAll:          h.registry.RevokeAll,
		MetricInc:          h.metricInc,
		EmitAudit:          h.emitAudit,
		Metrics:            ChangePasswordMetrics{PasswordChangeSuccess: 20, PasswordChangeInvalidOld: 21},
		Events:             ChangePasswordEvents{PasswordChangeSuccess: "password_change_success", PasswordChangeFailure: "password_change_failure"},
		Errors: ChangePasswordErrors{
			EngineNotReady:     errNotReady,
			Unsupported:        errDisabled,
			InvalidInput:       errBadInput,
			InvalidCredentials: errBadCreds,
			PasswordReuse:      errExists,
			UserNotFound:       errNoUser,
			Internal:           errInternal,
			AccountState:       stateErrors,
		},
	}
}

func TestRunChangePasswordRevokesRefreshTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tokens, err := RunLogin(ctx, "ana@example.org", "correct-horse", false, h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	var written string
	deps := h.changePasswordDeps(func(_ context.Context, userID, hash string) error {
		written = hash
		acc := h.accounts["ana@example.org"]
		acc.PasswordHash = hash
		h.accounts["ana@example.org"] = acc
		return nil
	})
	if err := RunChangePassword(ctx, "u-ana", "correct-horse", "battery-staple", deps); err != nil {
		t.Fatalf("RunChangePassword: %v", err)
	}
	if written != "pw:battery-staple" {
		t.Fatalf("stored hash = %q", written)
	}
	if _, ok, _ := h.registry.Lookup(ctx, tokens.RefreshToken); ok {
		t.Fatal("refresh token must be revoked after a password change")
	}
	if h.counts[20] != 1 {
		t.Fatalf("success metric = %d", h.counts[20])
	}
}

func TestRunChangePasswordFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	writes := 0
	deps := h.changePasswordDeps(func(context.Context, string, string) error {
		writes++
		return nil
	})

	cases := []struct {
		name    string
		userID  string
		oldPW   string
		newPW   string
		wantErr error
	}{
		{"missing input", "u-ana", "", "battery-staple", errBadInput},
		{"unknown user", "u-nobody", "correct-horse", "battery-staple", errNoUser},
		{"pending account", "u-pat", "correct-horse", "battery-staple", errPending},
		{"wrong old password", "u-ana", "wrong-horse", "battery-staple", errBadCreds},
		{"weak new password", "u-ana", "correct-horse", "short", errBadInput},
		{"reused password", "u-ana", "correct-horse", "correct-horse", errExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := RunChangePassword(ctx, tc.userID, tc.oldPW, tc.newPW, deps); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
	if writes != 0 {
		t.Fatalf("hash writes = %d, want 0", writes)
	}
	if h.counts[21] != 1 {
		t.Fatalf("invalid old password metric = %d", h.counts[21])
	}

	unsupported := deps
	unsupported.UpdatePasswordHash = nil
	if err := RunChangePassword(ctx, "u-ana", "correct-horse", "battery-staple", unsupported); !errors.Is(err, errDisabled) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}
