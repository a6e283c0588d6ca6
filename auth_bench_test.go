package careAuth

import (
	"context"
	"testing"

	"github.com/MrEthical07/careAuth/permission"
)

func newBenchmarkEngine(b *testing.B) *Engine {
	b.Helper()
	_, rdb := newTestRedis(b)
	store := newMemCredentialStore(b)
	store.add(b, "ana@example.org", "correct horse", permission.RoleProfessional, ApprovalApproved, true)
	cfg := engineTestConfig()
	cfg.Metrics.Enabled = false
	return newTestEngine(b, testEngineOptions{cfg: &cfg, store: store, redis: rdb})
}

func BenchmarkAuthenticate(b *testing.B) {
	engine := newBenchmarkEngine(b)

	pair, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Authenticate(context.Background(), pair.AccessToken); err != nil {
			b.Fatalf("authenticate failed: %v", err)
		}
	}
}

func BenchmarkAuthorize(b *testing.B) {
	engine := newBenchmarkEngine(b)

	pair, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}
	rule := AccessRule{Permissions: []permission.Permission{permission.ReportsExport}}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Authorize(context.Background(), pair.AccessToken, rule); err != nil {
			b.Fatalf("authorize failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine := newBenchmarkEngine(b)

	pair, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}
	refresh := pair.RefreshToken

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := engine.Refresh(context.Background(), refresh)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		refresh = next.RefreshToken
	}
}

func BenchmarkLogin(b *testing.B) {
	engine := newBenchmarkEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"}); err != nil {
			b.Fatalf("login failed: %v", err)
		}
	}
}
