package careAuth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/careAuth/permission"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)
	engine := newTestEngine(t, testEngineOptions{store: store, redis: rdb})

	pair, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrTokenRevoked):
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", success)
	}
}

func TestRefreshConcurrencyMemoryBackend(t *testing.T) {
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleFamily, ApprovalApproved, true)
	engine := newTestEngine(t, testEngineOptions{store: store})

	pair, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			next, err := engine.Refresh(context.Background(), pair.RefreshToken)
			if err != nil {
				return
			}
			mu.Lock()
			winners = append(winners, next.RefreshToken)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected one winner, got %d", len(winners))
	}
	if _, err := engine.Refresh(context.Background(), winners[0]); err != nil {
		t.Fatalf("winner's token should rotate: %v", err)
	}
	snap := engine.MetricsSnapshot()
	if got := snap.Counters[MetricRefreshFailure] + snap.Counters[MetricRefreshReuseDetected]; got == 0 {
		t.Fatal("losing rotations were not counted")
	}
}
