// Command careauth-loadtest measures access-token verification and refresh
// rotation throughput against Redis (or an embedded miniredis).
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	careAuth "github.com/MrEthical07/careAuth"
	"github.com/MrEthical07/careAuth/password"
	"github.com/MrEthical07/careAuth/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const seedPassword = "loadtest-password"

type userState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

// seededStore answers for any email in its map. Every account shares one
// hash so seeding does not pay argon2 per user.
type seededStore struct {
	hasher *password.Hasher
	hash   string
	users  map[string]careAuth.CredentialRecord
}

func (s *seededStore) FindByEmail(_ context.Context, email string) (careAuth.CredentialRecord, error) {
	rec, ok := s.users[strings.ToLower(email)]
	if !ok {
		return careAuth.CredentialRecord{}, careAuth.ErrUserNotFound
	}
	return rec, nil
}

func (s *seededStore) VerifyPassword(plain, hash string) (bool, error) {
	return s.hasher.Verify(plain, hash)
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of accounts to seed and log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (authenticate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, store, err := newEngine(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	roles := permission.Roles()
	for i := 0; i < *users; i++ {
		email := fmt.Sprintf("user-%d@loadtest.invalid", i)
		store.users[email] = careAuth.CredentialRecord{
			UserID:         fmt.Sprintf("u-%d", i),
			Email:          email,
			Role:           roles[i%len(roles)],
			PasswordHash:   store.hash,
			IsActive:       true,
			ApprovalStatus: careAuth.ApprovalApproved,
		}
	}

	states := make([]userState, *users)
	fmt.Printf("logging in %d users...\n", *users)
	startSeed := time.Now()
	for i := range states {
		pair, err := engine.Login(ctx, careAuth.LoginRequest{
			Email:    fmt.Sprintf("user-%d@loadtest.invalid", i),
			Password: seedPassword,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i].access = pair.AccessToken
		states[i].refresh = pair.RefreshToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(*ops, *concurrency, len(states), func(i, idx int) error {
		_, err := engine.Authenticate(ctx, states[idx].access)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, len(states), func(i, idx int) error {
		state := &states[idx]
		state.mu.Lock()
		defer state.mu.Unlock()
		pair, err := engine.Refresh(ctx, state.refresh)
		if err != nil {
			return err
		}
		state.access = pair.AccessToken
		state.refresh = pair.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)
}

func newEngine(client redis.UniversalClient) (*careAuth.Engine, *seededStore, error) {
	cfg := careAuth.DefaultConfig()
	cfg.JWT.Secret = []byte("loadtest-signing-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false

	hasher, err := password.NewHasher(cfg.Password.Hasher())
	if err != nil {
		return nil, nil, err
	}
	hash, err := hasher.Hash(seedPassword)
	if err != nil {
		return nil, nil, err
	}
	store := &seededStore{hasher: hasher, hash: hash, users: make(map[string]careAuth.CredentialRecord)}

	engine, err := careAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithMetricsEnabled(false).
		Build()
	if err != nil {
		return nil, nil, err
	}
	return engine, store, nil
}

// runPhase spreads ops calls of fn over concurrency workers, each picking a
// random user index.
func runPhase(ops, concurrency, users int, fn func(i, idx int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(i, r.Intn(users))
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
