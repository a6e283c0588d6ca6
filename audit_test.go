package careAuth

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/careAuth/permission"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// collect drains up to max events or until timeout.
func (s *captureSink) collect(max int, timeout time.Duration) []AuditEvent {
	events := make([]AuditEvent, 0, max)
	deadline := time.After(timeout)
	for len(events) < max {
		select {
		case ev := <-s.events:
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func auditTestConfig(bufferSize int, dropIfFull bool) Config {
	cfg := engineTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = bufferSize
	cfg.Audit.DropIfFull = dropIfFull
	return cfg
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)

	sink := &countingSink{}
	cfg := engineTestConfig()
	cfg.Audit.Enabled = false
	engine := newTestEngine(t, testEngineOptions{cfg: &cfg, store: store, sink: sink})

	_, _ = engine.Login(WithClientIP(context.Background(), "203.0.113.1"), LoginRequest{Email: "ana@example.org", Password: "wrong horse"})
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)

	sink := newCaptureSink(8)
	cfg := auditTestConfig(16, true)
	engine := newTestEngine(t, testEngineOptions{cfg: &cfg, store: store, sink: sink})

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.33"), "care-tablet/2.1")
	_, _ = engine.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "super-secret-password"})

	select {
	case ev := <-sink.events:
		if ev.EventType != auditEventLoginFailure {
			t.Fatalf("expected %s, got %q", auditEventLoginFailure, ev.EventType)
		}
		if ev.IP != "198.51.100.33" || ev.UserAgent != "care-tablet/2.1" {
			t.Fatalf("unexpected request fields %+v", ev)
		}
		if ev.Error != string(auditErrInvalidCredentials) {
			t.Fatalf("expected error code %q, got %q", auditErrInvalidCredentials, ev.Error)
		}
		for _, v := range ev.Metadata {
			if v == "super-secret-password" {
				t.Fatal("sensitive password leaked in metadata")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected audit event to be received")
	}
}

func TestAuditRateLimitEvents(t *testing.T) {
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)

	sink := newCaptureSink(32)
	cfg := auditTestConfig(32, false)
	cfg.RateLimit.LoginMaxAttempts = 1
	engine := newTestEngine(t, testEngineOptions{cfg: &cfg, store: store, sink: sink})

	ctx := WithClientIP(context.Background(), "192.0.2.10")
	_, _ = engine.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "wrong horse"})
	_, _ = engine.Login(ctx, LoginRequest{Email: "ana@example.org", Password: "wrong horse"})

	seen := map[string]bool{}
	for _, ev := range sink.collect(3, 2*time.Second) {
		seen[ev.EventType] = true
	}
	if !seen[auditEventLoginRateLimited] || !seen[auditEventRateLimitTriggered] {
		t.Fatalf("missing rate limit events, saw %v", seen)
	}
}

func TestAuditStalledSinkDoesNotBlockLogin(t *testing.T) {
	store := newMemCredentialStore(t)
	store.add(t, "ana@example.org", "correct horse", permission.RoleVolunteer, ApprovalApproved, true)

	sink := newGateSink()
	cfg := auditTestConfig(1, true)
	engine := newTestEngine(t, testEngineOptions{cfg: &cfg, store: store, sink: sink})
	t.Cleanup(func() { close(sink.gate) })

	done := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i < 4 && err == nil; i++ {
			_, err = engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("login blocked on a stalled audit sink")
	}
	if engine.AuditDropped() == 0 {
		t.Fatal("expected dropped audit events")
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		UserID:    "u1",
		Role:      permission.RoleFamily.String(),
		IP:        "127.0.0.1",
		Success:   true,
	})

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"user_id\":\"u1\"") || !buf.Contains("\"role\":\"family\"") {
		t.Fatal("expected JSON log line to contain user id and role")
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	store := newMemCredentialStore(t)
	rec := store.add(t, "ana@example.org", "correct horse", permission.RoleProfessional, ApprovalApproved, true)

	sink := newCaptureSink(32)
	cfg := auditTestConfig(32, false)
	engine := newTestEngine(t, testEngineOptions{cfg: &cfg, store: store, sink: sink})

	pair, err := engine.Login(context.Background(), LoginRequest{Email: "ana@example.org", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	next, err := engine.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := engine.Logout(context.Background(), next.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	needles := []string{"correct horse", pair.AccessToken, pair.RefreshToken, next.RefreshToken, rec.PasswordHash}

	events := sink.collect(3, 2*time.Second)
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata: %q", needle)
				}
			}
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}
