package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/avelor/identity-auth/internal/core/domain"
)

func TestReaper_SweepDeletesOnlyExpired(t *testing.T) {
	tokens := newMemoryTokenStore()

	now := time.Now().UTC()
	tokens.tokens["expired-1"] = domain.RefreshToken{TokenHash: "expired-1", AccountID: "acct-1", ExpiresAt: now.Add(-time.Hour)}
	tokens.tokens["expired-2"] = domain.RefreshToken{TokenHash: "expired-2", AccountID: "acct-1", ExpiresAt: now.Add(-time.Minute)}
	tokens.tokens["expired-3"] = domain.RefreshToken{TokenHash: "expired-3", AccountID: "acct-2", ExpiresAt: now.Add(-time.Second)}
	tokens.tokens["live-1"] = domain.RefreshToken{TokenHash: "live-1", AccountID: "acct-1", ExpiresAt: now.Add(time.Hour)}
	tokens.tokens["live-2"] = domain.RefreshToken{TokenHash: "live-2", AccountID: "acct-2", ExpiresAt: now.Add(24 * time.Hour)}

	reaper, err := NewReaper("refresh_tokens", 24*time.Hour, tokens.DeleteExpired, nil)
	if err != nil {
		t.Fatalf("NewReaper: %v", err)
	}
	reaper.WithClock(func() time.Time { return now })

	deleted, err := reaper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deletions, got %d", deleted)
	}
	if len(tokens.tokens) != 2 {
		t.Fatalf("expected 2 live tokens to remain, got %d", len(tokens.tokens))
	}
}

func TestReaper_SweepErrorIsNotFatal(t *testing.T) {
	calls := 0
	sweep := func(context.Context, time.Time) (int, error) {
		calls++
		if calls == 1 {
			return 0, errStorageDown
		}
		return 4, nil
	}

	reaper, err := NewReaper("verification_codes", 30*time.Minute, sweep, nil)
	if err != nil {
		t.Fatalf("NewReaper: %v", err)
	}

	if _, err := reaper.Sweep(context.Background()); err == nil {
		t.Fatalf("expected first sweep to report the storage error")
	}

	deleted, err := reaper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("expected the next sweep to recover, got %v", err)
	}
	if deleted != 4 {
		t.Fatalf("expected 4 deletions on recovery, got %d", deleted)
	}
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	swept := make(chan struct{}, 8)
	sweep := func(context.Context, time.Time) (int, error) {
		swept <- struct{}{}
		return 0, nil
	}

	reaper, err := NewReaper("refresh_tokens", 5*time.Millisecond, sweep, nil)
	if err != nil {
		t.Fatalf("NewReaper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Fatalf("expected at least one sweep before cancel")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return after cancellation")
	}
}

func TestReaper_RejectsInvalidConfiguration(t *testing.T) {
	sweep := func(context.Context, time.Time) (int, error) { return 0, nil }

	if _, err := NewReaper("", time.Hour, sweep, nil); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if _, err := NewReaper("tokens", 0, sweep, nil); err == nil {
		t.Fatalf("expected error for non-positive interval")
	}
	if _, err := NewReaper("tokens", time.Hour, nil, nil); err == nil {
		t.Fatalf("expected error for missing sweep function")
	}
}
