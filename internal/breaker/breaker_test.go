package breaker

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream blew up")

func newTestBreaker(config Config) (*Breaker, *time.Time) {
	b := New("test", config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func fail(b *Breaker) error    { return b.Do(func() error { return errUpstream }) }
func succeed(b *Breaker) error { return b.Do(func() error { return nil }) }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: time.Minute, HalfOpenProbes: 1})

	for i := 0; i < 3; i++ {
		if err := fail(b); !errors.Is(err, errUpstream) {
			t.Fatalf("expected upstream error on call %d, got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after threshold, got %s", b.State())
	}
	if err := succeed(b); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while open, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: time.Minute, HalfOpenProbes: 1})

	fail(b)
	fail(b)
	succeed(b)
	fail(b)
	fail(b)

	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after interleaved success, got %s", b.State())
	}
}

func TestBreaker_HalfOpenAfterCooldownThenCloses(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute, HalfOpenProbes: 2})

	fail(b)
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", b.State())
	}

	*clock = clock.Add(2 * time.Minute)

	// First probe is admitted and succeeds but one more is required.
	if err := succeed(b); err != nil {
		t.Fatalf("expected probe to run, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN after first probe, got %s", b.State())
	}
	if err := succeed(b); err != nil {
		t.Fatalf("expected second probe to run, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after probe quota, got %s", b.State())
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute, HalfOpenProbes: 1})

	fail(b)
	*clock = clock.Add(2 * time.Minute)

	if err := fail(b); !errors.Is(err, errUpstream) {
		t.Fatalf("expected probe to run and fail, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected reopen after failed probe, got %s", b.State())
	}
	if err := succeed(b); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen during renewed cooldown, got %v", err)
	}
}
