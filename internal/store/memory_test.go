package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routepay/gateway-service/internal/domain"
)

func TestMemoryQueueStore_PushPopOrder(t *testing.T) {
	q := NewMemoryQueueStore(10)
	ctx := context.Background()

	first := domain.PaymentRequest{CorrelationID: uuid.New(), Amount: decimal.NewFromFloat(19.90)}
	second := domain.PaymentRequest{CorrelationID: uuid.New(), Amount: decimal.NewFromFloat(5.50)}

	if err := q.PushPending(ctx, first); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.PushPending(ctx, second); err != nil {
		t.Fatalf("push: %v", err)
	}

	depth, err := q.PendingDepth(ctx)
	if err != nil || depth != 2 {
		t.Fatalf("expected depth 2, got %d (err %v)", depth, err)
	}

	got, err := q.PopPending(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got.CorrelationID != first.CorrelationID {
		t.Errorf("expected FIFO order, got %s first", got.CorrelationID)
	}
}

func TestMemoryQueueStore_RefusesWhenFull(t *testing.T) {
	q := NewMemoryQueueStore(1)
	ctx := context.Background()

	if err := q.PushPending(ctx, domain.PaymentRequest{CorrelationID: uuid.New()}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.PushPending(ctx, domain.PaymentRequest{CorrelationID: uuid.New()}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestMemoryQueueStore_PopHonorsCancellation(t *testing.T) {
	q := NewMemoryQueueStore(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.PopPending(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock on cancellation")
	}
}

func TestMemoryHealthStore_DefaultsHealthy(t *testing.T) {
	h := NewMemoryHealthStore()
	state, err := h.Health(context.Background(), domain.UpstreamDefault)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("expected zero failures by default, got %d", state.ConsecutiveFailures)
	}
	if time.Since(state.LastCheckedAt) > time.Minute {
		t.Errorf("expected recent default lastCheckedAt, got %s", state.LastCheckedAt)
	}
}

func TestMemoryHealthStore_LockIsExclusiveUntilTTL(t *testing.T) {
	h := NewMemoryHealthStore()
	ctx := context.Background()

	acquired, err := h.TryLock(ctx, "probe:default", 50*time.Millisecond)
	if err != nil || !acquired {
		t.Fatalf("expected first lock acquisition, got %t (err %v)", acquired, err)
	}
	acquired, err = h.TryLock(ctx, "probe:default", 50*time.Millisecond)
	if err != nil || acquired {
		t.Fatalf("expected second acquisition to fail while held, got %t (err %v)", acquired, err)
	}

	time.Sleep(60 * time.Millisecond)
	acquired, err = h.TryLock(ctx, "probe:default", 50*time.Millisecond)
	if err != nil || !acquired {
		t.Fatalf("expected acquisition after TTL expiry, got %t (err %v)", acquired, err)
	}
}

func TestMemorySummaryStore_RangeBounds(t *testing.T) {
	s := NewMemorySummaryStore()
	ctx := context.Background()

	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	amounts := []float64{10.00, 19.90, 5.10}
	for i, amount := range amounts {
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := s.Record(ctx, domain.UpstreamDefault, decimal.NewFromFloat(amount), ts); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	// A record on the other upstream must not leak into default's range.
	if err := s.Record(ctx, domain.UpstreamFallback, decimal.NewFromFloat(100), base); err != nil {
		t.Fatalf("record: %v", err)
	}

	full, err := s.Range(ctx, domain.UpstreamDefault, nil, nil)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if full.TotalRequests != 3 {
		t.Errorf("expected 3 records over full range, got %d", full.TotalRequests)
	}
	if !full.TotalAmount.Equal(decimal.NewFromFloat(35.00)) {
		t.Errorf("expected total 35.00, got %s", full.TotalAmount)
	}

	from := base.Add(30 * time.Second)
	to := base.Add(90 * time.Second)
	window, err := s.Range(ctx, domain.UpstreamDefault, &from, &to)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if window.TotalRequests != 1 {
		t.Errorf("expected 1 record in window, got %d", window.TotalRequests)
	}
	if !window.TotalAmount.Equal(decimal.NewFromFloat(19.90)) {
		t.Errorf("expected window total 19.90, got %s", window.TotalAmount)
	}
}

func TestMemorySummaryStore_IdenticalTimestampsBothCounted(t *testing.T) {
	s := NewMemorySummaryStore()
	ctx := context.Background()
	ts := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Record(ctx, domain.UpstreamFallback, decimal.NewFromFloat(1.25), ts); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, domain.UpstreamFallback, decimal.NewFromFloat(1.25), ts); err != nil {
		t.Fatalf("record: %v", err)
	}

	summary, err := s.Range(ctx, domain.UpstreamFallback, &ts, &ts)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if summary.TotalRequests != 2 {
		t.Errorf("expected both identical-timestamp records counted, got %d", summary.TotalRequests)
	}
	if !summary.TotalAmount.Equal(decimal.NewFromFloat(2.50)) {
		t.Errorf("expected total 2.50, got %s", summary.TotalAmount)
	}
}

func TestMemorySummaryStore_PurgeClearsBothUpstreams(t *testing.T) {
	s := NewMemorySummaryStore()
	ctx := context.Background()
	ts := time.Now()

	_ = s.Record(ctx, domain.UpstreamDefault, decimal.NewFromFloat(3), ts)
	_ = s.Record(ctx, domain.UpstreamFallback, decimal.NewFromFloat(4), ts)

	if err := s.Purge(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	for _, upstream := range domain.Upstreams() {
		summary, err := s.Range(ctx, upstream, nil, nil)
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		if summary.TotalRequests != 0 {
			t.Errorf("expected empty summary for %s after purge, got %d", upstream, summary.TotalRequests)
		}
	}
}
