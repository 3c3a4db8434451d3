package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/routepay/gateway-service/internal/domain"
)

// scriptedQueue serves a fixed sequence of pop results, then blocks like a
// real queue with nothing to deliver.
type scriptedQueue struct {
	queueStub
	popMu sync.Mutex
	pops  []popStep
}

type popStep struct {
	payment domain.PaymentRequest
	err     error
}

func (q *scriptedQueue) PopPending(ctx context.Context) (domain.PaymentRequest, error) {
	q.popMu.Lock()
	if len(q.pops) > 0 {
		step := q.pops[0]
		q.pops = q.pops[1:]
		q.popMu.Unlock()
		return step.payment, step.err
	}
	q.popMu.Unlock()
	<-ctx.Done()
	return domain.PaymentRequest{}, ctx.Err()
}

func newWorkerService(queue *scriptedQueue) (*Service, *summaryStub) {
	cfg := testConfig()
	summary := &summaryStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(queue, newHealthStub(), summary, map[domain.Upstream]UpstreamClient{
		domain.UpstreamDefault:  &clientStub{},
		domain.UpstreamFallback: &clientStub{},
	}, cfg, logger)
	return service, summary
}

func TestStart_PopFailureIsPausedThenRetried(t *testing.T) {
	payment := testPayment()
	queue := &scriptedQueue{pops: []popStep{
		{err: errors.New("queue store unavailable")},
		{payment: payment},
	}}
	service, summary := newWorkerService(queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := time.Now()
	service.Start(ctx)

	// The worker must survive the pop error, pause, and process the payment
	// delivered on the next pop.
	deadline := time.After(popRetryPause + 3*time.Second)
	for len(summary.recorded()) == 0 {
		select {
		case <-deadline:
			t.Fatal("payment was never processed after the pop failure")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if elapsed := time.Since(started); elapsed < popRetryPause {
		t.Errorf("worker retried after %s, before the %s pause", elapsed, popRetryPause)
	}
	if !summary.recorded()[0].amount.Equal(payment.Amount) {
		t.Error("processed payment does not match the delivered one")
	}

	cancel()
	service.Stop(time.Second)
}

func TestStop_DrainsPromptlyOnceCancelled(t *testing.T) {
	queue := &scriptedQueue{}
	service, _ := newWorkerService(queue)

	ctx, cancel := context.WithCancel(context.Background())
	service.Start(ctx)
	cancel()

	started := time.Now()
	service.Stop(5 * time.Second)
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Errorf("drained pool took %s to stop", elapsed)
	}
}

func TestStop_ReturnsAfterGracePeriodWithBlockedWorkers(t *testing.T) {
	queue := &scriptedQueue{}
	service, _ := newWorkerService(queue)

	// Workers stay blocked on empty pops: the context is only cancelled
	// after Stop has given up on them.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	gracePeriod := 100 * time.Millisecond
	started := time.Now()
	service.Stop(gracePeriod)
	elapsed := time.Since(started)
	if elapsed < gracePeriod {
		t.Errorf("Stop returned after %s, before the %s grace period", elapsed, gracePeriod)
	}
	if elapsed > gracePeriod+time.Second {
		t.Errorf("Stop took %s, well past the %s grace period", elapsed, gracePeriod)
	}
}
