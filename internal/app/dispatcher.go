/**
 * @description
 * The dispatcher and the verification-queue consumer: two independent bounded
 * worker pools. The dispatcher pool drains pending payments so long
 * verification retries never starve new-payment dispatch, which runs on its
 * own pool. Pop failures are treated as transient: logged, then retried
 * after a short pause. The loops end only on the shutdown signal.
 */

package app

import (
	"context"
	"errors"
	"time"
)

// popRetryPause is how long a worker backs off after a queue-store error.
const popRetryPause = time.Second

// Start launches the dispatcher and verification worker pools. They run
// until ctx is cancelled; Stop waits for in-flight work to drain.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(s.cfg.ConsumerWorkers)
	for i := 0; i < s.cfg.ConsumerWorkers; i++ {
		go func(worker int) {
			defer s.wg.Done()
			s.dispatchLoop(ctx, worker)
		}(i + 1)
	}

	s.wg.Add(s.cfg.VerificationWorkers)
	for i := 0; i < s.cfg.VerificationWorkers; i++ {
		go func(worker int) {
			defer s.wg.Done()
			s.verificationLoop(ctx, worker)
		}(i + 1)
	}

	s.logger.Info("worker pools started",
		"dispatch_workers", s.cfg.ConsumerWorkers,
		"verification_workers", s.cfg.VerificationWorkers)
}

// Stop blocks until all workers have drained or the grace period elapses.
// Work still in a queue at that point is picked up by the next running
// instance; nothing is lost because state transitions only happen after a
// terminal network outcome.
func (s *Service) Stop(gracePeriod time.Duration) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("worker pools drained")
	case <-time.After(gracePeriod):
		s.logger.Warn("worker pool drain timed out; some attempts may be requeued on restart",
			"grace_period", gracePeriod)
	}
}

func (s *Service) dispatchLoop(ctx context.Context, worker int) {
	for {
		payment, err := s.queue.PopPending(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn("pending queue pop failed; pausing", "worker", worker, "error", err)
			if !sleepCtx(ctx, popRetryPause) {
				return
			}
			continue
		}
		s.runGuarded("dispatch", func() { s.processPayment(ctx, payment) })
	}
}

func (s *Service) verificationLoop(ctx context.Context, worker int) {
	for {
		task, err := s.queue.PopVerification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn("verification queue pop failed; pausing", "worker", worker, "error", err)
			if !sleepCtx(ctx, popRetryPause) {
				return
			}
			continue
		}
		s.runGuarded("verification", func() { s.verify(ctx, task) })
	}
}

// runGuarded isolates one unit of work: a panic loses that attempt, not the
// worker pool.
func (s *Service) runGuarded(loop string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("worker recovered from panic", "loop", loop, "panic", r)
		}
	}()
	fn()
}

// sleepCtx waits for d, returning false when ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
