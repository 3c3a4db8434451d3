/**
 * @description
 * The consistency verifier. When an attempt's outcome is unknown, the
 * upstream's authoritative record decides the payment's fate: confirmed
 * payments are credited at their original tentative timestamp, payments the
 * upstream never saw are requeued for a fresh attempt, and everything still
 * indeterminate after the bounded retries lands on the persistent verification
 * queue for a later cycle.
 */

package app

import (
	"context"
	"errors"
	"time"

	"github.com/routepay/gateway-service/internal/domain"
	"github.com/routepay/gateway-service/internal/processor"
)

// verify runs the bounded reconciliation procedure for one task. The
// verification-queue consumer re-enters this same procedure, so a task keeps
// cycling until the upstream gives a definitive answer.
func (s *Service) verify(ctx context.Context, task domain.VerificationTask) {
	// Tasks come off a shared queue; a message naming an upstream this
	// instance does not know must not take the worker down with it.
	client, ok := s.clients[task.Upstream]
	if !ok {
		s.logger.Error("verification task names an unknown upstream; dropping",
			"correlation_id", task.Payment.CorrelationID, "upstream", task.Upstream)
		return
	}

	for attempt := 1; attempt <= s.cfg.VerificationMaxAttempts; attempt++ {
		// No point hammering an upstream that probing already shows dead;
		// the queue consumer will retry once it recovers.
		state, err := s.health.Health(ctx, task.Upstream)
		if err == nil && state.ConsecutiveFailures >= s.cfg.FailureThreshold {
			s.logger.Debug("verification aborted; upstream already offline",
				"correlation_id", task.Payment.CorrelationID, "upstream", task.Upstream)
			s.deferVerification(task)
			return
		}

		err = client.CheckPayment(ctx, task.Payment.CorrelationID)
		switch {
		case err == nil:
			s.logger.Debug("verification confirmed payment; crediting at tentative timestamp",
				"correlation_id", task.Payment.CorrelationID, "upstream", task.Upstream, "attempt", attempt)
			s.credit(ctx, task.Upstream, task.Payment, task.TentativeTimestamp)
			return

		case errors.Is(err, processor.ErrNotFound):
			s.requeue(ctx, task.Payment, "not found during verification")
			return

		default:
			if attempt == s.cfg.VerificationMaxAttempts {
				s.logger.Error("verification attempts exhausted; deferring to verification queue",
					"correlation_id", task.Payment.CorrelationID, "attempts", attempt)
				s.deferVerification(task)
				return
			}
			select {
			case <-ctx.Done():
				// Shutdown during backoff: park the task rather than lose it.
				s.deferVerification(task)
				return
			case <-time.After(s.cfg.VerificationBackoff):
			}
		}
	}
}

// deferVerification parks the task on the persistent verification queue. A
// detached context is used so the push still lands during shutdown, and a
// failed push gets one retry after a short pause.
func (s *Service) deferVerification(task domain.VerificationTask) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.queue.PushVerification(ctx, task)
	if err == nil {
		return
	}
	s.logger.Warn("deferral push failed; retrying",
		"correlation_id", task.Payment.CorrelationID, "error", err)
	sleepCtx(ctx, pushRetryPause)
	if err := s.queue.PushVerification(ctx, task); err != nil {
		s.logger.Error("failed to defer verification task",
			"correlation_id", task.Payment.CorrelationID, "error", err)
	}
}
