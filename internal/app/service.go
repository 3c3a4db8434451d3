/**
 * @description
 * This package contains the core application logic of the gateway-service:
 * the adaptive routing engine that drains the pending queue through a worker
 * pool, executes breaker-gated attempts against whichever upstream is
 * currently preferred, and reconciles ambiguous outcomes through the
 * consistency verifier.
 *
 * This file holds the Service wiring and the per-payment attempt executor.
 * A payment leaves an attempt in exactly one of four ways: credited to a
 * summary, requeued (breaker refused, nothing was sent), discarded (the
 * upstream definitively rejected it), or handed to verification (outcome
 * unknown).
 */

package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/routepay/gateway-service/internal/breaker"
	"github.com/routepay/gateway-service/internal/config"
	"github.com/routepay/gateway-service/internal/domain"
	"github.com/routepay/gateway-service/internal/processor"
	"github.com/routepay/gateway-service/internal/store"
)

// UpstreamClient is the slice of the processor client the engine consumes.
type UpstreamClient interface {
	SubmitPayment(ctx context.Context, payment domain.ProcessorPaymentRequest) error
	CheckPayment(ctx context.Context, correlationID uuid.UUID) error
	CheckHealth(ctx context.Context) (domain.ServiceHealth, error)
}

// CircuitBreaker gates a single upstream's calls.
type CircuitBreaker interface {
	Do(fn func() error) error
}

// Service is the payment routing and reconciliation engine.
type Service struct {
	queue   store.QueueStore
	health  store.HealthStore
	summary store.SummaryStore

	clients  map[domain.Upstream]UpstreamClient
	breakers map[domain.Upstream]CircuitBreaker

	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup

	// preferred holds a domain.Upstream. Written by the strategy decider,
	// read by every attempt. Never shared across instances.
	preferred atomic.Value
}

// NewService wires the engine. Breakers default to the configured thresholds
// when not supplied.
func NewService(
	queue store.QueueStore,
	health store.HealthStore,
	summary store.SummaryStore,
	clients map[domain.Upstream]UpstreamClient,
	cfg config.Config,
	logger *slog.Logger,
) *Service {
	breakers := make(map[domain.Upstream]CircuitBreaker, len(clients))
	for _, upstream := range domain.Upstreams() {
		breakers[upstream] = breaker.New(string(upstream), breaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			Cooldown:         cfg.BreakerCooldown,
			HalfOpenProbes:   cfg.BreakerHalfOpenProbes,
		}, logger)
	}

	s := &Service{
		queue:    queue,
		health:   health,
		summary:  summary,
		clients:  clients,
		breakers: breakers,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	s.preferred.Store(domain.UpstreamDefault)
	return s
}

// Preferred returns the upstream currently favored by the strategy decider.
// A fresh instance starts on default until the first decision cycle runs.
func (s *Service) Preferred() domain.Upstream {
	return s.preferred.Load().(domain.Upstream)
}

// SubmitPayment accepts a payment for asynchronous processing. It never
// blocks on upstream calls.
func (s *Service) SubmitPayment(ctx context.Context, payment domain.PaymentRequest) error {
	return s.queue.PushPending(ctx, payment)
}

// GetSummary aggregates both upstreams' successful payments over [from, to].
func (s *Service) GetSummary(ctx context.Context, from, to *time.Time) (domain.SummaryResponse, error) {
	var response domain.SummaryResponse

	defaultSummary, err := s.summary.Range(ctx, domain.UpstreamDefault, from, to)
	if err != nil {
		return response, err
	}
	fallbackSummary, err := s.summary.Range(ctx, domain.UpstreamFallback, from, to)
	if err != nil {
		return response, err
	}

	response.Default = defaultSummary
	response.Fallback = fallbackSummary
	return response, nil
}

// PurgeAll clears the queues and the summaries. Administrative use only.
func (s *Service) PurgeAll(ctx context.Context) error {
	if err := s.queue.Purge(ctx); err != nil {
		return err
	}
	return s.summary.Purge(ctx)
}

// processPayment executes one routing decision and one breaker-gated attempt
// for the payment, then classifies the outcome.
func (s *Service) processPayment(ctx context.Context, payment domain.PaymentRequest) {
	target := s.resolveTarget(ctx)

	request := domain.ProcessorPaymentRequest{
		CorrelationID: payment.CorrelationID,
		Amount:        payment.Amount,
		RequestedAt:   s.now().UTC().Truncate(time.Millisecond),
	}

	err := s.breakers[target].Do(func() error {
		return s.clients[target].SubmitPayment(ctx, request)
	})

	switch {
	case err == nil:
		s.credit(ctx, target, payment, request.RequestedAt)

	case errors.Is(err, breaker.ErrOpen):
		// No upstream was contacted; the requeued payment gets a fresh
		// timestamp on its next attempt.
		s.requeue(ctx, payment, "circuit breaker for "+string(target)+" open")

	case processor.IsRejection(err):
		s.logger.Error("payment definitively rejected; discarding",
			"correlation_id", payment.CorrelationID, "upstream", target, "error", err)

	default:
		// Server fault, network fault or anything unexpected: the upstream
		// may have processed the payment despite the failure we saw, so
		// neither a blind retry nor a discard is safe.
		s.logger.Debug("attempt outcome unknown; verifying consistency",
			"correlation_id", payment.CorrelationID, "upstream", target, "error", err)
		s.verify(ctx, domain.VerificationTask{
			Payment:            payment,
			Upstream:           target,
			TentativeTimestamp: request.RequestedAt,
		})
	}
}

// resolveTarget starts from the preferred upstream and applies the
// backpressure override: when default is preferred but the pending queue has
// grown past the trigger size, route to fallback, provided fallback's health
// is below the failure threshold. The override never goes the other way.
func (s *Service) resolveTarget(ctx context.Context) domain.Upstream {
	target := s.Preferred()
	if target != domain.UpstreamDefault {
		return target
	}

	depth, err := s.queue.PendingDepth(ctx)
	if err != nil || depth <= int64(s.cfg.FallbackTriggerSize) {
		return target
	}

	fallbackState, err := s.health.Health(ctx, domain.UpstreamFallback)
	if err != nil || fallbackState.ConsecutiveFailures >= s.cfg.FailureThreshold {
		return target
	}

	s.logger.Debug("pending queue over trigger size; overriding route to fallback", "depth", depth)
	return domain.UpstreamFallback
}

func (s *Service) credit(ctx context.Context, upstream domain.Upstream, payment domain.PaymentRequest, timestamp time.Time) {
	if err := s.summary.Record(ctx, upstream, payment.Amount, timestamp); err != nil {
		s.logger.Error("failed to record successful payment",
			"correlation_id", payment.CorrelationID, "upstream", upstream, "error", err)
	}
}

// pushRetryPause separates the two push attempts when a queue write fails.
const pushRetryPause = 100 * time.Millisecond

// requeue puts the payment back at the producer end of the pending queue, so
// it waits behind the current backlog before its next attempt. A failed push
// is retried once after a short pause before the payment is given up on.
func (s *Service) requeue(ctx context.Context, payment domain.PaymentRequest, reason string) {
	s.logger.Debug("requeueing payment", "correlation_id", payment.CorrelationID, "reason", reason)
	err := s.queue.PushPending(ctx, payment)
	if err == nil {
		return
	}
	s.logger.Warn("requeue push failed; retrying",
		"correlation_id", payment.CorrelationID, "error", err)
	sleepCtx(ctx, pushRetryPause)
	if err := s.queue.PushPending(ctx, payment); err != nil {
		s.logger.Error("failed to requeue payment",
			"correlation_id", payment.CorrelationID, "error", err)
	}
}
