/**
 * @description
 * The health monitor and the strategy decider. The monitor probes each
 * upstream on its own schedule under a short-TTL shared lock, so across all
 * running instances at most one probe hits a given upstream per cycle. The
 * decider periodically recomputes the preferred upstream from both health
 * states; its output is a routing hint only, and the circuit breaker remains
 * the last line of defense when nothing is reliable.
 */

package app

import (
	"context"
	"time"

	"github.com/routepay/gateway-service/internal/domain"
)

// ProbeHealth runs one health-monitor cycle for the upstream. Losing the
// lock race means another instance is probing; the cycle is a no-op. There
// are no in-probe retries: the next scheduled cycle is the retry.
func (s *Service) ProbeHealth(ctx context.Context, upstream domain.Upstream) {
	acquired, err := s.health.TryLock(ctx, string(upstream), s.cfg.HealthLockTTL)
	if err != nil {
		s.logger.Warn("health lock acquisition failed", "upstream", upstream, "error", err)
		return
	}
	if !acquired {
		return
	}

	current, err := s.health.Health(ctx, upstream)
	if err != nil {
		// Reads fall back to the optimistic default rather than stalling the
		// probe cycle.
		s.logger.Warn("health state read failed", "upstream", upstream, "error", err)
		current = domain.HealthyState()
	}

	serviceHealth, err := s.clients[upstream].CheckHealth(ctx)
	if err == nil && !serviceHealth.Failing {
		s.setHealth(ctx, upstream, domain.HealthState{ConsecutiveFailures: 0, LastCheckedAt: s.now()})
		if current.ConsecutiveFailures > 0 {
			s.logger.Info("upstream recovered", "upstream", upstream,
				"min_response_time_ms", serviceHealth.MinResponseTime)
		}
		return
	}

	next := domain.HealthState{ConsecutiveFailures: current.ConsecutiveFailures + 1, LastCheckedAt: s.now()}
	s.setHealth(ctx, upstream, next)
	if err != nil {
		s.logger.Error("health probe could not reach upstream",
			"upstream", upstream, "consecutive_failures", next.ConsecutiveFailures, "error", err)
	} else {
		s.logger.Warn("upstream reporting failure",
			"upstream", upstream, "consecutive_failures", next.ConsecutiveFailures,
			"min_response_time_ms", serviceHealth.MinResponseTime)
	}
}

func (s *Service) setHealth(ctx context.Context, upstream domain.Upstream, state domain.HealthState) {
	if err := s.health.SetHealth(ctx, upstream, state); err != nil {
		s.logger.Error("health state write failed", "upstream", upstream, "error", err)
	}
}

// DecideStrategy recomputes the preferred upstream. An upstream is reliable
// only when its failure streak is below the threshold AND its health data is
// recent enough to trust. Preference order: reliable default, else reliable
// fallback, else default.
func (s *Service) DecideStrategy(ctx context.Context) {
	current := s.Preferred()
	now := s.now()

	defaultState, err := s.health.Health(ctx, domain.UpstreamDefault)
	if err != nil {
		defaultState = domain.HealthyState()
	}
	fallbackState, err := s.health.Health(ctx, domain.UpstreamFallback)
	if err != nil {
		fallbackState = domain.HealthyState()
	}

	defaultReliable := defaultState.Reliable(s.cfg.FailureThreshold, s.cfg.HealthDataMaxAge, now)
	fallbackReliable := fallbackState.Reliable(s.cfg.FailureThreshold, s.cfg.HealthDataMaxAge, now)

	switch {
	case defaultReliable:
		s.preferred.Store(domain.UpstreamDefault)
		if current != domain.UpstreamDefault {
			s.logger.Warn("strategy: default upstream reliable; routing preferentially to default")
		}
	case fallbackReliable:
		s.preferred.Store(domain.UpstreamFallback)
		if current != domain.UpstreamFallback {
			s.logger.Warn("strategy: default upstream unreliable; routing preferentially to fallback")
		}
	default:
		s.preferred.Store(domain.UpstreamDefault)
		if current != domain.UpstreamDefault {
			s.logger.Error("strategy: no upstream reliable; holding preference on default")
		}
	}
}

// healthProbeJob adapts ProbeHealth to a no-argument cron job.
func (s *Service) healthProbeJob(ctx context.Context, upstream domain.Upstream) func() {
	return func() {
		probeCtx, cancel := context.WithTimeout(ctx, s.cfg.HTTPResponseTimeout+time.Second)
		defer cancel()
		s.ProbeHealth(probeCtx, upstream)
	}
}
