/**
 * @description
 * Cron scheduler setup for the periodic tasks: the two health probes, the
 * strategy decision, and the memory monitor. The fallback probe is
 * registered after a configurable offset so the two probes never fire as a
 * synchronized burst.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/routepay/gateway-service/internal/domain"
)

// Scheduler manages the periodic jobs.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	memmon  *MemoryMonitor
	logger  *slog.Logger
}

// NewScheduler creates a scheduler whose jobs recover from panics instead of
// killing the process.
func NewScheduler(service *Service, memmon *MemoryMonitor, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger))),
		service: service,
		memmon:  memmon,
		logger:  logger,
	}
}

// Start registers the jobs and starts the scheduler. ctx bounds the work a
// job does once shutdown begins.
func (s *Scheduler) Start(ctx context.Context) {
	cfg := s.service.cfg

	s.add(every(cfg.HealthProbePeriod), s.service.healthProbeJob(ctx, domain.UpstreamDefault), "default health probe")
	s.add(every(cfg.StrategyDecisionPeriod), func() { s.service.DecideStrategy(ctx) }, "strategy decision")
	s.add(every(cfg.MemoryMonitorPeriod), s.memmon.Report, "memory monitor")

	// Stagger the fallback probe so the two upstreams are never hit in the
	// same instant.
	time.AfterFunc(cfg.HealthProbeOffset, func() {
		if ctx.Err() != nil {
			return
		}
		s.add(every(cfg.HealthProbePeriod), s.service.healthProbeJob(ctx, domain.UpstreamFallback), "fallback health probe")
	})

	s.cron.Start()
	s.logger.Info("periodic tasks scheduled",
		"health_probe_period", cfg.HealthProbePeriod,
		"health_probe_offset", cfg.HealthProbeOffset,
		"strategy_decision_period", cfg.StrategyDecisionPeriod,
		"memory_monitor_period", cfg.MemoryMonitorPeriod)
}

// Stop gracefully stops the scheduler and returns a context that completes
// when running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) add(spec string, job func(), name string) {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "spec", spec, "error", err)
		return
	}
	s.logger.Info("scheduled job", "job", name, "spec", spec)
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
