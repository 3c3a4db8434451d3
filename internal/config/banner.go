package config

import "log/slog"

// LogActive dumps the active configuration at startup so a deployment's
// effective settings are auditable from its logs.
func (c Config) LogActive(logger *slog.Logger) {
	logger.Info("active configuration",
		"server_port", c.ServerPort,
		"default_processor_url", c.DefaultProcessorURL,
		"fallback_processor_url", c.FallbackProcessorURL,
		"queue_backend", c.QueueBackend,
		"summary_backend", c.SummaryBackend,
		"queue_max_size", c.QueueMaxSize,
		"fallback_trigger_size", c.FallbackTriggerSize,
		"consumer_workers", c.ConsumerWorkers,
		"verification_workers", c.VerificationWorkers,
		"strategy_decision_period", c.StrategyDecisionPeriod,
		"health_probe_period", c.HealthProbePeriod,
		"health_probe_offset", c.HealthProbeOffset,
		"health_lock_ttl", c.HealthLockTTL,
		"failure_threshold", c.FailureThreshold,
		"health_data_max_age", c.HealthDataMaxAge,
		"verification_max_attempts", c.VerificationMaxAttempts,
		"verification_backoff", c.VerificationBackoff,
		"breaker_failure_threshold", c.BreakerFailureThreshold,
		"breaker_cooldown", c.BreakerCooldown,
		"http_connect_timeout", c.HTTPConnectTimeout,
		"http_response_timeout", c.HTTPResponseTimeout,
		"shutdown_grace_period", c.ShutdownGracePeriod,
		"memory_report_threshold_mb", c.MemoryReportThresholdMB,
		"memory_monitor_period", c.MemoryMonitorPeriod,
	)
}
