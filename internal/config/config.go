/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables and an
 * optional .env file, providing a centralized way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the gateway-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DefaultProcessorURL  string `mapstructure:"DEFAULT_PROCESSOR_URL"`
	FallbackProcessorURL string `mapstructure:"FALLBACK_PROCESSOR_URL"`

	QueueBackend   string `mapstructure:"QUEUE_BACKEND"`   // redis | amqp | memory
	SummaryBackend string `mapstructure:"SUMMARY_BACKEND"` // redis | postgres | memory
	RedisURL       string `mapstructure:"REDIS_URL"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	AMQPURL        string `mapstructure:"AMQP_URL"`

	QueueMaxSize        int `mapstructure:"QUEUE_MAX_SIZE"`
	FallbackTriggerSize int `mapstructure:"FALLBACK_TRIGGER_SIZE"`
	ConsumerWorkers     int `mapstructure:"CONSUMER_WORKERS"`
	VerificationWorkers int `mapstructure:"VERIFICATION_WORKERS"`

	StrategyDecisionPeriod time.Duration `mapstructure:"STRATEGY_DECISION_PERIOD"`
	HealthProbePeriod      time.Duration `mapstructure:"HEALTH_PROBE_PERIOD"`
	HealthProbeOffset      time.Duration `mapstructure:"HEALTH_PROBE_OFFSET"`
	HealthLockTTL          time.Duration `mapstructure:"HEALTH_LOCK_TTL"`
	FailureThreshold       int           `mapstructure:"FAILURE_THRESHOLD"`
	HealthDataMaxAge       time.Duration `mapstructure:"HEALTH_DATA_MAX_AGE"`

	VerificationMaxAttempts int           `mapstructure:"VERIFICATION_MAX_ATTEMPTS"`
	VerificationBackoff     time.Duration `mapstructure:"VERIFICATION_BACKOFF"`

	BreakerFailureThreshold int           `mapstructure:"BREAKER_FAILURE_THRESHOLD"`
	BreakerCooldown         time.Duration `mapstructure:"BREAKER_COOLDOWN"`
	BreakerHalfOpenProbes   int           `mapstructure:"BREAKER_HALF_OPEN_PROBES"`

	HTTPConnectTimeout  time.Duration `mapstructure:"HTTP_CONNECT_TIMEOUT"`
	HTTPResponseTimeout time.Duration `mapstructure:"HTTP_RESPONSE_TIMEOUT"`

	ShutdownGracePeriod time.Duration `mapstructure:"SHUTDOWN_GRACE_PERIOD"`

	MemoryReportThresholdMB uint64        `mapstructure:"MEMORY_REPORT_THRESHOLD_MB"`
	MemoryMonitorPeriod     time.Duration `mapstructure:"MEMORY_MONITOR_PERIOD"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in the given path. Missing values fall back to defaults tuned for
// the reference deployment.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "9999")
	viper.SetDefault("DEFAULT_PROCESSOR_URL", "http://payment-processor-default:8080")
	viper.SetDefault("FALLBACK_PROCESSOR_URL", "http://payment-processor-fallback:8080")
	viper.SetDefault("QUEUE_BACKEND", "redis")
	viper.SetDefault("SUMMARY_BACKEND", "redis")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379")
	viper.SetDefault("QUEUE_MAX_SIZE", 50000)
	viper.SetDefault("FALLBACK_TRIGGER_SIZE", 15000)
	viper.SetDefault("CONSUMER_WORKERS", 50)
	viper.SetDefault("VERIFICATION_WORKERS", 10)
	viper.SetDefault("STRATEGY_DECISION_PERIOD", "3s")
	viper.SetDefault("HEALTH_PROBE_PERIOD", "5s")
	viper.SetDefault("HEALTH_PROBE_OFFSET", "1s")
	viper.SetDefault("HEALTH_LOCK_TTL", "4s")
	viper.SetDefault("FAILURE_THRESHOLD", 1)
	viper.SetDefault("HEALTH_DATA_MAX_AGE", "4300ms")
	viper.SetDefault("VERIFICATION_MAX_ATTEMPTS", 3)
	viper.SetDefault("VERIFICATION_BACKOFF", "100ms")
	viper.SetDefault("BREAKER_FAILURE_THRESHOLD", 5)
	viper.SetDefault("BREAKER_COOLDOWN", "10s")
	viper.SetDefault("BREAKER_HALF_OPEN_PROBES", 1)
	viper.SetDefault("HTTP_CONNECT_TIMEOUT", "2s")
	viper.SetDefault("HTTP_RESPONSE_TIMEOUT", "5s")
	viper.SetDefault("SHUTDOWN_GRACE_PERIOD", "10s")
	viper.SetDefault("MEMORY_REPORT_THRESHOLD_MB", 50)
	viper.SetDefault("MEMORY_MONITOR_PERIOD", "5s")

	for _, key := range []string{
		"SERVER_PORT", "DEFAULT_PROCESSOR_URL", "FALLBACK_PROCESSOR_URL",
		"QUEUE_BACKEND", "SUMMARY_BACKEND", "REDIS_URL", "DATABASE_URL", "AMQP_URL",
		"QUEUE_MAX_SIZE", "FALLBACK_TRIGGER_SIZE", "CONSUMER_WORKERS", "VERIFICATION_WORKERS",
		"STRATEGY_DECISION_PERIOD", "HEALTH_PROBE_PERIOD", "HEALTH_PROBE_OFFSET",
		"HEALTH_LOCK_TTL", "FAILURE_THRESHOLD", "HEALTH_DATA_MAX_AGE",
		"VERIFICATION_MAX_ATTEMPTS", "VERIFICATION_BACKOFF",
		"BREAKER_FAILURE_THRESHOLD", "BREAKER_COOLDOWN", "BREAKER_HALF_OPEN_PROBES",
		"HTTP_CONNECT_TIMEOUT", "HTTP_RESPONSE_TIMEOUT", "SHUTDOWN_GRACE_PERIOD",
		"MEMORY_REPORT_THRESHOLD_MB", "MEMORY_MONITOR_PERIOD",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read config file; using environment values", "error", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if err = config.validate(); err != nil {
		return
	}

	return
}

func (c Config) validate() error {
	switch c.QueueBackend {
	case "redis", "amqp", "memory":
	default:
		return fmt.Errorf("invalid QUEUE_BACKEND %q: must be redis, amqp or memory", c.QueueBackend)
	}
	switch c.SummaryBackend {
	case "redis", "postgres", "memory":
	default:
		return fmt.Errorf("invalid SUMMARY_BACKEND %q: must be redis, postgres or memory", c.SummaryBackend)
	}
	if c.QueueBackend == "amqp" && strings.TrimSpace(c.AMQPURL) == "" {
		return fmt.Errorf("AMQP_URL must be set when QUEUE_BACKEND=amqp")
	}
	if c.SummaryBackend == "postgres" && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must be set when SUMMARY_BACKEND=postgres")
	}
	if c.ConsumerWorkers <= 0 {
		return fmt.Errorf("CONSUMER_WORKERS must be positive, got %d", c.ConsumerWorkers)
	}
	if c.VerificationWorkers <= 0 {
		return fmt.Errorf("VERIFICATION_WORKERS must be positive, got %d", c.VerificationWorkers)
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("FAILURE_THRESHOLD must be positive, got %d", c.FailureThreshold)
	}
	if c.VerificationMaxAttempts <= 0 {
		return fmt.Errorf("VERIFICATION_MAX_ATTEMPTS must be positive, got %d", c.VerificationMaxAttempts)
	}
	return nil
}
