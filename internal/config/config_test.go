package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9999" {
		t.Errorf("expected default port 9999, got %q", cfg.ServerPort)
	}
	if cfg.QueueBackend != "redis" {
		t.Errorf("expected default queue backend redis, got %q", cfg.QueueBackend)
	}
	if cfg.FallbackTriggerSize != 15000 {
		t.Errorf("expected default fallback trigger size 15000, got %d", cfg.FallbackTriggerSize)
	}
	if cfg.FailureThreshold != 1 {
		t.Errorf("expected default failure threshold 1, got %d", cfg.FailureThreshold)
	}
	if cfg.HealthDataMaxAge != 4300*time.Millisecond {
		t.Errorf("expected default health data max age 4300ms, got %s", cfg.HealthDataMaxAge)
	}
	if cfg.VerificationMaxAttempts != 3 {
		t.Errorf("expected default verification attempts 3, got %d", cfg.VerificationMaxAttempts)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SERVER_PORT", "8088")
	t.Setenv("CONSUMER_WORKERS", "12")
	t.Setenv("STRATEGY_DECISION_PERIOD", "750ms")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8088" {
		t.Errorf("expected port override 8088, got %q", cfg.ServerPort)
	}
	if cfg.ConsumerWorkers != 12 {
		t.Errorf("expected worker override 12, got %d", cfg.ConsumerWorkers)
	}
	if cfg.StrategyDecisionPeriod != 750*time.Millisecond {
		t.Errorf("expected strategy period 750ms, got %s", cfg.StrategyDecisionPeriod)
	}
}

func TestLoadConfig_RejectsUnknownQueueBackend(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("QUEUE_BACKEND", "kafka")

	_, err := LoadConfig(t.TempDir())
	if err == nil {
		t.Fatal("expected error for unknown queue backend")
	}
	if !strings.Contains(err.Error(), "QUEUE_BACKEND") {
		t.Fatalf("expected error to mention QUEUE_BACKEND, got %v", err)
	}
}

func TestLoadConfig_AMQPBackendRequiresURL(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("QUEUE_BACKEND", "amqp")
	t.Setenv("AMQP_URL", "")

	_, err := LoadConfig(t.TempDir())
	if err == nil {
		t.Fatal("expected error when AMQP backend is selected without a URL")
	}
	if !strings.Contains(err.Error(), "AMQP_URL") {
		t.Fatalf("expected error to mention AMQP_URL, got %v", err)
	}
}

func TestLoadConfig_PostgresBackendRequiresURL(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SUMMARY_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig(t.TempDir())
	if err == nil {
		t.Fatal("expected error when postgres backend is selected without a URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected error to mention DATABASE_URL, got %v", err)
	}
}
