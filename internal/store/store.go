/**
 * @description
 * This package defines the storage contracts the core engine depends on and
 * their concrete backings. The engine never assumes a specific store: queues
 * and health state are shared across all running instances through whichever
 * backing is configured, while a channel-backed in-memory variant serves
 * single-instance deployments and tests.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/routepay/gateway-service/internal/domain"
)

// ErrQueueFull is returned by bounded queue backings when admission is denied.
var ErrQueueFull = errors.New("store: pending queue is full")

// QueueStore is the durable, multi-instance-visible FIFO pair holding pending
// payments and verification tasks. Pop operations block until an item is
// available or the context is cancelled; each item is delivered to exactly
// one popper.
type QueueStore interface {
	PushPending(ctx context.Context, payment domain.PaymentRequest) error
	PopPending(ctx context.Context) (domain.PaymentRequest, error)
	PendingDepth(ctx context.Context) (int64, error)
	PushVerification(ctx context.Context, task domain.VerificationTask) error
	PopVerification(ctx context.Context) (domain.VerificationTask, error)
	Purge(ctx context.Context) error
}

// HealthStore is the shared key-value store holding per-upstream health state
// plus a short-lived mutual-exclusion lock so only one process instance
// probes a given upstream at a time.
type HealthStore interface {
	// TryLock acquires the named lock for ttl. It returns false without error
	// when another holder already owns the lock.
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	// Health returns the recorded state, or an optimistic healthy default
	// when no record exists.
	Health(ctx context.Context, upstream domain.Upstream) (domain.HealthState, error)
	SetHealth(ctx context.Context, upstream domain.Upstream, state domain.HealthState) error
}

// SummaryStore records successful payments per upstream and answers
// time-ranged count/total queries. Records sharing a timestamp never
// overwrite each other.
type SummaryStore interface {
	Record(ctx context.Context, upstream domain.Upstream, amount decimal.Decimal, timestamp time.Time) error
	// Range aggregates records whose timestamp falls in [from, to]; nil
	// bounds default to the full range.
	Range(ctx context.Context, upstream domain.Upstream, from, to *time.Time) (domain.Summary, error)
	Purge(ctx context.Context) error
}
