/**
 * @description
 * In-memory backings for all three store contracts. They serve
 * single-instance deployments that want no external dependencies, and they
 * are the stores the engine tests run against. The queue backing is the only
 * one that honors the configured maximum size: pushes beyond it are refused
 * with ErrQueueFull.
 */

package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/routepay/gateway-service/internal/domain"
)

// MemoryQueueStore implements QueueStore on buffered channels.
type MemoryQueueStore struct {
	pending       chan domain.PaymentRequest
	verifications chan domain.VerificationTask
}

func NewMemoryQueueStore(maxSize int) *MemoryQueueStore {
	if maxSize <= 0 {
		maxSize = 50000
	}
	return &MemoryQueueStore{
		pending:       make(chan domain.PaymentRequest, maxSize),
		verifications: make(chan domain.VerificationTask, maxSize),
	}
}

func (s *MemoryQueueStore) PushPending(ctx context.Context, payment domain.PaymentRequest) error {
	select {
	case s.pending <- payment:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *MemoryQueueStore) PopPending(ctx context.Context) (domain.PaymentRequest, error) {
	select {
	case <-ctx.Done():
		return domain.PaymentRequest{}, ctx.Err()
	case payment := <-s.pending:
		return payment, nil
	}
}

func (s *MemoryQueueStore) PendingDepth(ctx context.Context) (int64, error) {
	return int64(len(s.pending)), nil
}

func (s *MemoryQueueStore) PushVerification(ctx context.Context, task domain.VerificationTask) error {
	select {
	case s.verifications <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *MemoryQueueStore) PopVerification(ctx context.Context) (domain.VerificationTask, error) {
	select {
	case <-ctx.Done():
		return domain.VerificationTask{}, ctx.Err()
	case task := <-s.verifications:
		return task, nil
	}
}

func (s *MemoryQueueStore) Purge(ctx context.Context) error {
	for {
		select {
		case <-s.pending:
		case <-s.verifications:
		default:
			return nil
		}
	}
}

// MemoryHealthStore implements HealthStore with a mutex-guarded map and
// expiring locks.
type MemoryHealthStore struct {
	mu     sync.Mutex
	states map[domain.Upstream]domain.HealthState
	locks  map[string]time.Time
}

func NewMemoryHealthStore() *MemoryHealthStore {
	return &MemoryHealthStore{
		states: make(map[domain.Upstream]domain.HealthState),
		locks:  make(map[string]time.Time),
	}
}

func (s *MemoryHealthStore) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if expiry, held := s.locks[name]; held && now.Before(expiry) {
		return false, nil
	}
	s.locks[name] = now.Add(ttl)
	return true, nil
}

func (s *MemoryHealthStore) Health(ctx context.Context, upstream domain.Upstream) (domain.HealthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[upstream]
	if !ok {
		return domain.HealthyState(), nil
	}
	return state, nil
}

func (s *MemoryHealthStore) SetHealth(ctx context.Context, upstream domain.Upstream, state domain.HealthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[upstream] = state
	return nil
}

type summaryRecord struct {
	amount    decimal.Decimal
	timestamp time.Time
}

// MemorySummaryStore implements SummaryStore with a mutex-guarded slice per
// upstream.
type MemorySummaryStore struct {
	mu      sync.Mutex
	records map[domain.Upstream][]summaryRecord
}

func NewMemorySummaryStore() *MemorySummaryStore {
	return &MemorySummaryStore{records: make(map[domain.Upstream][]summaryRecord)}
}

func (s *MemorySummaryStore) Record(ctx context.Context, upstream domain.Upstream, amount decimal.Decimal, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[upstream] = append(s.records[upstream], summaryRecord{amount: amount, timestamp: timestamp})
	return nil
}

func (s *MemorySummaryStore) Range(ctx context.Context, upstream domain.Upstream, from, to *time.Time) (domain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := domain.Summary{TotalAmount: decimal.Zero}
	for _, record := range s.records[upstream] {
		if from != nil && record.timestamp.Before(*from) {
			continue
		}
		if to != nil && record.timestamp.After(*to) {
			continue
		}
		summary.TotalRequests++
		summary.TotalAmount = summary.TotalAmount.Add(record.amount)
	}
	return summary, nil
}

func (s *MemorySummaryStore) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[domain.Upstream][]summaryRecord)
	return nil
}
