/**
 * @description
 * Redis backings for the queue, health and summary stores. This is the
 * default multi-instance configuration: two Redis lists act as the durable
 * FIFOs, a hash per upstream holds health state guarded by a SETNX lock, and
 * a sorted set per upstream holds successful payments scored by timestamp.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: The Redis client library.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/routepay/gateway-service/internal/domain"
)

const (
	pendingQueueKey      = "payments:queue"
	verificationQueueKey = "payments:verify_queue"
	healthLockPrefix     = "health_lock:"
	healthStatePrefix    = "health:state:"
	summaryKeyPrefix     = "payments:summary:"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = 200
	opts.MinIdleConns = 10
	opts.DialTimeout = 2 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisQueueStore implements QueueStore on two Redis lists.
type RedisQueueStore struct {
	client *redis.Client
}

func NewRedisQueueStore(client *redis.Client) *RedisQueueStore {
	return &RedisQueueStore{client: client}
}

func (s *RedisQueueStore) PushPending(ctx context.Context, payment domain.PaymentRequest) error {
	raw, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}
	return s.client.LPush(ctx, pendingQueueKey, raw).Err()
}

func (s *RedisQueueStore) PopPending(ctx context.Context) (domain.PaymentRequest, error) {
	var payment domain.PaymentRequest
	// BRPOP with zero timeout blocks until an item arrives or ctx is done.
	result, err := s.client.BRPop(ctx, 0, pendingQueueKey).Result()
	if err != nil {
		return payment, err
	}
	if err := json.Unmarshal([]byte(result[1]), &payment); err != nil {
		return payment, fmt.Errorf("unmarshal payment: %w", err)
	}
	return payment, nil
}

func (s *RedisQueueStore) PendingDepth(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, pendingQueueKey).Result()
}

func (s *RedisQueueStore) PushVerification(ctx context.Context, task domain.VerificationTask) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal verification task: %w", err)
	}
	return s.client.LPush(ctx, verificationQueueKey, raw).Err()
}

func (s *RedisQueueStore) PopVerification(ctx context.Context) (domain.VerificationTask, error) {
	var task domain.VerificationTask
	result, err := s.client.BRPop(ctx, 0, verificationQueueKey).Result()
	if err != nil {
		return task, err
	}
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return task, fmt.Errorf("unmarshal verification task: %w", err)
	}
	return task, nil
}

func (s *RedisQueueStore) Purge(ctx context.Context) error {
	return s.client.Del(ctx, pendingQueueKey, verificationQueueKey).Err()
}

// RedisHealthStore implements HealthStore on a hash per upstream plus a
// SETNX lock with a TTL so a crashed prober never blocks others for long.
type RedisHealthStore struct {
	client *redis.Client
}

func NewRedisHealthStore(client *redis.Client) *RedisHealthStore {
	return &RedisHealthStore{client: client}
}

func (s *RedisHealthStore) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, healthLockPrefix+name, "locked", ttl).Result()
}

func (s *RedisHealthStore) Health(ctx context.Context, upstream domain.Upstream) (domain.HealthState, error) {
	entries, err := s.client.HGetAll(ctx, healthStatePrefix+string(upstream)).Result()
	if err != nil {
		return domain.HealthyState(), err
	}
	if len(entries) == 0 {
		return domain.HealthyState(), nil
	}
	failures, err := strconv.Atoi(entries["failures"])
	if err != nil {
		return domain.HealthyState(), nil
	}
	checkedAt, err := time.Parse(time.RFC3339Nano, entries["lastCheckedAt"])
	if err != nil {
		return domain.HealthyState(), nil
	}
	return domain.HealthState{ConsecutiveFailures: failures, LastCheckedAt: checkedAt}, nil
}

func (s *RedisHealthStore) SetHealth(ctx context.Context, upstream domain.Upstream, state domain.HealthState) error {
	return s.client.HSet(ctx, healthStatePrefix+string(upstream),
		"failures", strconv.Itoa(state.ConsecutiveFailures),
		"lastCheckedAt", state.LastCheckedAt.UTC().Format(time.RFC3339Nano),
	).Err()
}

// RedisSummaryStore implements SummaryStore on a sorted set per upstream.
// Each member is "<amount>:<uuid>" scored by epoch-millis; the uuid suffix
// keeps records with identical timestamps distinct.
type RedisSummaryStore struct {
	client *redis.Client
}

func NewRedisSummaryStore(client *redis.Client) *RedisSummaryStore {
	return &RedisSummaryStore{client: client}
}

func (s *RedisSummaryStore) Record(ctx context.Context, upstream domain.Upstream, amount decimal.Decimal, timestamp time.Time) error {
	member := amount.String() + ":" + uuid.NewString()
	return s.client.ZAdd(ctx, summaryKeyPrefix+string(upstream), redis.Z{
		Score:  float64(timestamp.UnixMilli()),
		Member: member,
	}).Err()
}

func (s *RedisSummaryStore) Range(ctx context.Context, upstream domain.Upstream, from, to *time.Time) (domain.Summary, error) {
	summary := domain.Summary{TotalAmount: decimal.Zero}

	min, max := "-inf", "+inf"
	if from != nil {
		min = strconv.FormatInt(from.UnixMilli(), 10)
	}
	if to != nil {
		max = strconv.FormatInt(to.UnixMilli(), 10)
	}

	members, err := s.client.ZRangeByScore(ctx, summaryKeyPrefix+string(upstream), &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return summary, err
	}

	total := decimal.Zero
	for _, member := range members {
		amountPart, _, found := strings.Cut(member, ":")
		if !found {
			continue
		}
		amount, err := decimal.NewFromString(amountPart)
		if err != nil {
			continue
		}
		total = total.Add(amount)
	}
	summary.TotalRequests = int64(len(members))
	summary.TotalAmount = total
	return summary, nil
}

func (s *RedisSummaryStore) Purge(ctx context.Context) error {
	return s.client.Del(ctx,
		summaryKeyPrefix+string(domain.UpstreamDefault),
		summaryKeyPrefix+string(domain.UpstreamFallback),
	).Err()
}
