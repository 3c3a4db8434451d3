/**
 * @description
 * AMQP backing for the queue store. The pending and verification FIFOs are
 * durable RabbitMQ queues: pushes publish persistent messages, pops read
 * from a manually-acked consumer channel, and depth is read with a passive
 * declare. This backing suits deployments that already run a broker and
 * want queue durability across Redis restarts.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/routepay/gateway-service/internal/domain"
)

const (
	amqpPendingQueue      = "gateway.payments.pending"
	amqpVerificationQueue = "gateway.payments.verification"
)

// AMQPQueueStore implements QueueStore on two durable RabbitMQ queues.
type AMQPQueueStore struct {
	conn          *amqp.Connection
	publishCh     *amqp.Channel
	pending       <-chan amqp.Delivery
	verifications <-chan amqp.Delivery
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %s", parsed.Scheme)
	}
	return clean, nil
}

// NewAMQPQueueStore connects to the broker, declares both queues and starts
// the consumer channels the blocking pops read from.
func NewAMQPQueueStore(amqpURL string) (*AMQPQueueStore, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	publishCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	consumeCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	store := &AMQPQueueStore{conn: conn, publishCh: publishCh}
	for _, name := range []string{amqpPendingQueue, amqpVerificationQueue} {
		if _, err := publishCh.QueueDeclare(name, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	store.pending, err = consumeCh.Consume(amqpPendingQueue, "", false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("consume %s: %w", amqpPendingQueue, err)
	}
	store.verifications, err = consumeCh.Consume(amqpVerificationQueue, "", false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("consume %s: %w", amqpVerificationQueue, err)
	}

	return store, nil
}

func (s *AMQPQueueStore) publish(ctx context.Context, queue string, body []byte) error {
	return s.publishCh.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (s *AMQPQueueStore) PushPending(ctx context.Context, payment domain.PaymentRequest) error {
	raw, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}
	return s.publish(ctx, amqpPendingQueue, raw)
}

func (s *AMQPQueueStore) PopPending(ctx context.Context) (domain.PaymentRequest, error) {
	var payment domain.PaymentRequest
	select {
	case <-ctx.Done():
		return payment, ctx.Err()
	case delivery, ok := <-s.pending:
		if !ok {
			return payment, fmt.Errorf("pending consumer channel closed")
		}
		if err := json.Unmarshal(delivery.Body, &payment); err != nil {
			// Undecodable messages can never succeed; drop without requeue.
			_ = delivery.Nack(false, false)
			return payment, fmt.Errorf("unmarshal payment: %w", err)
		}
		if err := delivery.Ack(false); err != nil {
			return payment, fmt.Errorf("ack payment: %w", err)
		}
		return payment, nil
	}
}

func (s *AMQPQueueStore) PendingDepth(ctx context.Context) (int64, error) {
	queue, err := s.publishCh.QueueDeclarePassive(amqpPendingQueue, true, false, false, false, nil)
	if err != nil {
		return 0, err
	}
	return int64(queue.Messages), nil
}

func (s *AMQPQueueStore) PushVerification(ctx context.Context, task domain.VerificationTask) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal verification task: %w", err)
	}
	return s.publish(ctx, amqpVerificationQueue, raw)
}

func (s *AMQPQueueStore) PopVerification(ctx context.Context) (domain.VerificationTask, error) {
	var task domain.VerificationTask
	select {
	case <-ctx.Done():
		return task, ctx.Err()
	case delivery, ok := <-s.verifications:
		if !ok {
			return task, fmt.Errorf("verification consumer channel closed")
		}
		if err := json.Unmarshal(delivery.Body, &task); err != nil {
			_ = delivery.Nack(false, false)
			return task, fmt.Errorf("unmarshal verification task: %w", err)
		}
		if err := delivery.Ack(false); err != nil {
			return task, fmt.Errorf("ack verification task: %w", err)
		}
		return task, nil
	}
}

func (s *AMQPQueueStore) Purge(ctx context.Context) error {
	if _, err := s.publishCh.QueuePurge(amqpPendingQueue, false); err != nil {
		return err
	}
	_, err := s.publishCh.QueuePurge(amqpVerificationQueue, false)
	return err
}

// Close releases the broker connection.
func (s *AMQPQueueStore) Close() {
	if s.publishCh != nil {
		s.publishCh.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
