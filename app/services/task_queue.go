package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/amirphl/viewiq/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobType names a background export
type JobType string

const (
	JobSegmentExport   JobType = "segment_export"
	JobTargetingReport JobType = "targeting_report"
)

// Job is the queue message; the row it points to carries all remaining state
type Job struct {
	Type JobType `json:"type"`
	ID   uint    `json:"id"`
}

// TaskQueue enqueues background jobs
type TaskQueue interface {
	Enqueue(ctx context.Context, job Job) error
}

// AMQPQueue publishes and consumes jobs on one durable RabbitMQ queue
type AMQPQueue struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int
}

// NewAMQPQueue dials the broker and declares the export queue
func NewAMQPQueue(cfg config.QueueConfig) (*AMQPQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.ExportQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.ExportQueue, err)
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &AMQPQueue{conn: conn, ch: ch, queue: cfg.ExportQueue, prefetch: prefetch}, nil
}

// Enqueue publishes a persistent job message
func (q *AMQPQueue) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s job %d: %w", job.Type, job.ID, err)
	}
	return nil
}

// Consume registers a manual-ack consumer limited to the configured prefetch
func (q *AMQPQueue) Consume(consumer string) (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.ch.Qos(q.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}
	msgs, err := q.ch.Consume(q.queue, consumer, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register a consumer: %w", err)
	}
	return msgs, nil
}

// Close closes the channel and the connection
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
