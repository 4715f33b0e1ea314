package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/file-pipeline/internal/job"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker is the slice of the RabbitMQ client this queue uses.
type Broker interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// RabbitMQ implements job.Queue on an established RabbitMQ client.
//
// BlockingPop acks the delivery before returning it: once a descriptor is
// popped it is discarded regardless of what happens to the job, because the
// job record is the source of truth from that point on. Requeueing here
// would let a second worker race the first on the same staged file.
type RabbitMQ struct {
	client      Broker
	logger      *slog.Logger
	consumerTag string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitMQ creates a queue on an established client. consumerTag
// identifies this process on the broker; publishers may pass an empty tag.
func NewRabbitMQ(client Broker, consumerTag string, logger *slog.Logger) *RabbitMQ {
	return &RabbitMQ{
		client:      client,
		logger:      logger,
		consumerTag: consumerTag,
	}
}

func (q *RabbitMQ) Push(ctx context.Context, d *job.Descriptor) error {
	body, err := d.Encode()
	if err != nil {
		return err
	}

	if err := q.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("%w: failed to enqueue job: %v", job.ErrStoreUnavailable, err)
	}

	q.logger.Debug("Job descriptor enqueued",
		slog.String("tracking_id", d.TrackingID),
	)
	return nil
}

func (q *RabbitMQ) BlockingPop(ctx context.Context, timeout time.Duration) (*job.Descriptor, error) {
	deliveries, err := q.subscribe()
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case delivery, ok := <-deliveries:
		if !ok {
			// Broker dropped the channel; the next pop re-subscribes.
			q.dropSubscription()
			return nil, fmt.Errorf("%w: delivery channel closed", job.ErrStoreUnavailable)
		}
		return q.claim(delivery)

	case <-timer.C:
		return nil, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// subscribe starts the consumer on first use and again after the delivery
// channel was lost. A failed attempt leaves nothing behind, so every pop
// retries until the broker comes back.
func (q *RabbitMQ) subscribe() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.deliveries != nil {
		return q.deliveries, nil
	}

	deliveries, err := q.client.Consume(q.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start consumer: %v", job.ErrStoreUnavailable, err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

func (q *RabbitMQ) dropSubscription() {
	q.mu.Lock()
	q.deliveries = nil
	q.mu.Unlock()
}

// claim acks the delivery and decodes it. Malformed bodies are nacked
// without requeue and reported as an empty pop: the broker is healthy, so
// one poisoned message must not back off the loop.
func (q *RabbitMQ) claim(delivery amqp.Delivery) (*job.Descriptor, error) {
	d, err := job.DecodeDescriptor(delivery.Body)
	if err != nil {
		q.logger.Error("Discarding malformed queue message",
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			q.logger.Error("Failed to NACK malformed message",
				slog.String("error", nackErr.Error()),
			)
		}
		return nil, nil
	}

	if err := delivery.Ack(false); err != nil {
		return nil, fmt.Errorf("%w: failed to ack delivery: %v", job.ErrStoreUnavailable, err)
	}

	q.logger.Debug("Job descriptor claimed",
		slog.String("tracking_id", d.TrackingID),
		slog.Uint64("delivery_tag", delivery.DeliveryTag),
	)
	return d, nil
}
