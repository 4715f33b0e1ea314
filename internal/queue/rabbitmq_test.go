package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/file-pipeline/internal/job"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type consumeResult struct {
	deliveries <-chan amqp.Delivery
	err        error
}

// fakeBroker replays one consumeResult per Consume call, holding the last
// result once the script runs out.
type fakeBroker struct {
	mu        sync.Mutex
	results   []consumeResult
	calls     int
	published [][]byte
	pushErr   error
}

func (b *fakeBroker) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pushErr != nil {
		return b.pushErr
	}
	b.published = append(b.published, body)
	return nil
}

func (b *fakeBroker) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	r := b.results[0]
	if len(b.results) > 1 {
		b.results = b.results[1:]
	}
	return r.deliveries, r.err
}

func (b *fakeBroker) consumeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// fakeAcknowledger records the ack outcome of a single delivery.
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func delivery(ack amqp.Acknowledger, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte(body),
	}
}

func TestRabbitMQ_Push(t *testing.T) {
	broker := &fakeBroker{}
	q := NewRabbitMQ(broker, "", testLogger())

	err := q.Push(context.Background(), &job.Descriptor{
		TrackingID: "job_abc",
		FilePath:   "/data/staging/job_abc.csv",
	})
	require.NoError(t, err)

	require.Len(t, broker.published, 1)
	assert.Contains(t, string(broker.published[0]), `"tracking_id":"job_abc"`)
}

func TestRabbitMQ_Push_BrokerDown(t *testing.T) {
	broker := &fakeBroker{pushErr: errors.New("connection refused")}
	q := NewRabbitMQ(broker, "", testLogger())

	err := q.Push(context.Background(), &job.Descriptor{TrackingID: "job_abc"})
	assert.ErrorIs(t, err, job.ErrStoreUnavailable)
}

func TestRabbitMQ_BlockingPop(t *testing.T) {
	ack := &fakeAcknowledger{}
	ch := make(chan amqp.Delivery, 1)
	ch <- delivery(ack, `{"tracking_id":"job_abc","file_path":"/data/staging/job_abc.csv"}`)

	broker := &fakeBroker{results: []consumeResult{{deliveries: ch}}}
	q := NewRabbitMQ(broker, "tag", testLogger())

	desc, err := q.BlockingPop(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "job_abc", desc.TrackingID)
	assert.True(t, ack.acked)
}

func TestRabbitMQ_BlockingPop_Timeout(t *testing.T) {
	ch := make(chan amqp.Delivery)
	broker := &fakeBroker{results: []consumeResult{{deliveries: ch}}}
	q := NewRabbitMQ(broker, "tag", testLogger())

	desc, err := q.BlockingPop(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, desc)
}

// A consumer that fails to start must not stay failed: the next pop retries
// against the broker instead of replaying the first error.
func TestRabbitMQ_BlockingPop_RetriesConsumerStart(t *testing.T) {
	ack := &fakeAcknowledger{}
	ch := make(chan amqp.Delivery, 1)
	ch <- delivery(ack, `{"tracking_id":"job_abc","file_path":"/data/staging/job_abc.csv"}`)

	broker := &fakeBroker{results: []consumeResult{
		{err: errors.New("channel not open")},
		{deliveries: ch},
	}}
	q := NewRabbitMQ(broker, "tag", testLogger())

	desc, err := q.BlockingPop(context.Background(), time.Second)
	assert.Nil(t, desc)
	assert.ErrorIs(t, err, job.ErrStoreUnavailable)

	desc, err = q.BlockingPop(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "job_abc", desc.TrackingID)
	assert.Equal(t, 2, broker.consumeCalls())
}

// A closed delivery channel (broker restart) drops the subscription so the
// next pop re-subscribes rather than reading the dead channel forever.
func TestRabbitMQ_BlockingPop_ResubscribesAfterChannelClose(t *testing.T) {
	dead := make(chan amqp.Delivery)
	close(dead)

	ack := &fakeAcknowledger{}
	live := make(chan amqp.Delivery, 1)
	live <- delivery(ack, `{"tracking_id":"job_abc","file_path":"/data/staging/job_abc.csv"}`)

	broker := &fakeBroker{results: []consumeResult{
		{deliveries: dead},
		{deliveries: live},
	}}
	q := NewRabbitMQ(broker, "tag", testLogger())

	desc, err := q.BlockingPop(context.Background(), time.Second)
	assert.Nil(t, desc)
	assert.ErrorIs(t, err, job.ErrStoreUnavailable)

	desc, err = q.BlockingPop(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "job_abc", desc.TrackingID)
	assert.Equal(t, 2, broker.consumeCalls())
}

// A malformed message is nacked without requeue and reported as an empty
// pop, not as a dependency failure: the loop moves straight on to the next
// message without backing off.
func TestRabbitMQ_BlockingPop_SkipsMalformedMessage(t *testing.T) {
	badAck := &fakeAcknowledger{}
	goodAck := &fakeAcknowledger{}
	ch := make(chan amqp.Delivery, 2)
	ch <- delivery(badAck, `{not json`)
	ch <- delivery(goodAck, `{"tracking_id":"job_abc","file_path":"/data/staging/job_abc.csv"}`)

	broker := &fakeBroker{results: []consumeResult{{deliveries: ch}}}
	q := NewRabbitMQ(broker, "tag", testLogger())

	desc, err := q.BlockingPop(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, desc)
	assert.True(t, badAck.nacked)
	assert.False(t, badAck.requeue)

	desc, err = q.BlockingPop(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "job_abc", desc.TrackingID)
	assert.True(t, goodAck.acked)
}
