package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"farm-advisory/internal/config"
	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
	"farm-advisory/internal/worker"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	queue string
	msg   amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	publishes  []published
	publishErr error
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes = append(f.publishes, published{queue: key, msg: msg})
	return nil
}

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.publishes...)
}

type fakeAck struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeued bool
}

func (a *fakeAck) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *fakeAck) Reject(uint64, bool) error { return nil }

type fakeSender struct {
	channel models.Channel
	err     error
	calls   chan ChannelJob
}

func (f *fakeSender) Channel() models.Channel { return f.channel }

func (f *fakeSender) Send(_ context.Context, n *models.Notification, c models.ContactInfo) (models.DeliveryStatus, error) {
	if f.calls != nil {
		f.calls <- ChannelJob{Channel: f.channel, Notification: *n, Contact: c}
	}
	if f.err != nil {
		return models.DeliveryFailed, f.err
	}
	return models.DeliveryDelivered, nil
}

func delivery(t *testing.T, job ChannelJob, retries int32) (amqp.Delivery, *fakeAck) {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	ack := &fakeAck{}
	d := amqp.Delivery{Acknowledger: ack, Body: body, MessageId: job.ID}
	if retries > 0 {
		d.Headers = amqp.Table{retryHeader: retries}
	}
	return d, ack
}

func smsJob() ChannelJob {
	return ChannelJob{
		ID:           "job-1",
		Channel:      models.ChannelSMS,
		Notification: models.Notification{ID: "n-1", Title: "Frost warning", Message: "Cover seedlings"},
		Contact:      models.ContactInfo{Phone: "+919876543210"},
	}
}

func newTestConsumer(ch *fakeChannel, senders ...services.ChannelSender) *QueueConsumer {
	c := NewQueueConsumer(ch, worker.NewWorkingPool(2, 4), nil, senders...)
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

func TestQueuedSender_PublishesJob(t *testing.T) {
	ch := &fakeChannel{}
	publisher := NewNotificationPublisher(ch)
	sender := NewQueuedSender(models.ChannelSMS, publisher)

	n := &models.Notification{ID: "n-7", Title: "Price alert", Message: "Onion up 12%"}
	status, err := sender.Send(context.Background(), n, models.ContactInfo{Phone: "+911234567890"})
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryQueued, status)

	sent := ch.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, ChannelJobQueue, sent[0].queue)
	assert.Equal(t, amqp.Persistent, sent[0].msg.DeliveryMode)

	var job ChannelJob
	require.NoError(t, json.Unmarshal(sent[0].msg.Body, &job))
	assert.Equal(t, models.ChannelSMS, job.Channel)
	assert.Equal(t, "n-7", job.Notification.ID)
	assert.Equal(t, job.ID, sent[0].msg.MessageId)
	assert.Equal(t, int64(1), publisher.HealthCheck().MessagesPublished)
}

func TestQueuedSender_MissingContactAndBrokerFailure(t *testing.T) {
	ch := &fakeChannel{}
	publisher := NewNotificationPublisher(ch)
	sender := NewQueuedSender(models.ChannelEmail, publisher)

	status, err := sender.Send(context.Background(), &models.Notification{}, models.ContactInfo{Phone: "+911234567890"})
	assert.ErrorIs(t, err, services.ErrMissingContact)
	assert.Equal(t, models.DeliverySkipped, status)
	assert.Empty(t, ch.sent())

	ch.publishErr = errors.New("connection reset")
	status, err = sender.Send(context.Background(), &models.Notification{}, models.ContactInfo{Email: "a@example.com"})
	assert.Error(t, err)
	assert.Equal(t, models.DeliveryFailed, status)
	assert.Equal(t, int64(1), publisher.HealthCheck().MessagesFailed)
}

func TestQueuedSenders(t *testing.T) {
	senders := QueuedSenders(NewNotificationPublisher(&fakeChannel{}), models.Channels...)
	require.Len(t, senders, 3)
	assert.Equal(t, models.ChannelPush, senders[0].Channel())
	assert.Equal(t, models.ChannelSMS, senders[2].Channel())
}

func TestHandle_Success(t *testing.T) {
	ch := &fakeChannel{}
	c := newTestConsumer(ch, &fakeSender{channel: models.ChannelSMS})

	msg, ack := delivery(t, smsJob(), 0)
	require.NoError(t, c.handle(context.Background(), msg))
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, ch.sent())
}

func TestHandle_RetriesWithIncrementedHeader(t *testing.T) {
	ch := &fakeChannel{}
	c := newTestConsumer(ch, &fakeSender{channel: models.ChannelSMS, err: errors.New("gateway 503")})

	msg, ack := delivery(t, smsJob(), 1)
	assert.Error(t, c.handle(context.Background(), msg))
	assert.Equal(t, 1, ack.acks)

	sent := ch.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, ChannelJobQueue, sent[0].queue)
	assert.Equal(t, int32(2), sent[0].msg.Headers[retryHeader])
	assert.Equal(t, msg.Body, sent[0].msg.Body)
}

func TestHandle_DeadLettersAfterMaxRetries(t *testing.T) {
	ch := &fakeChannel{}
	c := newTestConsumer(ch, &fakeSender{channel: models.ChannelSMS, err: errors.New("gateway 503")})

	msg, ack := delivery(t, smsJob(), MaxRetries)
	assert.Error(t, c.handle(context.Background(), msg))
	assert.Equal(t, 1, ack.acks)

	sent := ch.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, ChannelJobDeadLetterQueue, sent[0].queue)
	assert.Equal(t, "gateway 503", sent[0].msg.Headers["x-dead-reason"])
}

func TestHandle_UnrecoverableGoesStraightToDLQ(t *testing.T) {
	ch := &fakeChannel{}
	c := newTestConsumer(ch) // no senders at all

	msg, _ := delivery(t, smsJob(), 0)
	assert.ErrorIs(t, c.handle(context.Background(), msg), errUnsupportedChannel)

	bad := amqp.Delivery{Acknowledger: &fakeAck{}, Body: []byte("{not json")}
	assert.Error(t, c.handle(context.Background(), bad))

	sent := ch.sent()
	require.Len(t, sent, 2)
	for _, p := range sent {
		assert.Equal(t, ChannelJobDeadLetterQueue, p.queue)
	}
}

func TestHandle_MissingContactIsDropped(t *testing.T) {
	ch := &fakeChannel{}
	c := newTestConsumer(ch, &fakeSender{channel: models.ChannelSMS, err: services.ErrMissingContact})

	msg, ack := delivery(t, smsJob(), 0)
	require.NoError(t, c.handle(context.Background(), msg))
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, ch.sent())
}

func TestHandle_RequeuesWhenBrokerRejectsRetry(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	c := newTestConsumer(ch, &fakeSender{channel: models.ChannelSMS, err: errors.New("gateway 503")})

	msg, ack := delivery(t, smsJob(), 0)
	assert.Error(t, c.handle(context.Background(), msg))
	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeued)
}

func TestStartConsuming_DispatchesThroughPool(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 1)}
	sender := &fakeSender{channel: models.ChannelSMS, calls: make(chan ChannelJob, 1)}
	c := newTestConsumer(ch, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var poolWg sync.WaitGroup
	poolWg.Add(1)
	go c.pool.Start(ctx, &poolWg)

	msg, _ := delivery(t, smsJob(), 0)
	ch.deliveries <- msg
	close(ch.deliveries)

	err := c.StartConsuming(ctx)
	assert.EqualError(t, err, "delivery channel closed")

	select {
	case job := <-sender.calls:
		assert.Equal(t, "Frost warning", job.Notification.Title)
		assert.Equal(t, "+919876543210", job.Contact.Phone)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not delivered")
	}

	cancel()
	poolWg.Wait()
}

func TestBrokerURI(t *testing.T) {
	uri, err := brokerURI(config.RabbitMQConfig{Host: "rabbitmq", Port: "5672", Username: "admin", Password: "p@ss"})
	require.NoError(t, err)

	parsed, err := amqp.ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "rabbitmq", parsed.Host)
	assert.Equal(t, 5672, parsed.Port)
	assert.Equal(t, "p@ss", parsed.Password)

	_, err = brokerURI(config.RabbitMQConfig{Host: "rabbitmq", Port: "amqp"})
	assert.Error(t, err)
}
