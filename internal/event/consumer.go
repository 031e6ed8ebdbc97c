package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"farm-advisory/internal/metrics"
	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
	"farm-advisory/internal/worker"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errUnsupportedChannel = errors.New("no sender for channel")

// consumerChannel is the part of *amqp.Channel the consumer uses.
type consumerChannel interface {
	amqpPublisher
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type QueueConsumer struct {
	channel consumerChannel
	senders map[models.Channel]services.ChannelSender
	pool    *worker.WorkingPool
	metrics *metrics.AdvisoryMetrics
	backoff func(attempt int) time.Duration
}

func NewQueueConsumer(channel consumerChannel, pool *worker.WorkingPool, m *metrics.AdvisoryMetrics, senders ...services.ChannelSender) *QueueConsumer {
	c := &QueueConsumer{
		channel: channel,
		senders: map[models.Channel]services.ChannelSender{},
		pool:    pool,
		metrics: m,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
	for _, s := range senders {
		if s != nil {
			c.senders[s.Channel()] = s
		}
	}
	return c
}

// StartConsuming feeds deliveries into the worker pool until ctx ends or the
// broker closes the delivery channel.
func (q *QueueConsumer) StartConsuming(ctx context.Context) error {
	msgs, err := q.channel.Consume(
		ChannelJobQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := q.pool.SubmitJob(ctx, func(ctx context.Context) error {
				return q.handle(ctx, msg)
			}); err != nil {
				_ = msg.Nack(false, true)
				return fmt.Errorf("failed to submit delivery: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (q *QueueConsumer) process(ctx context.Context, job *ChannelJob) error {
	sender, ok := q.senders[job.Channel]
	if !ok {
		return fmt.Errorf("%w %s", errUnsupportedChannel, job.Channel)
	}
	status, err := sender.Send(ctx, &job.Notification, job.Contact)
	q.metrics.RecordNotificationDelivery(string(job.Channel), string(status))
	return err
}

func (q *QueueConsumer) handle(ctx context.Context, msg amqp.Delivery) error {
	attempt := retryCount(msg.Headers)

	var job ChannelJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return q.deadLetter(ctx, msg, fmt.Errorf("failed to unmarshal channel job: %w", err))
	}
	log := slog.With("job_id", job.ID, "channel", job.Channel, "attempt", attempt)

	err := q.process(ctx, &job)
	switch {
	case err == nil:
		log.Info("Channel job delivered")
		return msg.Ack(false)
	case errors.Is(err, services.ErrMissingContact):
		log.Warn("Channel job dropped, no contact address")
		return msg.Ack(false)
	case errors.Is(err, errUnsupportedChannel), attempt >= MaxRetries:
		return q.deadLetter(ctx, msg, err)
	}

	log.Warn("Channel job failed, retrying", "error", err)
	select {
	case <-time.After(q.backoff(attempt + 1)):
	case <-ctx.Done():
		_ = msg.Nack(false, true)
		return ctx.Err()
	}
	if pubErr := q.republish(ctx, msg, ChannelJobQueue, amqp.Table{retryHeader: int32(attempt + 1)}); pubErr != nil {
		_ = msg.Nack(false, true)
		return fmt.Errorf("failed to requeue channel job: %w", pubErr)
	}
	_ = msg.Ack(false)
	return err
}

func (q *QueueConsumer) deadLetter(ctx context.Context, msg amqp.Delivery, cause error) error {
	slog.Error("Channel job sent to DLQ",
		"retries", retryCount(msg.Headers),
		"queue", ChannelJobDeadLetterQueue,
		"error", cause,
	)
	headers := amqp.Table{
		retryHeader:     int32(retryCount(msg.Headers)),
		"x-dead-reason": cause.Error(),
	}
	if err := q.republish(ctx, msg, ChannelJobDeadLetterQueue, headers); err != nil {
		_ = msg.Nack(false, true)
		return fmt.Errorf("failed to dead-letter channel job: %w", err)
	}
	_ = msg.Ack(false)
	return cause
}

func (q *QueueConsumer) republish(ctx context.Context, msg amqp.Delivery, queue string, headers amqp.Table) error {
	return q.channel.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    msg.MessageId,
			Body:         msg.Body,
			Headers:      headers,
			Timestamp:    time.Now(),
		},
	)
}
