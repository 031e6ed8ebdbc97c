package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farm-advisory/internal/models"
	"farm-advisory/internal/services"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpPublisher is the part of *amqp.Channel used for publishing.
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// NotificationPublisher publishes channel jobs to RabbitMQ
type NotificationPublisher struct {
	channel amqpPublisher

	mu                sync.Mutex
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

// NewNotificationPublisher expects the queues to be declared already, see
// RabbitMQConnection.DeclareQueues.
func NewNotificationPublisher(channel amqpPublisher) *NotificationPublisher {
	return &NotificationPublisher{channel: channel}
}

func (p *NotificationPublisher) record(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ok {
		p.messagesPublished++
		p.lastPublishTime = time.Now()
	} else {
		p.messagesFailed++
	}
}

func (p *NotificationPublisher) PublishChannelJob(ctx context.Context, job ChannelJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		p.record(false)
		return fmt.Errorf("failed to marshal channel job: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		"",              // exchange
		ChannelJobQueue, // routing key (queue name)
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    job.ID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.record(false)
		return fmt.Errorf("failed to publish channel job: %w", err)
	}
	p.record(true)

	slog.Info("Channel job published",
		"queue", ChannelJobQueue,
		"job_id", job.ID,
		"channel", job.Channel,
		"notification_id", job.Notification.ID,
	)
	return nil
}

// PublisherHealthStatus represents the health status of the publisher
type PublisherHealthStatus struct {
	MessagesPublished int64     `json:"messages_published"`
	MessagesFailed    int64     `json:"messages_failed"`
	LastPublishTime   time.Time `json:"last_publish_time"`
	Queue             string    `json:"queue"`
}

func (p *NotificationPublisher) HealthCheck() PublisherHealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublisherHealthStatus{
		MessagesPublished: p.messagesPublished,
		MessagesFailed:    p.messagesFailed,
		LastPublishTime:   p.lastPublishTime,
		Queue:             ChannelJobQueue,
	}
}

// QueuedSender hands deliveries for one channel to the notifier process.
type QueuedSender struct {
	channel   models.Channel
	publisher *NotificationPublisher
}

func NewQueuedSender(channel models.Channel, publisher *NotificationPublisher) *QueuedSender {
	return &QueuedSender{channel: channel, publisher: publisher}
}

// QueuedSenders builds one sender per channel, all on the same publisher.
func QueuedSenders(publisher *NotificationPublisher, channels ...models.Channel) []services.ChannelSender {
	senders := make([]services.ChannelSender, 0, len(channels))
	for _, ch := range channels {
		senders = append(senders, NewQueuedSender(ch, publisher))
	}
	return senders
}

func (q *QueuedSender) Channel() models.Channel { return q.channel }

func (q *QueuedSender) Send(ctx context.Context, n *models.Notification, contact models.ContactInfo) (models.DeliveryStatus, error) {
	if contact.AddressFor(q.channel) == "" {
		return models.DeliverySkipped, services.ErrMissingContact
	}
	job := ChannelJob{
		ID:           uuid.NewString(),
		Channel:      q.channel,
		Notification: *n,
		Contact:      contact,
		CreatedAt:    time.Now(),
	}
	if err := q.publisher.PublishChannelJob(ctx, job); err != nil {
		return models.DeliveryFailed, err
	}
	return models.DeliveryQueued, nil
}
