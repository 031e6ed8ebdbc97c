package event

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"farm-advisory/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

const heartbeat = 10 * time.Second

type RabbitMQConnection struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

func brokerURI(cfg config.RabbitMQConfig) (string, error) {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return "", fmt.Errorf("invalid RabbitMQ port %q: %w", cfg.Port, err)
	}
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     port,
		Username: cfg.Username,
		Password: cfg.Password,
		Vhost:    "/",
	}
	return uri.String(), nil
}

// ConnectRabbitMQ dials the broker and opens one channel. name shows up as the
// connection name in the management UI.
func ConnectRabbitMQ(cfg config.RabbitMQConfig, name string) (*RabbitMQConnection, error) {
	uri, err := brokerURI(cfg)
	if err != nil {
		return nil, err
	}

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(name)
	conn, err := amqp.DialConfig(uri, amqp.Config{Heartbeat: heartbeat, Properties: props})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	slog.Info("Connected to RabbitMQ", "host", cfg.Host, "port", cfg.Port, "connection", name)
	return &RabbitMQConnection{Connection: conn, Channel: ch}, nil
}

// DeclareQueues makes sure the job queue and its dead letter queue exist. Both
// are durable so queued deliveries survive a broker restart.
func (r *RabbitMQConnection) DeclareQueues() error {
	for _, name := range []string{ChannelJobQueue, ChannelJobDeadLetterQueue} {
		if _, err := r.Channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
	}
	return nil
}

func (r *RabbitMQConnection) Close() error {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			slog.Warn("Failed to close RabbitMQ channel", "error", err)
		}
	}
	if r.Connection == nil || r.Connection.IsClosed() {
		return nil
	}
	return r.Connection.Close()
}
