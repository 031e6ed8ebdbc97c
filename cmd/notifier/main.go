package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"farm-advisory/internal/config"
	"farm-advisory/internal/event"
	"farm-advisory/internal/google"
	"farm-advisory/internal/metrics"
	"farm-advisory/internal/phone"
	"farm-advisory/internal/services"
	"farm-advisory/internal/worker"
	"farm-advisory/shared/utils"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	workerCount   = 8
	prefetchCount = 10
	reconnectWait = 5 * time.Second
)

func channelSenders(ctx context.Context, cfg *config.AdvisoryServiceConfig) []services.ChannelSender {
	var senders []services.ChannelSender

	firebaseService, err := google.NewFirebaseService(ctx, &google.FirebaseConfig{
		CredentialsPath: cfg.GoogleConfig.FirebaseCredentials,
		ProjectID:       cfg.GoogleConfig.FirebaseProjectID,
	})
	if err != nil {
		slog.Error("Push channel disabled", "error", err)
	} else {
		senders = append(senders, firebaseService)
	}

	senders = append(senders,
		google.NewEmailService(cfg.GoogleConfig.MailHost, cfg.GoogleConfig.MailPort, cfg.GoogleConfig.MailUsername, cfg.GoogleConfig.MailPassword),
		phone.NewPhoneService(cfg.PhoneServerConfig.Host, cfg.PhoneServerConfig.Port, cfg.PhoneServerConfig.Username, cfg.PhoneServerConfig.Password),
	)
	return senders
}

// consume runs one broker session. It returns when ctx ends or the broker
// drops the connection.
func consume(ctx context.Context, cfg *config.AdvisoryServiceConfig, pool *worker.WorkingPool, m *metrics.AdvisoryMetrics, senders []services.ChannelSender) error {
	rabbit, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg, "advisory-notifier")
	if err != nil {
		return err
	}
	defer rabbit.Close()

	if err := rabbit.DeclareQueues(); err != nil {
		return err
	}
	if err := rabbit.Channel.Qos(prefetchCount, 0, false); err != nil {
		return err
	}

	consumer := event.NewQueueConsumer(rabbit.Channel, pool, m, senders...)
	slog.Info("Notifier consuming", "queue", event.ChannelJobQueue, "workers", workerCount)
	return consumer.StartConsuming(ctx)
}

func main() {
	cfg := config.New()

	logFile, err := utils.SetupLogging(cfg.LogDir, "notifier")
	if err != nil {
		log.Printf("Logging to stderr: %v", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := metrics.NewAdvisoryMetrics(prometheus.NewRegistry())
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}
	senders := channelSenders(ctx, cfg)

	pool := worker.NewWorkingPool(workerCount, prefetchCount)
	var poolWg sync.WaitGroup
	poolWg.Add(1)
	go pool.Start(ctx, &poolWg)

	for {
		err := consume(ctx, cfg, pool, m, senders)
		if ctx.Err() != nil {
			break
		}
		if errors.Is(err, worker.ErrPoolStopped) {
			log.Fatalf("Worker pool stopped: %v", err)
		}
		slog.Error("Consumer stopped, reconnecting", "error", err, "wait", reconnectWait)
		select {
		case <-time.After(reconnectWait):
		case <-ctx.Done():
		}
	}

	slog.Info("Shutting down notifier")
	poolWg.Wait()
}
