package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"farm-advisory/internal/ai/gemini"
	"farm-advisory/internal/config"
	"farm-advisory/internal/database/minio"
	"farm-advisory/internal/database/postgres"
	"farm-advisory/internal/database/redis"
	"farm-advisory/internal/event"
	"farm-advisory/internal/google"
	"farm-advisory/internal/handlers"
	"farm-advisory/internal/metrics"
	"farm-advisory/internal/models"
	"farm-advisory/internal/phone"
	"farm-advisory/internal/repository"
	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const purgeInterval = 30 * time.Minute

// openStore connects the configured key-value driver. An unreachable redis or
// postgres degrades to the in-memory store so the API stays up.
func openStore(cfg *config.AdvisoryServiceConfig) (repository.Store, *sqlx.DB) {
	switch cfg.StoreDriver {
	case "redis":
		client, err := redis.NewRedisClient(cfg.RedisCfg)
		if err == nil {
			log.Printf("Using redis store at %s:%s", cfg.RedisCfg.Host, cfg.RedisCfg.Port)
			return repository.NewRedisStore(client.GetClient()), nil
		}
		slog.Warn("Redis unavailable, falling back to memory store", "error", err)
	case "postgres":
		db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
		if err == nil {
			log.Printf("Using postgres store at %s:%s", cfg.PostgresCfg.Host, cfg.PostgresCfg.Port)
			return repository.NewPostgresStore(db), db
		}
		slog.Warn("Postgres unavailable, falling back to memory store", "error", err)
	case "memory":
	default:
		slog.Warn("Unknown STORE_DRIVER, using memory store", "driver", cfg.StoreDriver)
	}
	return repository.NewMemoryStore(), nil
}

func purgeExpiredLoop(ctx context.Context, db *sqlx.DB) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := postgres.PurgeExpired(db)
			if err != nil {
				slog.Error("Failed to purge expired entries", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("Purged expired entries", "count", n)
			}
		}
	}
}

// directSenders wires every channel whose credentials are configured.
func directSenders(ctx context.Context, cfg *config.AdvisoryServiceConfig) []services.ChannelSender {
	var senders []services.ChannelSender

	if cfg.GoogleConfig.FirebaseCredentials != "" {
		firebaseService, err := google.NewFirebaseService(ctx, &google.FirebaseConfig{
			CredentialsPath: cfg.GoogleConfig.FirebaseCredentials,
			ProjectID:       cfg.GoogleConfig.FirebaseProjectID,
		})
		if err != nil {
			slog.Error("Push channel disabled", "error", err)
		} else {
			senders = append(senders, firebaseService)
		}
	}
	if cfg.GoogleConfig.MailUsername != "" {
		senders = append(senders, google.NewEmailService(
			cfg.GoogleConfig.MailHost,
			cfg.GoogleConfig.MailPort,
			cfg.GoogleConfig.MailUsername,
			cfg.GoogleConfig.MailPassword,
		))
	}
	if cfg.PhoneServerConfig.Host != "" {
		senders = append(senders, phone.NewPhoneService(
			cfg.PhoneServerConfig.Host,
			cfg.PhoneServerConfig.Port,
			cfg.PhoneServerConfig.Username,
			cfg.PhoneServerConfig.Password,
		))
	}
	return senders
}

func main() {
	cfg := config.New()

	logFile, err := utils.SetupLogging(cfg.LogDir, "advisory_service")
	if err != nil {
		log.Printf("Logging to stderr: %v", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	advisoryMetrics, err := metrics.NewAdvisoryMetrics(registry)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	store, db := openStore(cfg)
	defer store.Close()
	if db != nil {
		go purgeExpiredLoop(ctx, db)
	}

	var images services.ImageStore
	if cfg.MinioCfg.Enabled {
		minioClient, err := minio.NewMinioClient(cfg.MinioCfg)
		if err != nil {
			slog.Warn("MinIO unavailable, crop images will not be stored", "error", err)
		} else {
			images = minioClient
		}
	}

	var vision services.VisionModel
	if len(cfg.GeminiAPICfg.APIKeys) > 0 {
		clients := gemini.NewClientsFromKeys(ctx, cfg.GeminiAPICfg.APIKeys, cfg.GeminiAPICfg.FlashName, cfg.GeminiAPICfg.ProName)
		if len(clients) > 0 {
			selector := gemini.NewGeminiClientSelector(clients)
			defer selector.Close()
			vision = selector
		}
	}

	var senders []services.ChannelSender
	dispatch := cfg.NotificationDispatch
	if dispatch == "queue" {
		rabbit, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg, "advisory-api")
		if err == nil {
			err = rabbit.DeclareQueues()
		}
		if err != nil {
			slog.Error("Queue dispatch unavailable, delivering directly", "error", err)
			dispatch = "direct"
		} else {
			defer rabbit.Close()
			senders = event.QueuedSenders(event.NewNotificationPublisher(rabbit.Channel), models.Channels...)
		}
	}
	if dispatch != "queue" {
		senders = directSenders(ctx, cfg)
	}

	notificationService := services.NewNotificationService(repository.NewNotificationRepository(store), advisoryMetrics, senders...)
	weatherService := services.NewWeatherService(cfg.WeatherCfg, store, services.NewSyntheticDataSource(nil, nil), advisoryMetrics)
	cropService := services.NewCropService(weatherService, images, vision, advisoryMetrics)
	iotService := services.NewIoTService(repository.NewSensorRepository(store), notificationService, advisoryMetrics, nil)
	marketService := services.NewMarketService(cfg.MarketCfg, store, services.NewSyntheticMarketSource(nil), notificationService)
	farmService := services.NewFarmService(repository.NewFarmRepository(store))
	dashboardService := services.NewDashboardService(farmService, weatherService, cropService, iotService, marketService)
	advisoryService := services.NewAdvisoryService(farmService, weatherService, cropService, notificationService)

	var jwtService *services.JWTService
	if cfg.AuthCfg.JWTSecret != "" {
		jwtService = services.NewJWTService(cfg.AuthCfg.JWTSecret)
	} else {
		slog.Warn("AUTH_JWT_SECRET not set, trusting X-User-ID headers from the gateway")
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.Handlers{
		Weather:      handlers.NewWeatherHandler(weatherService),
		Crop:         handlers.NewCropHandler(cropService),
		IoT:          handlers.NewIoTHandler(iotService),
		Market:       handlers.NewMarketHandler(marketService),
		Farm:         handlers.NewFarmHandler(farmService, dashboardService, advisoryService),
		Notification: handlers.NewNotificationHandler(notificationService),
		Health:       handlers.NewHealthHandler(store, weatherService, cropService, notificationService, dispatch),
	}, handlers.NewMiddleware(jwtService), advisoryMetrics)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting advisory service",
			"port", cfg.Port,
			"store", store.Driver(),
			"weather_provider", weatherService.ProviderName(),
			"vision_model", cropService.VisionMode(),
			"dispatch", dispatch,
			"channels", notificationService.AvailableChannels(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down advisory service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
