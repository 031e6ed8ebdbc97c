package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AdvisoryServiceConfig struct {
	Port                 string
	LogDir               string
	StoreDriver          string
	NotificationDispatch string
	RedisCfg             RedisConfig
	PostgresCfg          PostgresConfig
	MinioCfg             MinioConfig
	GeminiAPICfg         GeminiAPIConfig
	GoogleConfig         GoogleConfig
	PhoneServerConfig    PhoneServerConfig
	RabbitMQCfg          RabbitMQConfig
	WeatherCfg           WeatherConfig
	MarketCfg            MarketConfig
	AuthCfg              AuthConfig
	SchedulerCfg         SchedulerConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type MinioConfig struct {
	Enabled        bool
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
	// ImageRetentionDays expires uploaded crop photos; 0 keeps them forever.
	ImageRetentionDays int
}

type GeminiAPIConfig struct {
	// APIKeys holds one or more comma separated keys; each gets its own client
	// and requests fail over between them.
	APIKeys   []string
	FlashName string
	ProName   string
}

type GoogleConfig struct {
	MailHost            string
	MailPort            int
	MailUsername        string
	MailPassword        string
	FirebaseCredentials string
	FirebaseProjectID   string
}

type PhoneServerConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

type RabbitMQConfig struct {
	Host     string
	Username string
	Password string
	Port     string
}

type WeatherConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	CurrentTTL  time.Duration
	ForecastTTL time.Duration
	// RequestsPerMinute caps calls to the upstream API; 0 disables the limit.
	RequestsPerMinute int
}

type MarketConfig struct {
	Provider  string
	PricesTTL time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type SchedulerConfig struct {
	APIBaseURL   string
	CronSchedule string
	ServiceToken string
	// FarmIDs get a weather and crop advisory run on every tick.
	FarmIDs []string
}

func New() *AdvisoryServiceConfig {
	return &AdvisoryServiceConfig{
		Port:                 getEnvOrDefault("PORT", "8090"),
		LogDir:               getEnvOrDefault("LOG_DIR", "/var/log/farm-advisory"),
		StoreDriver:          getEnvOrDefault("STORE_DRIVER", "redis"),
		NotificationDispatch: getEnvOrDefault("NOTIFICATION_DISPATCH", "direct"),
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "farm_advisory"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		MinioCfg: MinioConfig{
			Enabled:            getEnvBool("MINIO_ENABLED", false),
			MinioURL:           getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey:     getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey:     getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:      getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:        getEnvOrDefault("MINIO_SECURE", "false"),
			ImageRetentionDays: getEnvInt("MINIO_IMAGE_RETENTION_DAYS", 90),
		},
		GeminiAPICfg: GeminiAPIConfig{
			APIKeys:   splitList(getEnvOrDefault("GEMINI_KEY", "")),
			FlashName: getEnvOrDefault("GEMINI_FLASH_MODEL", "gemini-2.5-flash"),
			ProName:   getEnvOrDefault("GEMINI_PRO_MODEL", "gemini-2.5-pro"),
		},
		GoogleConfig: GoogleConfig{
			MailHost:            getEnvOrDefault("MAIL_HOST", "smtp.gmail.com"),
			MailPort:            getEnvInt("MAIL_PORT", 587),
			MailUsername:        getEnvOrDefault("GOOGLE_USERNAME", ""),
			MailPassword:        getEnvOrDefault("GOOGLE_PASSWORD", ""),
			FirebaseCredentials: getEnvOrDefault("FIREBASE_SERVICE_ACCOUNT_KEY", ""),
			FirebaseProjectID:   getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
		},
		PhoneServerConfig: PhoneServerConfig{
			Host:     getEnvOrDefault("PHONE_HOST", ""),
			Port:     getEnvOrDefault("PHONE_PORT", ""),
			Username: getEnvOrDefault("PHONE_USERNAME", ""),
			Password: getEnvOrDefault("PHONE_PASSWORD", ""),
		},
		RabbitMQCfg: RabbitMQConfig{
			Host:     getEnvOrDefault("RABBITMQ_HOST", "rabbitmq"),
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		WeatherCfg: WeatherConfig{
			Provider:          getEnvOrDefault("WEATHER_PROVIDER", "openweather"),
			APIKey:            getEnvOrDefault("WEATHER_API_KEY", ""),
			BaseURL:           getEnvOrDefault("WEATHER_API_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			CurrentTTL:        getEnvDuration("WEATHER_CURRENT_TTL", 10*time.Minute),
			ForecastTTL:       getEnvDuration("WEATHER_FORECAST_TTL", time.Hour),
			RequestsPerMinute: getEnvInt("WEATHER_REQUESTS_PER_MINUTE", 60),
		},
		MarketCfg: MarketConfig{
			Provider:  getEnvOrDefault("MARKET_PROVIDER", "synthetic"),
			PricesTTL: getEnvDuration("MARKET_PRICES_TTL", 15*time.Minute),
		},
		AuthCfg: AuthConfig{
			JWTSecret: getEnvOrDefault("AUTH_JWT_SECRET", ""),
		},
		SchedulerCfg: SchedulerConfig{
			APIBaseURL:   getEnvOrDefault("ADVISORY_API_URL", "http://localhost:8090"),
			CronSchedule: getEnvOrDefault("SCHEDULE_CRON", "0 7 * * *"),
			ServiceToken: getEnvOrDefault("SCHEDULER_TOKEN", ""),
			FarmIDs:      splitList(getEnvOrDefault("SCHEDULER_FARM_IDS", "")),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
