package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config: вся конфигурация процесса, читается из переменных окружения.
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	GRPC    GRPCConfig
	DB      DBConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	OTel    OTelConfig
	Booking BookingConfig
}

type AppConfig struct {
	Name     string
	Env      string // development | production
	LogLevel string
}

func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

type HTTPConfig struct {
	Addr            string
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

type GRPCConfig struct {
	Addr string
}

// RedisConfig: пустой Addr отключает идемпотентность POST /reservations.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

// KafkaConfig: без брокеров события из outbox только логируются.
type KafkaConfig struct {
	Brokers      []string
	TopicPrefix  string
	PollInterval time.Duration
	BatchSize    int
}

type OTelConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// BookingConfig задаёт рабочее окно для расчёта свободного времени.
type BookingConfig struct {
	OpenHour    int
	CloseHour   int
	SlotStepMin int
	Location    *time.Location
}

func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDBDefaults(v)

	v.SetDefault("APP_NAME", "reservation-core")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":50051")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC_PREFIX", "")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317")
	v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)
	v.SetDefault("BUSINESS_OPEN_HOUR", 9)
	v.SetDefault("BUSINESS_CLOSE_HOUR", 18)
	v.SetDefault("BUSINESS_TIMEZONE", "UTC")
	v.SetDefault("SLOT_STEP_MIN", 15)

	dbCfg, err := loadDBConfig(v)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(v.GetString("BUSINESS_TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("APP_NAME"),
			Env:      v.GetString("APP_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTPConfig{
			Addr:            v.GetString("HTTP_ADDR"),
			CORSOrigins:     splitList(v.GetString("CORS_ORIGINS")),
			RateLimitRPS:    v.GetFloat64("RATE_LIMIT_RPS"),
			RateLimitBurst:  v.GetInt("RATE_LIMIT_BURST"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		GRPC: GRPCConfig{Addr: v.GetString("GRPC_ADDR")},
		DB:   dbCfg,
		Redis: RedisConfig{
			Addr:           v.GetString("REDIS_ADDR"),
			Password:       v.GetString("REDIS_PASSWORD"),
			DB:             v.GetInt("REDIS_DB"),
			IdempotencyTTL: v.GetDuration("IDEMPOTENCY_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(v.GetString("KAFKA_BROKERS")),
			TopicPrefix:  v.GetString("KAFKA_TOPIC_PREFIX"),
			PollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
			BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
		},
		OTel: OTelConfig{
			Enabled:      v.GetBool("OTEL_ENABLED"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRatio:  v.GetFloat64("OTEL_SAMPLING_RATIO"),
		},
		Booking: BookingConfig{
			OpenHour:    v.GetInt("BUSINESS_OPEN_HOUR"),
			CloseHour:   v.GetInt("BUSINESS_CLOSE_HOUR"),
			SlotStepMin: v.GetInt("SLOT_STEP_MIN"),
			Location:    loc,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	b := c.Booking
	if b.OpenHour < 0 || b.CloseHour > 24 || b.OpenHour >= b.CloseHour {
		return fmt.Errorf("invalid business hours: %d-%d", b.OpenHour, b.CloseHour)
	}
	if b.SlotStepMin <= 0 {
		return fmt.Errorf("SLOT_STEP_MIN must be positive")
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be within [0,1]")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
