package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Leganyst/reservation-core/internal/config"
	"github.com/Leganyst/reservation-core/internal/db"
	"github.com/Leganyst/reservation-core/internal/grpcserver"
	"github.com/Leganyst/reservation-core/internal/handler"
	"github.com/Leganyst/reservation-core/internal/logger"
	"github.com/Leganyst/reservation-core/internal/middleware"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/outbox"
	"github.com/Leganyst/reservation-core/internal/repository"
	"github.com/Leganyst/reservation-core/internal/service"
	"github.com/Leganyst/reservation-core/internal/telemetry"
)

func main() {
	os.Exit(start())
}

// start возвращает код выхода; os.Exit вызывается только после отложенных Sync и stop.
func start() int {
	// 1. Конфиг из env.
	cfg, err := config.Load()
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}

	zl, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Printf("init logger: %v", err)
		return 1
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, zl)
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) int {
	if err := run(ctx, cfg, log); err != nil {
		log.Error("core stopped with error", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// 2. Трейсинг.
	shutdownTracing, err := telemetry.Setup(ctx, cfg.App.Name, cfg.OTel)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	// 3. БД и миграции.
	gormDB, err := db.NewGormDB(cfg.DB)
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := model.AutoMigrate(gormDB); err != nil {
		return err
	}
	ready := func(ctx context.Context) error { return db.Ping(ctx, gormDB) }

	// 4. Сервисы.
	booking := service.NewBookingService(gormDB, service.BusinessHours{
		OpenHour:  cfg.Booking.OpenHour,
		CloseHour: cfg.Booking.CloseHour,
		Step:      time.Duration(cfg.Booking.SlotStepMin) * time.Minute,
		Location:  cfg.Booking.Location,
	}, log.Named("booking"))
	catalog := service.NewCatalogService(gormDB, log.Named("catalog"))

	// 5. Идемпотентность: redis, либо память процесса для локального запуска.
	idem, closeIdem := idempotencyStore(ctx, cfg.Redis, log)
	defer closeIdem()

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.Deps{
		Booking:        booking,
		Catalog:        catalog,
		Ready:          ready,
		Log:            log.Named("http"),
		Idempotency:    idem,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		RateLimiter:    limiter,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 6. gRPC health.
	grpcSrv := grpcserver.New(grpcserver.ReadyFunc(ready), log.Named("grpc"))
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}

	// 7. Outbox relay.
	var publisher outbox.Publisher = outbox.NewLogPublisher(log.Named("outbox"))
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = outbox.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
	} else {
		log.Warn("no kafka brokers configured, outbox events are only logged")
	}
	defer publisher.Close()
	relay := outbox.NewRelay(repository.NewGormEventRepository(gormDB), publisher, log.Named("outbox"), outbox.Config{
		PollInterval: cfg.Kafka.PollInterval,
		BatchSize:    cfg.Kafka.BatchSize,
	})

	ctx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		relay.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		grpcSrv.WatchReadiness(ctx, 5*time.Second)
	}()
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 8. Грейсфул-шатдаун по сигналу или падению одного из серверов.
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.Error("server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.Stop()
	cancelWorkers()
	wg.Wait()
	return runErr
}

func idempotencyStore(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (middleware.IdempotencyStore, func()) {
	if cfg.Addr == "" {
		log.Warn("REDIS_ADDR is empty, idempotency keys are kept in memory")
		return middleware.NewMemoryIdempotencyStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// хранилище fail-open, поэтому старт не блокируем
		log.Warn("redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	return middleware.NewRedisIdempotencyStore(client), func() { _ = client.Close() }
}
