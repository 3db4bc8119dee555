package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"LegalPracticePlatform/pkg/clock"
	"LegalPracticePlatform/pkg/config"
	"LegalPracticePlatform/pkg/database"
	pkgErrors "LegalPracticePlatform/pkg/errors"
	grpcBase "LegalPracticePlatform/pkg/grpc"
	"LegalPracticePlatform/pkg/health"
	"LegalPracticePlatform/pkg/logger"
	pkg_metrics "LegalPracticePlatform/pkg/metrics"
	pkg_rabbitmq "LegalPracticePlatform/pkg/rabbitmq"
	"LegalPracticePlatform/pkg/ratelimit"
	pkg_redis "LegalPracticePlatform/pkg/redis"
	httpHandler "LegalPracticePlatform/services/billing-service/internal/handler/http"
	"LegalPracticePlatform/services/billing-service/internal/metrics"
	timerProducer "LegalPracticePlatform/services/billing-service/internal/producer/rabbitmq"
	"LegalPracticePlatform/services/billing-service/internal/repository"
	"LegalPracticePlatform/services/billing-service/internal/repository/memory"
	"LegalPracticePlatform/services/billing-service/internal/repository/postgres"
	cachedRepo "LegalPracticePlatform/services/billing-service/internal/repository/redis"
	"LegalPracticePlatform/services/billing-service/internal/service"
)

const (
	serviceName    = "billing-service"
	serviceVersion = "v1.0.0"
)

// stores набор хранилищ выбранного драйвера
type stores struct {
	timers   repository.TimerRepository
	sessions repository.SessionRepository
	rates    repository.RateRepository
	entries  repository.TimeEntryRepository
	cases    repository.CaseDirectory
	roles    repository.RoleDirectory
}

func memoryStores(settings service.BillingSettings, clk clock.Clock) stores {
	timerStore := memory.NewTimerStore()
	return stores{
		timers:   timerStore.Timers(),
		sessions: timerStore.Sessions(),
		rates:    memory.NewRateRepository(),
		entries:  memory.NewTimeEntryRepository(settings.DailyHourCap, clk),
		// любое дело считается принадлежащим первому обратившемуся арендатору
		cases: memory.NewCaseDirectory(true),
		roles: memory.NewRoleDirectory(),
	}
}

func postgresStores(db *database.Postgres, settings service.BillingSettings, clk clock.Clock) stores {
	return stores{
		timers:   postgres.NewTimerRepository(db.Pool),
		sessions: postgres.NewSessionRepository(db.Pool),
		rates:    postgres.NewRateRepository(db.Pool),
		entries:  postgres.NewTimeEntryRepository(db.Pool, settings.DailyHourCap, clk),
		cases:    postgres.NewCaseDirectory(db.Pool),
		roles:    postgres.NewRoleDirectory(db.Pool),
	}
}

// findConfigPath ищет config.yaml; пустая строка означает значения по умолчанию
func findConfigPath() string {
	if path := os.Getenv("BILLING_CONFIG"); path != "" {
		return path
	}

	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	candidates := []string{
		filepath.Join(wd, "services", serviceName, "config", "config.yaml"),
		filepath.Join(wd, "config", "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func main() {
	configPath := findConfigPath()

	// Инициализация конфигурации
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger, err := logger.NewLogger(cfg.Environment, cfg.Logger.Level, serviceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	appLogger.Info("Starting billing service",
		logger.String("version", serviceVersion),
		logger.String("config", configPath),
		logger.String("storage", cfg.Storage.Driver))

	settings, err := service.SettingsFromConfig(cfg.Billing)
	if err != nil {
		appLogger.Error("Invalid billing configuration", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdownTracing := pkg_metrics.InitializeOpenTelemetry(serviceName, serviceVersion)
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				appLogger.Warn("Failed to shutdown tracer provider", logger.Error(err))
			}
		}()
	}

	clk := clock.Real()
	checker := health.NewProbeChecker(serviceVersion, 2*time.Second)

	// Хранилища
	var st stores
	switch cfg.Storage.Driver {
	case "memory":
		st = memoryStores(settings, clk)
		appLogger.Warn("Using in-memory storage, data is lost on restart")
	default:
		db, err := database.Connect(ctx, database.FromConfig(cfg.Database))
		if err != nil {
			appLogger.Error("Failed to connect to database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()

		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db.Pool); err != nil {
				appLogger.Error("Failed to apply migrations", logger.Error(err))
				os.Exit(1)
			}
			appLogger.Info("Database migrations applied")
		}

		checker.Register("postgres", db.HealthCheck)
		st = postgresStores(db, settings, clk)
	}

	// Redis: кэш ставок и rate limiting
	var redisClient *pkg_redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkg_redis.Connect(ctx, pkg_redis.FromConfig(cfg.Redis))
		if err != nil {
			appLogger.Error("Failed to connect to Redis", logger.Error(err))
			os.Exit(1)
		}
		defer redisClient.Close()

		checker.Register("redis", redisClient.HealthCheck)
		st.rates = cachedRepo.NewCachedRateRepository(st.rates, redisClient.Client,
			config.Duration(cfg.Billing.RateCacheTTL, 30*time.Second), appLogger)
	}

	// RabbitMQ: события таймеров
	var publisher service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitConfig := pkg_rabbitmq.FromConfig(cfg.RabbitMQ)
		rabbitConn, err := pkg_rabbitmq.Connect(ctx, rabbitConfig)
		if err != nil {
			appLogger.Error("Failed to connect to RabbitMQ", logger.Error(err))
			os.Exit(1)
		}
		defer rabbitConn.Close()

		checker.Register("rabbitmq", rabbitConn.HealthCheck)
		publisher = timerProducer.NewTimerEventProducer(pkg_rabbitmq.NewProducer(rabbitConn, rabbitConfig), appLogger)
	}

	// Метрики
	httpMetrics := pkg_metrics.NewMetrics(serviceName)
	billingMetrics := metrics.NewBillingMetrics(serviceName, prometheus.DefaultRegisterer)

	// Сервисы
	engine := service.NewRateEngine(st.rates, st.cases, st.roles, settings, clk, billingMetrics, appLogger)
	timers := service.NewTimerService(st.timers, st.sessions, engine, publisher, clk, billingMetrics, appLogger)
	validator := service.NewTimeEntryValidator(st.entries, settings, clk, appLogger)
	converter := service.NewConverter(timers, st.sessions, st.entries, validator)
	admin := service.NewRateAdminService(st.rates, st.cases, clk, appLogger)

	api := httpHandler.NewHandler(httpHandler.Services{
		Timers:    timers,
		Converter: converter,
		Engine:    engine,
		Admin:     admin,
		Validator: validator,
	}, checker, appLogger)

	// Горячая перезагрузка таблицы ставок по ролям
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func(next *config.Config) {
				table, err := service.RoleRatesFromConfig(next.Billing)
				if err != nil {
					appLogger.Warn("Ignoring invalid role rates", logger.Error(err))
					return
				}
				engine.SetRoleRates(table)
				appLogger.Info("Role rate table reloaded", logger.Int("roles", len(table.Roles())))
			}, func(err error) {
				appLogger.Warn("Failed to reload config", logger.Error(err))
			})
			if err != nil {
				appLogger.Warn("Config watcher stopped", logger.Error(err))
			}
		}()
	}

	// HTTP сервер
	var apiHandler http.Handler = api
	if cfg.RateLimiting.Enabled && redisClient != nil {
		limiter := ratelimit.NewRedisRateLimiter(redisClient.Client)
		apiHandler = ratelimit.Middleware(limiter, ratelimit.HeaderKey(httpHandler.TenantHeader),
			cfg.RateLimiting.RequestsPerMinute, appLogger)(apiHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.GetHandler())
	mux.Handle("/", httpMetrics.Middleware(apiHandler))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      pkgErrors.Middleware(mux),
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		appLogger.Info("HTTP server started", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed", logger.Error(err))
			cancel()
		}
	}()

	// gRPC сервер с health сервисом
	var grpcServer *grpcBase.Server
	if cfg.GRPC.Enabled {
		grpcServer = grpcBase.NewServer(appLogger)
		grpcServer.SetServing(serviceName, true)

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			appLogger.Error("Failed to listen", logger.Error(err))
			os.Exit(1)
		}
		go func() {
			appLogger.Info("gRPC server started", logger.Int("port", cfg.GRPC.Port))
			if err := grpcServer.Serve(lis); err != nil {
				appLogger.Error("gRPC server failed", logger.Error(err))
				cancel()
			}
		}()
	}

	appLogger.Info("Billing service started successfully")

	// Ожидание сигнала
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		appLogger.Info("Received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
		appLogger.Error("Server failed, shutting down")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer shutdownCancel()

	if grpcServer != nil {
		grpcServer.SetServing(serviceName, false)
		done := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			appLogger.Warn("Shutdown timeout, forcing gRPC server stop")
			grpcServer.Stop()
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", logger.Error(err))
	}
	cancel()

	appLogger.Info("Billing service stopped")
}
