// Order Service — инициатор саги оформления заказа.
// Предоставляет HTTP API для старта саги, компенсации заказа
// и получения статуса заказа с сагой.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/fulfillment-saga/pkg/config"
	"example.com/fulfillment-saga/pkg/db"
	"example.com/fulfillment-saga/pkg/healthcheck"
	"example.com/fulfillment-saga/pkg/idempotency"
	"example.com/fulfillment-saga/pkg/kafka"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/metrics"
	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/pkg/tracing"
	"example.com/fulfillment-saga/services/order/internal/handler"
	"example.com/fulfillment-saga/services/order/internal/repository"
	"example.com/fulfillment-saga/services/order/internal/service"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	log := logger.With().Str("service", "order-service").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.OrderPort).
		Msg("Запуск Order Service")

	// Инициализируем tracing
	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "order-service",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка инициализации tracing")
	}

	// Подключаемся к MySQL и применяем миграции
	gormDB, err := db.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	if err := db.Migrate(context.Background(), gormDB); err != nil {
		log.Fatal().Err(err).Msg("Ошибка применения миграций")
	}

	// Подключаемся к Redis (fast-path идемпотентности)
	redisClient := db.ConnectRedis("order-service", cfg.Redis)

	// Создаём слои приложения
	orderRepo := repository.NewOrderRepository(gormDB)
	sagaRepo := saga.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)
	guard := idempotency.NewGuard(redisClient, "order:idempotency:")

	orderService := service.NewOrderService(orderRepo, sagaRepo, guard, cfg.Publisher.MaxRetries)
	orderHandler := handler.NewOrderHandler(orderService)

	// Outbox Publisher доставляет события OrderCreated в Payment Service
	publisherOpts := []outbox.Option{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}
		defer producer.Close()
		publisherOpts = append(publisherOpts, outbox.WithMirror(producer))
	}

	publisher := outbox.NewPublisher(outboxRepo, cfg.Publisher, string(saga.ServiceOrder), cfg.Services.URLMap(), publisherOpts...)
	publisher.Start(context.Background())

	// Metrics server с liveness/readiness probes
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "order-service",
			metrics.WithReadinessCheck(healthcheck.Readiness(
				healthcheck.MySQL(gormDB),
				healthcheck.Redis(redisClient),
			)),
		)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// HTTP сервер
	router := handler.NewRouter(orderHandler)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.OrderPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP сервер запущен")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	publisher.Stop()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки Tracing")
	}

	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Redis")
	}

	if sqlDB, err := gormDB.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	log.Info().Msg("Order Service остановлен")
}
