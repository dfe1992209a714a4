// Shipping Service — участник саги, завершающий forward цепочку.
// Потребляет событие InventoryUpdated (доставка), принимает клиентские
// отмены и порождает OrderShipped; OrderDelivered публикуется как
// audit событие напрямую в Kafka.
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
	"example.com/fulfillment-saga/services/shipping/internal/handler"
	"example.com/fulfillment-saga/services/shipping/internal/repository"
	"example.com/fulfillment-saga/services/shipping/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	log := logger.With().Str("service", "shipping-service").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.ShippingPort).
		Msg("Запуск Shipping Service")

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "shipping-service",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка инициализации tracing")
	}

	gormDB, err := db.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	if err := db.Migrate(context.Background(), gormDB); err != nil {
		log.Fatal().Err(err).Msg("Ошибка применения миграций")
	}

	redisClient := db.ConnectRedis("shipping-service", cfg.Redis)

	shipmentRepo := repository.NewShipmentRepository(gormDB)
	sagaRepo := saga.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)
	guard := idempotency.NewGuard(redisClient, "shipping:idempotency:")

	var mirror outbox.Mirror
	publisherOpts := []outbox.Option{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}
		defer producer.Close()
		mirror = producer
		publisherOpts = append(publisherOpts, outbox.WithMirror(producer))
	}

	shippingService := service.NewShippingService(shipmentRepo, sagaRepo, guard, mirror, cfg.Publisher.MaxRetries)
	shippingHandler := handler.NewShippingHandler(shippingService)

	publisher := outbox.NewPublisher(outboxRepo, cfg.Publisher, string(saga.ServiceShipping), cfg.Services.URLMap(), publisherOpts...)
	publisher.Start(context.Background())

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "shipping-service",
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

	router := handler.NewRouter(shippingHandler)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.ShippingPort),
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

	log.Info().Msg("Shipping Service остановлен")
}
