// Payment Service — участник саги, обрабатывающий платежи.
// Потребляет события OrderCreated (оплата) и InventoryFailed (возврат),
// порождает PaymentProcessed, PaymentFailed и OrderCompensated.
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
	"example.com/fulfillment-saga/services/payment/internal/handler"
	"example.com/fulfillment-saga/services/payment/internal/repository"
	"example.com/fulfillment-saga/services/payment/internal/service"
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

	log := logger.With().Str("service", "payment-service").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.PaymentPort).
		Float64("failure_rate", cfg.Payment.FailureRate).
		Msg("Запуск Payment Service")

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "payment-service",
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

	redisClient := db.ConnectRedis("payment-service", cfg.Redis)

	paymentRepo := repository.NewPaymentRepository(gormDB)
	sagaRepo := saga.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)
	guard := idempotency.NewGuard(redisClient, "payment:idempotency:")
	policy := service.NewRandomFailurePolicy(cfg.Payment.FailureRate, time.Now().UnixNano())

	paymentService := service.NewPaymentService(paymentRepo, sagaRepo, guard, policy, cfg.Publisher.MaxRetries)
	paymentHandler := handler.NewPaymentHandler(paymentService)

	publisherOpts := []outbox.Option{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}
		defer producer.Close()
		publisherOpts = append(publisherOpts, outbox.WithMirror(producer))
	}

	publisher := outbox.NewPublisher(outboxRepo, cfg.Publisher, string(saga.ServicePayment), cfg.Services.URLMap(), publisherOpts...)
	publisher.Start(context.Background())

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "payment-service",
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

	router := handler.NewRouter(paymentHandler)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.PaymentPort),
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

	log.Info().Msg("Payment Service остановлен")
}
