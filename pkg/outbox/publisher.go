package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"example.com/fulfillment-saga/pkg/api"
	"example.com/fulfillment-saga/pkg/circuitbreaker"
	"example.com/fulfillment-saga/pkg/config"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/metrics"
)

// Количество параллельных доставок в одном цикле.
const maxConcurrentPublishes = 5

// Настройки фоновой очистки доставленных событий.
const (
	cleanupInterval  = time.Hour
	cleanupRetention = 24 * time.Hour
)

// Mirror — опциональное audit-зеркало доставленных событий.
// Реализуется kafka.Producer; ошибки зеркала не влияют на доставку.
type Mirror interface {
	Mirror(ctx context.Context, aggregateID, eventType, sourceService string, payload []byte) error
}

// Publisher — фоновый процесс доставки событий outbox.
//
// Каждый сервис запускает собственный Publisher, который опрашивает
// общую таблицу outbox по своему source_service и доставляет события
// HTTP POST запросами в целевые сервисы. Доставка at-least-once:
// событие помечается доставленным только после успешного ответа.
type Publisher struct {
	repo        Repository
	cfg         config.PublisherConfig
	source      string
	serviceURLs map[string]string
	client      *http.Client
	mirror      Mirror

	// Circuit breaker на каждый целевой сервис:
	// недоступность одного сервиса не блокирует доставку в остальные
	breakersMu sync.Mutex
	breakers   map[string]*circuitbreaker.Breaker

	cancel context.CancelFunc
	done   chan struct{}
}

// Option — функциональная опция Publisher.
type Option func(*Publisher)

// WithMirror подключает audit-зеркало доставленных событий.
func WithMirror(m Mirror) Option {
	return func(p *Publisher) {
		p.mirror = m
	}
}

// WithHTTPClient заменяет HTTP клиент (для тестов).
func WithHTTPClient(client *http.Client) Option {
	return func(p *Publisher) {
		p.client = client
	}
}

// NewPublisher создаёт Publisher для сервиса source.
// serviceURLs — отображение имени целевого сервиса на его базовый URL.
func NewPublisher(repo Repository, cfg config.PublisherConfig, source string, serviceURLs map[string]string, opts ...Option) *Publisher {
	p := &Publisher{
		repo:        repo,
		cfg:         cfg,
		source:      source,
		serviceURLs: serviceURLs,
		client:      &http.Client{Timeout: cfg.RequestTimeout()},
		breakers:    make(map[string]*circuitbreaker.Breaker),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start запускает цикл доставки в фоновой горутине.
func (p *Publisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	logger.Info().
		Str("service", p.source).
		Dur("poll_interval", p.cfg.PollInterval()).
		Int("batch_size", p.cfg.BatchSize).
		Msg("Запуск Outbox Publisher")

	go p.run(ctx)
}

// Stop останавливает Publisher и дожидается завершения текущего цикла.
func (p *Publisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done

	logger.Info().Str("service", p.source).Msg("Outbox Publisher остановлен")
}

func (p *Publisher) run(ctx context.Context) {
	defer close(p.done)

	pollTicker := time.NewTicker(p.cfg.PollInterval())
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.publishBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanup(ctx)
		}
	}
}

// publishBatch доставляет пачку недоставленных событий.
// События обрабатываются параллельно с ограничением concurrency;
// цикл завершается только после обработки всех событий пачки.
func (p *Publisher) publishBatch(ctx context.Context) {
	events, err := p.repo.FindUnpublished(ctx, p.source, p.cfg.BatchSize)
	if err != nil {
		logger.Error().Err(err).Str("service", p.source).Msg("Ошибка чтения outbox")
		return
	}

	if len(events) == 0 {
		return
	}

	sem := make(chan struct{}, maxConcurrentPublishes)
	var wg sync.WaitGroup

	for _, event := range events {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(e *Event) {
			defer wg.Done()
			defer func() { <-sem }()

			p.publish(ctx, e)
		}(event)
	}

	wg.Wait()
}

// publish доставляет одно событие в целевой сервис.
func (p *Publisher) publish(ctx context.Context, e *Event) {
	start := time.Now()

	log := logger.With().
		Str("service", p.source).
		Str("event_id", e.ID).
		Str("event_type", string(e.EventType)).
		Str("target", e.TargetService).
		Str("aggregate_id", e.AggregateID).
		Logger()

	baseURL, ok := p.serviceURLs[e.TargetService]
	if !ok {
		// Неизвестный target — конфигурационная ошибка, retry не поможет,
		// но событие оставляем: после исправления конфига доставка продолжится
		p.fail(ctx, e, fmt.Errorf("неизвестный целевой сервис: %s", e.TargetService), log)
		metrics.RecordPublish(p.source, string(e.EventType), time.Since(start), false)
		return
	}

	url := baseURL + "/api/v1" + e.TargetEndpoint

	// Транспортные ошибки проходят через circuit breaker,
	// бизнес-отказ {success:false} — успешная доставка
	err := p.breakerFor(e.TargetService).Execute(func() error {
		return p.post(ctx, url, e, log)
	})

	duration := time.Since(start)

	if err != nil {
		p.fail(ctx, e, err, log)
		metrics.RecordPublish(p.source, string(e.EventType), duration, false)
		return
	}

	if markErr := p.repo.MarkPublished(ctx, e.ID); markErr != nil {
		// Событие доставлено, но не помечено: следующий цикл доставит
		// повторно, получатель отбросит дубликат по idempotency key
		log.Error().Err(markErr).Msg("Ошибка пометки события доставленным")
		return
	}

	metrics.RecordPublish(p.source, string(e.EventType), duration, true)
	log.Info().Dur("duration", duration).Msg("Событие доставлено")

	if p.mirror != nil {
		if mirrorErr := p.mirror.Mirror(ctx, e.AggregateID, string(e.EventType), e.SourceService, e.Payload); mirrorErr != nil {
			log.Warn().Err(mirrorErr).Msg("Ошибка отправки в audit-зеркало")
		}
	}
}

// post выполняет HTTP POST с payload события.
// Успех — любой 2xx ответ с валидным JSON конвертом.
func (p *Publisher) post(ctx context.Context, url string, e *Event, log zerolog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(e.Payload))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderIdempotencyKey, e.IdempotencyKey())

	// Прокидываем traceparent — trace связывает всю цепочку саги
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка HTTP запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("целевой сервис вернул %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var envelope api.Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("невалидный JSON ответ: %w", err)
	}

	if !envelope.Success {
		// Получатель отклонил событие как неактуальное — это не ошибка
		// доставки: повтор даст тот же ответ
		log.Warn().
			Str("message", envelope.Message).
			Str("error", envelope.Error).
			Msg("Получатель отклонил событие (business failure)")
	}

	return nil
}

// fail фиксирует неудачную попытку доставки.
func (p *Publisher) fail(ctx context.Context, e *Event, cause error, log zerolog.Logger) {
	if err := p.repo.MarkFailed(ctx, e.ID, cause.Error()); err != nil {
		log.Error().Err(err).Msg("Ошибка записи неудачной попытки")
		return
	}

	attempts := e.PublishAttempts + 1
	if attempts >= e.MaxRetries {
		metrics.OutboxTerminalFailuresTotal.WithLabelValues(p.source, string(e.EventType)).Inc()
		log.Error().
			Err(cause).
			Int("attempts", attempts).
			Msg("Событие исчерпало лимит попыток доставки — требуется вмешательство")
		return
	}

	log.Warn().
		Err(cause).
		Int("attempts", attempts).
		Int("max_retries", e.MaxRetries).
		Msg("Неудачная попытка доставки события")
}

// cleanup удаляет доставленные события старше периода хранения.
func (p *Publisher) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-cleanupRetention)

	deleted, err := p.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		logger.Error().Err(err).Str("service", p.source).Msg("Ошибка очистки outbox")
		return
	}

	if deleted > 0 {
		logger.Info().
			Str("service", p.source).
			Int64("deleted", deleted).
			Msg("Очистка доставленных событий outbox")
	}
}

// breakerFor возвращает circuit breaker целевого сервиса.
func (p *Publisher) breakerFor(target string) *circuitbreaker.Breaker {
	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()

	b, ok := p.breakers[target]
	if !ok {
		b = circuitbreaker.New(target)
		p.breakers[target] = b
	}
	return b
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
