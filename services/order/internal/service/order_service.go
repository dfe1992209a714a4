// Package service содержит бизнес-логику Order Service.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"example.com/fulfillment-saga/pkg/idempotency"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/order/internal/domain"
	"example.com/fulfillment-saga/services/order/internal/repository"
)

// StartOrderInput — параметры инициации саги.
type StartOrderInput struct {
	CustomerID string
	ProductID  string
	Quantity   int
	TotalPrice int64
}

// StartOrderResult — результат инициации саги.
type StartOrderResult struct {
	Saga     *saga.SagaLog
	Order    *domain.Order
	Replayed bool // true — запрос был дубликатом, возвращён существующий результат
}

// OrderService определяет интерфейс бизнес-логики заказов.
type OrderService interface {
	// StartSaga инициирует сагу: атомарно создаёт заказ, saga log
	// и событие OrderCreated. Повторный вызов с тем же idempotencyKey
	// возвращает существующий результат.
	StartSaga(ctx context.Context, idempotencyKey string, in StartOrderInput) (*StartOrderResult, error)

	// Compensate отменяет заказ и завершает компенсацию саги.
	// Терминальный шаг compensation цепочки: событий не порождает.
	Compensate(ctx context.Context, compensationKey string, p saga.CompensateOrderPayload) (*domain.Order, error)

	// GetOrder возвращает заказ вместе с текущим состоянием его саги.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, *saga.SagaLog, error)
}

// orderService — реализация OrderService.
type orderService struct {
	repo       repository.OrderRepository
	sagaRepo   saga.Repository
	guard      *idempotency.Guard
	maxRetries int
}

// NewOrderService создаёт сервис заказов.
// guard может быть nil — тогда работает только защита уникальным ключом в БД.
func NewOrderService(repo repository.OrderRepository, sagaRepo saga.Repository, guard *idempotency.Guard, maxRetries int) OrderService {
	return &orderService{
		repo:       repo,
		sagaRepo:   sagaRepo,
		guard:      guard,
		maxRetries: maxRetries,
	}
}

// StartSaga инициирует сагу оформления заказа.
func (s *orderService) StartSaga(ctx context.Context, idempotencyKey string, in StartOrderInput) (*StartOrderResult, error) {
	log := logger.FromContext(ctx)

	// Fast-path: Redis уже видел этот ключ — возвращаем существующий
	// результат без попытки вставки
	if !s.guard.FirstSeen(ctx, idempotencyKey) {
		if result, err := s.findExisting(ctx, idempotencyKey); err == nil {
			log.Info().
				Str("saga_id", result.Saga.ID).
				Str("idempotency_key", idempotencyKey).
				Msg("Повторный запрос старта саги — возвращён существующий результат")
			return result, nil
		}
		// Ключ в Redis есть, саги в БД нет: предыдущая попытка упала
		// до коммита — продолжаем создание, БД разрешит гонку
	}

	sagaID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации ID саги: %w", err)
	}
	orderID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации ID заказа: %w", err)
	}

	order := domain.NewOrder(orderID.String(), sagaID.String(), in.CustomerID, in.ProductID, in.Quantity, in.TotalPrice, idempotencyKey)
	if err := order.Validate(); err != nil {
		log.Warn().Err(err).Str("customer_id", in.CustomerID).Msg("Ошибка валидации заказа")
		return nil, err
	}

	// Первый шаг выполняется локально: заказ создан — шаг завершён
	sagaLog := saga.NewSagaLog(sagaID.String(), idempotencyKey, in.CustomerID, in.ProductID, in.Quantity, in.TotalPrice)
	if err := sagaLog.CompleteStep(saga.StepCreateOrder); err != nil {
		return nil, err
	}
	if err := sagaLog.TransitionTo(saga.StatusInProgress); err != nil {
		return nil, err
	}
	id := order.ID
	sagaLog.OrderID = &id

	event, err := outbox.NewEvent(sagaLog.ID, saga.RouteProcessPayment, saga.ServiceOrder, s.maxRetries, saga.ProcessPaymentPayload{
		SagaLogID:  sagaLog.ID,
		OrderID:    order.ID,
		CustomerID: in.CustomerID,
		Amount:     in.TotalPrice,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateWithSaga(ctx, order, sagaLog, event); err != nil {
		if errors.Is(err, saga.ErrDuplicateIdempotencyKey) {
			// Гонка двух конкурентных стартов: победил другой запрос
			if result, findErr := s.findExisting(ctx, idempotencyKey); findErr == nil {
				result.Replayed = true
				return result, nil
			}
			return nil, err
		}

		// Создание не удалось — освобождаем fast-path ключ,
		// чтобы честный retry не упёрся в Redis
		s.guard.Release(ctx, idempotencyKey)
		log.Error().Err(err).Str("idempotency_key", idempotencyKey).Msg("Ошибка создания заказа с сагой")
		return nil, fmt.Errorf("ошибка создания заказа: %w", err)
	}

	log.Info().
		Str("saga_id", sagaLog.ID).
		Str("order_id", order.ID).
		Str("customer_id", in.CustomerID).
		Int64("total_price", in.TotalPrice).
		Msg("Сага запущена, заказ создан")

	return &StartOrderResult{Saga: sagaLog, Order: order}, nil
}

// findExisting возвращает ранее созданный результат по ключу идемпотентности.
func (s *orderService) findExisting(ctx context.Context, idempotencyKey string) (*StartOrderResult, error) {
	sagaLog, err := s.sagaRepo.FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}

	return &StartOrderResult{Saga: sagaLog, Order: order, Replayed: true}, nil
}

// Compensate отменяет заказ — терминальный шаг компенсации.
// Вызывается доставкой событий PaymentFailed или OrderCompensated.
func (s *orderService) Compensate(ctx context.Context, compensationKey string, p saga.CompensateOrderPayload) (*domain.Order, error) {
	log := logger.FromContext(ctx).With().
		Str("saga_id", p.SagaLogID).
		Str("order_id", p.OrderID).
		Logger()

	sagaLog, err := s.sagaRepo.FindByID(ctx, p.SagaLogID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}

	// Replay: компенсация уже выполнена — возвращаем текущее состояние
	if sagaLog.Status == saga.StatusCompensated {
		log.Info().Msg("Компенсация заказа уже выполнена — повторная доставка")
		return order, nil
	}

	if err := order.Cancel(compensationKey); err != nil {
		return nil, err
	}

	// Мутация применяется к саге, перечитанной FOR UPDATE внутри транзакции
	mutate := func(sl *saga.SagaLog) error {
		if err := sl.TransitionTo(saga.StatusCompensating); err != nil {
			return err
		}
		if err := sl.CompleteCompensation(saga.StepCreateOrder); err != nil {
			return err
		}
		return sl.TransitionTo(saga.StatusCompensated)
	}

	if err := s.repo.CancelWithSaga(ctx, order, mutate); err != nil {
		log.Error().Err(err).Msg("Ошибка отмены заказа")
		return nil, fmt.Errorf("ошибка отмены заказа: %w", err)
	}

	log.Info().Str("reason", p.Reason).Msg("Заказ отменён, сага компенсирована")

	return order, nil
}

// GetOrder возвращает заказ вместе с состоянием саги.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, *saga.SagaLog, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	sagaLog, err := s.sagaRepo.FindByID(ctx, order.SagaLogID)
	if err != nil {
		return nil, nil, err
	}

	return order, sagaLog, nil
}
