// Package service содержит бизнес-логику Inventory Service.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/fulfillment-saga/pkg/idempotency"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/inventory/internal/domain"
	"example.com/fulfillment-saga/services/inventory/internal/repository"
)

// insufficientStockReason — причина отказа резервирования.
const insufficientStockReason = "недостаточно товара на складе"

// releaseReason — причина возврата платежа при снятии резерва.
const releaseReason = "резерв снят: доставка отменена"

// InventoryService определяет интерфейс бизнес-логики склада.
type InventoryService interface {
	// Reserve резервирует товар по событию PaymentProcessed.
	// Исход (RESERVED или FAILED) фиксируется в БД: повторная доставка
	// события возвращает сохранённый результат.
	Reserve(ctx context.Context, idempotencyKey string, p saga.UpdateInventoryPayload) (*domain.Reservation, error)

	// Compensate снимает резерв по событию OrderShipped и продолжает
	// compensation цепочку событием InventoryFailed (возврат платежа).
	Compensate(ctx context.Context, compensationKey string, p saga.CompensateInventoryPayload) (*domain.Reservation, error)

	// Initialize создаёт или перезаписывает складской остаток товара.
	Initialize(ctx context.Context, productID string, quantity int) (*domain.Inventory, error)

	// GetInventory возвращает складской остаток по ID товара.
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)
}

// inventoryService — реализация InventoryService.
type inventoryService struct {
	repo       repository.InventoryRepository
	sagaRepo   saga.Repository
	guard      *idempotency.Guard
	maxRetries int
}

// NewInventoryService создаёт сервис склада.
func NewInventoryService(repo repository.InventoryRepository, sagaRepo saga.Repository, guard *idempotency.Guard, maxRetries int) InventoryService {
	return &inventoryService{
		repo:       repo,
		sagaRepo:   sagaRepo,
		guard:      guard,
		maxRetries: maxRetries,
	}
}

// Reserve резервирует товар под сагу.
func (s *inventoryService) Reserve(ctx context.Context, idempotencyKey string, p saga.UpdateInventoryPayload) (*domain.Reservation, error) {
	log := logger.FromContext(ctx).With().
		Str("saga_id", p.SagaLogID).
		Str("order_id", p.OrderID).
		Str("product_id", p.ProductID).
		Logger()

	// Fast-path: ключ уже встречался — возвращаем сохранённый исход
	if !s.guard.FirstSeen(ctx, idempotencyKey) {
		if existing, err := s.repo.GetReservationByIdempotencyKey(ctx, idempotencyKey); err == nil {
			log.Info().Str("status", string(existing.Status)).Msg("Повторная доставка события — возвращён сохранённый резерв")
			return existing, nil
		}
	}

	sagaLog, err := s.sagaRepo.FindByID(ctx, p.SagaLogID)
	if err != nil {
		return nil, err
	}

	// Неизвестный товар получает стартовый остаток при первом обращении
	if err := s.repo.EnsureExists(ctx, p.ProductID, domain.DefaultInitialQuantity); err != nil {
		s.guard.Release(ctx, idempotencyKey)
		return nil, fmt.Errorf("ошибка инициализации остатка: %w", err)
	}

	inv, err := s.repo.GetByProductID(ctx, p.ProductID)
	if err != nil {
		s.guard.Release(ctx, idempotencyKey)
		return nil, err
	}

	reservationID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации ID резерва: %w", err)
	}

	if !inv.CanReserve(p.Quantity) {
		return s.recordFailure(ctx, log, reservationID.String(), idempotencyKey, p)
	}

	reservation := domain.NewReservation(reservationID.String(), p.SagaLogID, p.OrderID, p.ProductID, p.Quantity, idempotencyKey)

	event, err := outbox.NewEvent(sagaLog.ID, saga.RouteDeliverOrder, saga.ServiceInventory, s.maxRetries, saga.DeliverOrderPayload{
		SagaLogID:  p.SagaLogID,
		OrderID:    p.OrderID,
		CustomerID: sagaLog.CustomerID,
	})
	if err != nil {
		return nil, err
	}

	// Мутация применяется к саге, перечитанной FOR UPDATE внутри транзакции
	mutate := func(sl *saga.SagaLog) error {
		return sl.CompleteStep(saga.StepUpdateInventory)
	}

	if err := s.repo.ReserveWithSaga(ctx, reservation, mutate, event); err != nil {
		if errors.Is(err, saga.ErrDuplicateIdempotencyKey) {
			// Гонка двух доставок одного события: исход уже зафиксирован
			if existing, findErr := s.repo.GetReservationByIdempotencyKey(ctx, idempotencyKey); findErr == nil {
				return existing, nil
			}
			return nil, err
		}
		if errors.Is(err, domain.ErrInsufficientStock) {
			// Остаток ушёл между чтением и коммитом. Транзакция откачена;
			// повторная доставка события зафиксирует отказ
			s.guard.Release(ctx, idempotencyKey)
			log.Warn().Msg("Конкурентное списание остатка — резервирование будет повторено")
			return nil, err
		}

		s.guard.Release(ctx, idempotencyKey)
		log.Error().Err(err).Msg("Ошибка сохранения резерва")
		return nil, fmt.Errorf("ошибка резервирования товара: %w", err)
	}

	log.Info().
		Str("reservation_id", reservation.ID).
		Int("quantity", p.Quantity).
		Msg("Товар зарезервирован")

	return reservation, nil
}

// recordFailure фиксирует отказ резервирования: FAILED резерв,
// провал шага саги и событие возврата платежа в одной транзакции.
func (s *inventoryService) recordFailure(ctx context.Context, log zerolog.Logger, reservationID, idempotencyKey string, p saga.UpdateInventoryPayload) (*domain.Reservation, error) {
	reservation := domain.NewFailedReservation(reservationID, p.SagaLogID, p.OrderID, p.ProductID, p.Quantity, idempotencyKey, insufficientStockReason)

	event, err := outbox.NewEvent(p.SagaLogID, saga.RouteRefundPayment, saga.ServiceInventory, s.maxRetries, saga.RefundPaymentPayload{
		SagaLogID: p.SagaLogID,
		OrderID:   p.OrderID,
		Reason:    insufficientStockReason,
	})
	if err != nil {
		return nil, err
	}

	mutate := func(sl *saga.SagaLog) error {
		if err := sl.FailStep(saga.StepUpdateInventory, insufficientStockReason); err != nil {
			return err
		}
		return sl.TransitionTo(saga.StatusFailed)
	}

	if err := s.repo.RecordFailureWithSaga(ctx, reservation, mutate, event); err != nil {
		if errors.Is(err, saga.ErrDuplicateIdempotencyKey) {
			if existing, findErr := s.repo.GetReservationByIdempotencyKey(ctx, idempotencyKey); findErr == nil {
				return existing, nil
			}
			return nil, err
		}

		s.guard.Release(ctx, idempotencyKey)
		log.Error().Err(err).Msg("Ошибка фиксации отказа резервирования")
		return nil, fmt.Errorf("ошибка резервирования товара: %w", err)
	}

	log.Info().
		Str("reservation_id", reservation.ID).
		Int("quantity", p.Quantity).
		Msg("Резервирование отклонено — недостаточно товара")

	return reservation, nil
}

// Compensate снимает резерв — компенсация шага UPDATE_INVENTORY.
func (s *inventoryService) Compensate(ctx context.Context, compensationKey string, p saga.CompensateInventoryPayload) (*domain.Reservation, error) {
	log := logger.FromContext(ctx).With().
		Str("saga_id", p.SagaLogID).
		Str("order_id", p.OrderID).
		Logger()

	sagaLog, err := s.sagaRepo.FindByID(ctx, p.SagaLogID)
	if err != nil {
		return nil, err
	}

	reservation, err := s.repo.GetReservationBySagaLogID(ctx, p.SagaLogID)
	if err != nil {
		return nil, err
	}

	// Replay: резерв уже снят
	if reservation.Status == domain.ReservationStatusReleased {
		log.Info().Msg("Резерв уже снят — повторная доставка")
		return reservation, nil
	}

	if err := reservation.Release(compensationKey); err != nil {
		return nil, err
	}

	// Продолжаем compensation цепочку: платёж должен быть возвращён
	event, err := outbox.NewEvent(sagaLog.ID, saga.RouteRefundPayment, saga.ServiceInventory, s.maxRetries, saga.RefundPaymentPayload{
		SagaLogID: p.SagaLogID,
		OrderID:   p.OrderID,
		Reason:    releaseReason,
	})
	if err != nil {
		return nil, err
	}

	mutate := func(sl *saga.SagaLog) error {
		if err := sl.TransitionTo(saga.StatusCompensating); err != nil {
			return err
		}
		return sl.CompleteCompensation(saga.StepUpdateInventory)
	}

	if err := s.repo.ReleaseWithSaga(ctx, reservation, mutate, event); err != nil {
		log.Error().Err(err).Msg("Ошибка снятия резерва")
		return nil, fmt.Errorf("ошибка снятия резерва: %w", err)
	}

	log.Info().
		Str("reservation_id", reservation.ID).
		Int("quantity", reservation.Quantity).
		Msg("Резерв снят, остаток возвращён")

	return reservation, nil
}

// Initialize создаёт или перезаписывает складской остаток.
func (s *inventoryService) Initialize(ctx context.Context, productID string, quantity int) (*domain.Inventory, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	inv := domain.NewInventory(productID, quantity)
	if err := s.repo.Upsert(ctx, inv); err != nil {
		return nil, fmt.Errorf("ошибка инициализации остатка: %w", err)
	}

	logger.FromContext(ctx).Info().
		Str("product_id", productID).
		Int("quantity", quantity).
		Msg("Складской остаток инициализирован")

	return inv, nil
}

// GetInventory возвращает складской остаток по ID товара.
func (s *inventoryService) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	return s.repo.GetByProductID(ctx, productID)
}
