// Package service содержит бизнес-логику Shipping Service.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/fulfillment-saga/pkg/idempotency"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/shipping/internal/domain"
	"example.com/fulfillment-saga/services/shipping/internal/repository"
)

// defaultCancelReason — причина отмены, если клиент её не указал.
const defaultCancelReason = "доставка отменена по запросу клиента"

// ShippingService определяет интерфейс бизнес-логики доставок.
type ShippingService interface {
	// Deliver выполняет доставку по событию InventoryUpdated — последний
	// шаг forward цепочки. Сага переводится в COMPLETED в той же
	// транзакции, что и запись о доставке.
	Deliver(ctx context.Context, idempotencyKey string, p saga.DeliverOrderPayload) (*domain.Shipment, error)

	// Cancel отменяет доставку до завершения саги и запускает
	// compensation цепочку с последнего завершённого шага: снятие
	// резерва, возврат платежа или отмена заказа напрямую.
	// Отмена после COMPLETED невозможна: сага терминальна.
	Cancel(ctx context.Context, idempotencyKey, sagaLogID, reason string) (*domain.Shipment, error)

	// GetShipment возвращает доставку по ID.
	GetShipment(ctx context.Context, shipmentID string) (*domain.Shipment, error)
}

// shippingService — реализация ShippingService.
type shippingService struct {
	repo       repository.ShipmentRepository
	sagaRepo   saga.Repository
	guard      *idempotency.Guard
	mirror     outbox.Mirror
	maxRetries int
}

// NewShippingService создаёт сервис доставок.
// mirror может быть nil — тогда audit события OrderDelivered не публикуются.
func NewShippingService(repo repository.ShipmentRepository, sagaRepo saga.Repository, guard *idempotency.Guard, mirror outbox.Mirror, maxRetries int) ShippingService {
	return &shippingService{
		repo:       repo,
		sagaRepo:   sagaRepo,
		guard:      guard,
		mirror:     mirror,
		maxRetries: maxRetries,
	}
}

// Deliver выполняет доставку заказа.
func (s *shippingService) Deliver(ctx context.Context, idempotencyKey string, p saga.DeliverOrderPayload) (*domain.Shipment, error) {
	log := logger.FromContext(ctx).With().
		Str("saga_id", p.SagaLogID).
		Str("order_id", p.OrderID).
		Logger()

	// Fast-path: ключ уже встречался — возвращаем сохранённый исход
	if !s.guard.FirstSeen(ctx, idempotencyKey) {
		if existing, err := s.repo.GetByIdempotencyKey(ctx, idempotencyKey); err == nil {
			log.Info().Str("status", string(existing.Status)).Msg("Повторная доставка события — возвращена сохранённая доставка")
			return existing, nil
		}
	}

	if _, err := s.sagaRepo.FindByID(ctx, p.SagaLogID); err != nil {
		return nil, err
	}

	shipmentID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации ID доставки: %w", err)
	}

	shipment := domain.NewShipment(shipmentID.String(), p.SagaLogID, p.OrderID, p.CustomerID, idempotencyKey)

	// Мутация применяется к саге, перечитанной FOR UPDATE внутри
	// транзакции: конкурентная отмена не потеряет наш шаг
	mutate := func(sl *saga.SagaLog) error {
		if err := sl.CompleteStep(saga.StepDeliverOrder); err != nil {
			return err
		}
		// Последний шаг выполнен — сага завершается терминально
		if sl.AllStepsCompleted() {
			return sl.TransitionTo(saga.StatusCompleted)
		}
		return nil
	}

	if err := s.repo.DeliverWithSaga(ctx, shipment, mutate); err != nil {
		if errors.Is(err, saga.ErrDuplicateIdempotencyKey) {
			// Гонка двух доставок одного события: исход уже зафиксирован
			if existing, findErr := s.repo.GetByIdempotencyKey(ctx, idempotencyKey); findErr == nil {
				return existing, nil
			}
			return nil, err
		}

		s.guard.Release(ctx, idempotencyKey)
		log.Error().Err(err).Msg("Ошибка сохранения доставки")
		return nil, fmt.Errorf("ошибка доставки заказа: %w", err)
	}

	log.Info().
		Str("shipment_id", shipment.ID).
		Msg("Заказ доставлен, сага завершена")

	// OrderDelivered — чисто audit событие: HTTP получателя нет,
	// публикуем в зеркало best-effort уже после коммита
	s.mirrorDelivered(ctx, log, p.SagaLogID, shipment)

	return shipment, nil
}

func (s *shippingService) mirrorDelivered(ctx context.Context, log zerolog.Logger, sagaLogID string, shipment *domain.Shipment) {
	if s.mirror == nil {
		return
	}

	payload, err := json.Marshal(saga.OrderDeliveredPayload{
		SagaLogID:  sagaLogID,
		OrderID:    shipment.OrderID,
		ShippingID: shipment.ID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Ошибка сериализации audit события OrderDelivered")
		return
	}

	if err := s.mirror.Mirror(ctx, sagaLogID, string(saga.EventOrderDelivered), string(saga.ServiceShipping), payload); err != nil {
		log.Warn().Err(err).Msg("Ошибка публикации audit события OrderDelivered")
	}
}

// Cancel отменяет доставку — запуск компенсации с конца forward цепочки.
func (s *shippingService) Cancel(ctx context.Context, idempotencyKey, sagaLogID, reason string) (*domain.Shipment, error) {
	log := logger.FromContext(ctx).With().
		Str("saga_id", sagaLogID).
		Logger()

	if reason == "" {
		reason = defaultCancelReason
	}

	// Replay: отмена с этим ключом уже зафиксирована
	if existing, err := s.repo.GetByIdempotencyKey(ctx, idempotencyKey); err == nil {
		log.Info().Msg("Отмена доставки уже выполнена — повторный запрос")
		return existing, nil
	}

	sagaLog, err := s.sagaRepo.FindByID(ctx, sagaLogID)
	if err != nil {
		return nil, err
	}

	// Доставленный заказ не отменить: сага уже COMPLETED
	if sagaLog.Status == saga.StatusCompleted {
		return nil, domain.ErrShipmentAlreadyDelivered
	}

	if sagaLog.OrderID == nil {
		return nil, saga.ErrSagaNotFound
	}
	orderID := *sagaLog.OrderID

	shipmentID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации ID доставки: %w", err)
	}

	shipment := domain.NewCancelledShipment(shipmentID.String(), sagaLogID, orderID, sagaLog.CustomerID, idempotencyKey, reason)

	// Компенсация стартует с последнего фактически завершённого шага:
	// отмена может прийти раньше, чем сага дошла до резервирования
	event, err := s.cancelCompensationEvent(sagaLog, orderID, reason)
	if err != nil {
		return nil, err
	}

	mutate := func(sl *saga.SagaLog) error {
		// Под блокировкой: конкурентная доставка могла завершить сагу
		if sl.Status == saga.StatusCompleted {
			return domain.ErrShipmentAlreadyDelivered
		}
		if err := sl.FailStep(saga.StepDeliverOrder, reason); err != nil {
			return err
		}
		return sl.TransitionTo(saga.StatusFailed)
	}

	if err := s.repo.CancelWithSaga(ctx, shipment, mutate, event); err != nil {
		if errors.Is(err, domain.ErrShipmentAlreadyDelivered) {
			return nil, err
		}
		if errors.Is(err, saga.ErrDuplicateIdempotencyKey) {
			if existing, findErr := s.repo.GetByIdempotencyKey(ctx, idempotencyKey); findErr == nil {
				return existing, nil
			}
			return nil, err
		}

		log.Error().Err(err).Msg("Ошибка отмены доставки")
		return nil, fmt.Errorf("ошибка отмены доставки: %w", err)
	}

	log.Info().
		Str("shipment_id", shipment.ID).
		Str("order_id", orderID).
		Msg("Доставка отменена, запущена компенсация")

	return shipment, nil
}

// cancelCompensationEvent строит первое событие compensation цепочки.
// Точка входа зависит от прогресса саги: компенсировать можно только
// те шаги, которые реально выполнились.
func (s *shippingService) cancelCompensationEvent(sagaLog *saga.SagaLog, orderID, reason string) (*outbox.Event, error) {
	switch {
	case sagaLog.StepCompleted(saga.StepUpdateInventory):
		// Резерв есть — снимаем его, дальше цепочка дойдёт до платежа и заказа
		return outbox.NewEvent(sagaLog.ID, saga.RouteCompensateInventory, saga.ServiceShipping, s.maxRetries, saga.CompensateInventoryPayload{
			SagaLogID: sagaLog.ID,
			OrderID:   orderID,
			ProductID: sagaLog.ProductID,
			Quantity:  sagaLog.Quantity,
		})
	case sagaLog.StepCompleted(saga.StepProcessPayment):
		// Резерва ещё нет — начинаем с возврата платежа
		return outbox.NewEvent(sagaLog.ID, saga.RouteRefundPayment, saga.ServiceShipping, s.maxRetries, saga.RefundPaymentPayload{
			SagaLogID: sagaLog.ID,
			OrderID:   orderID,
			Reason:    reason,
		})
	default:
		// Завершён только CREATE_ORDER — компенсируем заказ напрямую
		return outbox.NewEvent(sagaLog.ID, saga.RouteCompensateOrder, saga.ServiceShipping, s.maxRetries, saga.CompensateOrderPayload{
			SagaLogID: sagaLog.ID,
			OrderID:   orderID,
			Reason:    reason,
		})
	}
}

// GetShipment возвращает доставку по ID.
func (s *shippingService) GetShipment(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	return s.repo.GetByID(ctx, shipmentID)
}
