// Package service содержит бизнес-логику Payment Service.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"example.com/fulfillment-saga/pkg/idempotency"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/payment/internal/domain"
	"example.com/fulfillment-saga/services/payment/internal/repository"
)

// declineReason — причина отклонения симулированного платежа.
const declineReason = "недостаточно средств на счёте"

// FailurePolicy решает, отклонить ли платёж.
// Интерфейс позволяет тестам задавать детерминированный исход.
type FailurePolicy interface {
	ShouldDecline() bool
}

// randomFailurePolicy отклоняет платежи с заданной вероятностью.
type randomFailurePolicy struct {
	rate float64
	mu   sync.Mutex
	rng  *rand.Rand
}

// NewRandomFailurePolicy создаёт политику случайных отказов.
// rate — доля отклоняемых платежей в диапазоне [0, 1].
func NewRandomFailurePolicy(rate float64, seed int64) FailurePolicy {
	return &randomFailurePolicy{
		rate: rate,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (p *randomFailurePolicy) ShouldDecline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < p.rate
}

// PaymentService определяет интерфейс бизнес-логики платежей.
type PaymentService interface {
	// Process обрабатывает платёж по событию OrderCreated.
	// Исход (COMPLETED или DECLINED) фиксируется в БД: повторная
	// доставка события возвращает сохранённый результат.
	Process(ctx context.Context, idempotencyKey string, p saga.ProcessPaymentPayload) (*domain.Payment, error)

	// Refund возвращает платёж по событию InventoryFailed
	// и продолжает compensation цепочку событием OrderCompensated.
	Refund(ctx context.Context, compensationKey string, p saga.RefundPaymentPayload) (*domain.Payment, error)

	// GetPayment возвращает платёж по ID.
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
}

// paymentService — реализация PaymentService.
type paymentService struct {
	repo       repository.PaymentRepository
	sagaRepo   saga.Repository
	guard      *idempotency.Guard
	policy     FailurePolicy
	maxRetries int
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(repo repository.PaymentRepository, sagaRepo saga.Repository, guard *idempotency.Guard, policy FailurePolicy, maxRetries int) PaymentService {
	return &paymentService{
		repo:       repo,
		sagaRepo:   sagaRepo,
		guard:      guard,
		policy:     policy,
		maxRetries: maxRetries,
	}
}

// Process обрабатывает платёж.
func (s *paymentService) Process(ctx context.Context, idempotencyKey string, p saga.ProcessPaymentPayload) (*domain.Payment, error) {
	log := logger.FromContext(ctx).With().
		Str("saga_id", p.SagaLogID).
		Str("order_id", p.OrderID).
		Logger()

	// Fast-path: ключ уже встречался — возвращаем сохранённый исход.
	// Без этой проверки replay бросил бы кубик заново.
	if !s.guard.FirstSeen(ctx, idempotencyKey) {
		if existing, err := s.repo.GetByIdempotencyKey(ctx, idempotencyKey); err == nil {
			log.Info().Str("status", string(existing.Status)).Msg("Повторная доставка события — возвращён сохранённый исход платежа")
			return existing, nil
		}
	}

	sagaLog, err := s.sagaRepo.FindByID(ctx, p.SagaLogID)
	if err != nil {
		return nil, err
	}

	paymentID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации ID платежа: %w", err)
	}

	var (
		payment *domain.Payment
		event   *outbox.Event
		mutate  saga.Mutator
	)

	if s.policy.ShouldDecline() {
		// Отказ — тоже зафиксированный исход: DECLINED строка пишется
		// в той же транзакции, что и событие PaymentFailed
		payment = domain.NewDeclinedPayment(paymentID.String(), p.SagaLogID, p.OrderID, p.CustomerID, p.Amount, idempotencyKey, declineReason)

		mutate = func(sl *saga.SagaLog) error {
			if err := sl.FailStep(saga.StepProcessPayment, declineReason); err != nil {
				return err
			}
			return sl.TransitionTo(saga.StatusFailed)
		}

		event, err = outbox.NewEvent(sagaLog.ID, saga.RoutePaymentFailed, saga.ServicePayment, s.maxRetries, saga.CompensateOrderPayload{
			SagaLogID: p.SagaLogID,
			OrderID:   p.OrderID,
			Reason:    declineReason,
		})
		if err != nil {
			return nil, err
		}
	} else {
		payment = domain.NewPayment(paymentID.String(), p.SagaLogID, p.OrderID, p.CustomerID, p.Amount, idempotencyKey)
		if err := payment.Validate(); err != nil {
			return nil, err
		}

		mutate = func(sl *saga.SagaLog) error {
			return sl.CompleteStep(saga.StepProcessPayment)
		}

		event, err = outbox.NewEvent(sagaLog.ID, saga.RouteUpdateInventory, saga.ServicePayment, s.maxRetries, saga.UpdateInventoryPayload{
			SagaLogID: p.SagaLogID,
			OrderID:   p.OrderID,
			ProductID: sagaLog.ProductID,
			Quantity:  sagaLog.Quantity,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.CreateWithSaga(ctx, payment, mutate, event); err != nil {
		if errors.Is(err, saga.ErrDuplicateIdempotencyKey) {
			// Гонка двух доставок одного события: исход уже зафиксирован
			if existing, findErr := s.repo.GetByIdempotencyKey(ctx, idempotencyKey); findErr == nil {
				return existing, nil
			}
			return nil, err
		}

		s.guard.Release(ctx, idempotencyKey)
		log.Error().Err(err).Msg("Ошибка сохранения платежа")
		return nil, fmt.Errorf("ошибка обработки платежа: %w", err)
	}

	log.Info().
		Str("payment_id", payment.ID).
		Str("status", string(payment.Status)).
		Int64("amount", p.Amount).
		Msg("Платёж обработан")

	return payment, nil
}

// Refund возвращает платёж — компенсация шага PROCESS_PAYMENT.
func (s *paymentService) Refund(ctx context.Context, compensationKey string, p saga.RefundPaymentPayload) (*domain.Payment, error) {
	log := logger.FromContext(ctx).With().
		Str("saga_id", p.SagaLogID).
		Str("order_id", p.OrderID).
		Logger()

	sagaLog, err := s.sagaRepo.FindByID(ctx, p.SagaLogID)
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.GetBySagaLogID(ctx, p.SagaLogID)
	if err != nil {
		return nil, err
	}

	// Replay: возврат уже выполнен
	if payment.Status == domain.PaymentStatusRefunded {
		log.Info().Msg("Возврат платежа уже выполнен — повторная доставка")
		return payment, nil
	}

	if err := payment.Refund(compensationKey); err != nil {
		return nil, err
	}

	// Продолжаем compensation цепочку: заказ должен быть отменён
	event, err := outbox.NewEvent(sagaLog.ID, saga.RouteCompensateOrder, saga.ServicePayment, s.maxRetries, saga.CompensateOrderPayload{
		SagaLogID: p.SagaLogID,
		OrderID:   p.OrderID,
		Reason:    p.Reason,
	})
	if err != nil {
		return nil, err
	}

	mutate := func(sl *saga.SagaLog) error {
		if err := sl.TransitionTo(saga.StatusCompensating); err != nil {
			return err
		}
		return sl.CompleteCompensation(saga.StepProcessPayment)
	}

	if err := s.repo.RefundWithSaga(ctx, payment, mutate, event); err != nil {
		log.Error().Err(err).Msg("Ошибка возврата платежа")
		return nil, fmt.Errorf("ошибка возврата платежа: %w", err)
	}

	log.Info().
		Str("payment_id", payment.ID).
		Int64("amount", payment.Amount).
		Msg("Платёж возвращён")

	return payment, nil
}

// GetPayment возвращает платёж по ID.
func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.repo.GetByID(ctx, paymentID)
}
