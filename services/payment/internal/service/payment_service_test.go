package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/payment/internal/domain"
)

// inProgressSaga — сага после завершения шага CREATE_ORDER.
func inProgressSaga(t *testing.T) *saga.SagaLog {
	t.Helper()

	s := saga.NewSagaLog("saga-1", "key-1", "customer-1", "product-1", 2, 20000)
	require.NoError(t, s.CompleteStep(saga.StepCreateOrder))
	require.NoError(t, s.TransitionTo(saga.StatusInProgress))
	orderID := "order-1"
	s.OrderID = &orderID
	return s
}

func processPayload() saga.ProcessPaymentPayload {
	return saga.ProcessPaymentPayload{
		SagaLogID:  "saga-1",
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Amount:     20000,
	}
}

// =============================================================================
// Тесты Process
// =============================================================================

func TestProcess_Success(t *testing.T) {
	repo := new(MockPaymentRepository)
	sagaRepo := new(MockSagaRepository)
	sagaLog := inProgressSaga(t)

	var capturedEvent *outbox.Event
	sagaRepo.On("FindByID", mock.Anything, "saga-1").Return(sagaLog, nil)
	repo.On("CreateWithSaga", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			capturedEvent = args.Get(3).(*outbox.Event)
			// Мутация применяется к перечитанной под блокировкой саге
			require.NoError(t, args.Get(2).(saga.Mutator)(sagaLog))
		}).
		Return(nil)

	svc := NewPaymentService(repo, sagaRepo, nil, stubPolicy{decline: false}, 3)

	payment, err := svc.Process(context.Background(), "saga-1-OrderCreated", processPayload())
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, int64(20000), payment.Amount)

	// Шаг PROCESS_PAYMENT завершён, сага остаётся IN_PROGRESS
	step, stepErr := sagaLog.Step(saga.StepProcessPayment)
	require.NoError(t, stepErr)
	assert.Equal(t, saga.StepCompleted, step.Status)
	assert.Equal(t, saga.StatusInProgress, sagaLog.Status)

	// Событие PaymentProcessed маршрутизировано в Inventory Service
	require.NotNil(t, capturedEvent)
	assert.Equal(t, saga.EventPaymentProcessed, capturedEvent.EventType)
	assert.Equal(t, "/inventories/update-inventory", capturedEvent.TargetEndpoint)

	// Количество и товар берутся из саги, не из payload платежа
	var next saga.UpdateInventoryPayload
	require.NoError(t, json.Unmarshal(capturedEvent.Payload, &next))
	assert.Equal(t, "product-1", next.ProductID)
	assert.Equal(t, 2, next.Quantity)
}

func TestProcess_Declined(t *testing.T) {
	repo := new(MockPaymentRepository)
	sagaRepo := new(MockSagaRepository)
	sagaLog := inProgressSaga(t)

	var (
		capturedPayment *domain.Payment
		capturedEvent   *outbox.Event
	)
	sagaRepo.On("FindByID", mock.Anything, "saga-1").Return(sagaLog, nil)
	repo.On("CreateWithSaga", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			capturedPayment = args.Get(1).(*domain.Payment)
			capturedEvent = args.Get(3).(*outbox.Event)
			require.NoError(t, args.Get(2).(saga.Mutator)(sagaLog))
		}).
		Return(nil)

	svc := NewPaymentService(repo, sagaRepo, nil, stubPolicy{decline: true}, 3)

	payment, err := svc.Process(context.Background(), "saga-1-OrderCreated", processPayload())
	require.NoError(t, err)

	// Отказ зафиксирован строкой DECLINED — replay вернёт тот же исход
	assert.Equal(t, domain.PaymentStatusDeclined, payment.Status)
	require.NotNil(t, capturedPayment)
	assert.Equal(t, domain.PaymentStatusDeclined, capturedPayment.Status)

	// Сага FAILED, шаг PROCESS_PAYMENT упал
	assert.Equal(t, saga.StatusFailed, sagaLog.Status)
	step, stepErr := sagaLog.Step(saga.StepProcessPayment)
	require.NoError(t, stepErr)
	assert.Equal(t, saga.StepFailed, step.Status)

	// Компенсация идёт напрямую в Order Service: резерва ещё не было
	require.NotNil(t, capturedEvent)
	assert.Equal(t, saga.EventPaymentFailed, capturedEvent.EventType)
	assert.Equal(t, "order", capturedEvent.TargetService)
	assert.Equal(t, "/orders/compensate", capturedEvent.TargetEndpoint)
}

func TestProcess_DuplicateReturnsStoredOutcome(t *testing.T) {
	repo := new(MockPaymentRepository)
	sagaRepo := new(MockSagaRepository)
	sagaLog := inProgressSaga(t)

	stored := domain.NewDeclinedPayment("payment-1", "saga-1", "order-1", "customer-1", 20000, "saga-1-OrderCreated", "отказ")

	sagaRepo.On("FindByID", mock.Anything, "saga-1").Return(sagaLog, nil)
	repo.On("CreateWithSaga", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(saga.ErrDuplicateIdempotencyKey)
	repo.On("GetByIdempotencyKey", mock.Anything, "saga-1-OrderCreated").Return(stored, nil)

	// Политика всегда успешна, но сохранённый исход — DECLINED:
	// replay не бросает кубик заново
	svc := NewPaymentService(repo, sagaRepo, nil, stubPolicy{decline: false}, 3)

	payment, err := svc.Process(context.Background(), "saga-1-OrderCreated", processPayload())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusDeclined, payment.Status)
}

func TestProcess_SagaNotFound(t *testing.T) {
	repo := new(MockPaymentRepository)
	sagaRepo := new(MockSagaRepository)

	sagaRepo.On("FindByID", mock.Anything, "saga-1").Return(nil, saga.ErrSagaNotFound)

	svc := NewPaymentService(repo, sagaRepo, nil, stubPolicy{}, 3)

	_, err := svc.Process(context.Background(), "saga-1-OrderCreated", processPayload())
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)

	repo.AssertNotCalled(t, "CreateWithSaga", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// Тесты Refund
// =============================================================================

// failedSaga — сага после отказа резервирования товара.
func failedSaga(t *testing.T) *saga.SagaLog {
	t.Helper()

	s := inProgressSaga(t)
	require.NoError(t, s.CompleteStep(saga.StepProcessPayment))
	require.NoError(t, s.FailStep(saga.StepUpdateInventory, "недостаточно товара"))
	require.NoError(t, s.TransitionTo(saga.StatusFailed))
	return s
}

func refundPayload() saga.RefundPaymentPayload {
	return saga.RefundPaymentPayload{
		SagaLogID: "saga-1",
		OrderID:   "order-1",
		Reason:    "недостаточно товара",
	}
}

func TestRefund_Success(t *testing.T) {
	repo := new(MockPaymentRepository)
	sagaRepo := new(MockSagaRepository)
	sagaLog := failedSaga(t)

	payment := domain.NewPayment("payment-1", "saga-1", "order-1", "customer-1", 20000, "saga-1-OrderCreated")

	var capturedEvent *outbox.Event
	sagaRepo.On("FindByID", mock.Anything, "saga-1").Return(sagaLog, nil)
	repo.On("GetBySagaLogID", mock.Anything, "saga-1").Return(payment, nil)
	repo.On("RefundWithSaga", mock.Anything, payment, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			capturedEvent = args.Get(3).(*outbox.Event)
			require.NoError(t, args.Get(2).(saga.Mutator)(sagaLog))
		}).
		Return(nil)

	svc := NewPaymentService(repo, sagaRepo, nil, stubPolicy{}, 3)

	result, err := svc.Refund(context.Background(), "saga-1-InventoryFailed", refundPayload())
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusRefunded, result.Status)
	assert.Equal(t, saga.StatusCompensating, sagaLog.Status)

	step, stepErr := sagaLog.Step(saga.StepProcessPayment)
	require.NoError(t, stepErr)
	assert.Equal(t, saga.CompensationCompleted, step.CompensationStatus)

	// Цепочка продолжается: заказ должен быть отменён
	require.NotNil(t, capturedEvent)
	assert.Equal(t, saga.EventOrderCompensated, capturedEvent.EventType)
	assert.Equal(t, "/orders/compensate", capturedEvent.TargetEndpoint)
}

func TestRefund_ReplayAfterRefunded(t *testing.T) {
	repo := new(MockPaymentRepository)
	sagaRepo := new(MockSagaRepository)
	sagaLog := failedSaga(t)

	payment := domain.NewPayment("payment-1", "saga-1", "order-1", "customer-1", 20000, "saga-1-OrderCreated")
	require.NoError(t, payment.Refund("saga-1-InventoryFailed"))

	sagaRepo.On("FindByID", mock.Anything, "saga-1").Return(sagaLog, nil)
	repo.On("GetBySagaLogID", mock.Anything, "saga-1").Return(payment, nil)

	svc := NewPaymentService(repo, sagaRepo, nil, stubPolicy{}, 3)

	result, err := svc.Refund(context.Background(), "saga-1-InventoryFailed", refundPayload())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, result.Status)

	// Повторная доставка не трогает БД и не порождает новых событий
	repo.AssertNotCalled(t, "RefundWithSaga", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefund_DeclinedPaymentIsNotRefundable(t *testing.T) {
	repo := new(MockPaymentRepository)
	sagaRepo := new(MockSagaRepository)
	sagaLog := failedSaga(t)

	payment := domain.NewDeclinedPayment("payment-1", "saga-1", "order-1", "customer-1", 20000, "saga-1-OrderCreated", "отказ")

	sagaRepo.On("FindByID", mock.Anything, "saga-1").Return(sagaLog, nil)
	repo.On("GetBySagaLogID", mock.Anything, "saga-1").Return(payment, nil)

	svc := NewPaymentService(repo, sagaRepo, nil, stubPolicy{}, 3)

	_, err := svc.Refund(context.Background(), "saga-1-InventoryFailed", refundPayload())
	assert.ErrorIs(t, err, domain.ErrPaymentNotRefundable)
}

// =============================================================================
// Тесты FailurePolicy
// =============================================================================

func TestRandomFailurePolicy_Extremes(t *testing.T) {
	never := NewRandomFailurePolicy(0, 42)
	always := NewRandomFailurePolicy(1, 42)

	for i := 0; i < 100; i++ {
		assert.False(t, never.ShouldDecline())
		assert.True(t, always.ShouldDecline())
	}
}
