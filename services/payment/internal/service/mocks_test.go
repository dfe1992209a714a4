package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/payment/internal/domain"
)

// MockPaymentRepository — мок репозитория платежей.
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetBySagaLogID(ctx context.Context, sagaLogID string) (*domain.Payment, error) {
	args := m.Called(ctx, sagaLogID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) CreateWithSaga(ctx context.Context, payment *domain.Payment, mutate saga.Mutator, event *outbox.Event) error {
	args := m.Called(ctx, payment, mutate, event)
	return args.Error(0)
}

func (m *MockPaymentRepository) RefundWithSaga(ctx context.Context, payment *domain.Payment, mutate saga.Mutator, event *outbox.Event) error {
	args := m.Called(ctx, payment, mutate, event)
	return args.Error(0)
}

// MockSagaRepository — мок репозитория saga log.
type MockSagaRepository struct {
	mock.Mock
}

func (m *MockSagaRepository) Create(ctx context.Context, s *saga.SagaLog) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSagaRepository) FindByID(ctx context.Context, id string) (*saga.SagaLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*saga.SagaLog), args.Error(1)
}

func (m *MockSagaRepository) FindByIdempotencyKey(ctx context.Context, key string) (*saga.SagaLog, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*saga.SagaLog), args.Error(1)
}

// stubPolicy — детерминированная политика отказов для тестов.
type stubPolicy struct {
	decline bool
}

func (p stubPolicy) ShouldDecline() bool {
	return p.decline
}
