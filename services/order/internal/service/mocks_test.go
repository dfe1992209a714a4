package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/order/internal/domain"
)

// MockOrderRepository — мок репозитория заказов.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) CreateWithSaga(ctx context.Context, order *domain.Order, log *saga.SagaLog, event *outbox.Event) error {
	args := m.Called(ctx, order, log, event)
	return args.Error(0)
}

func (m *MockOrderRepository) CancelWithSaga(ctx context.Context, order *domain.Order, mutate saga.Mutator) error {
	args := m.Called(ctx, order, mutate)
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
