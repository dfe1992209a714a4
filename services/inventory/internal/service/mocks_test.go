package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/inventory/internal/domain"
)

// MockInventoryRepository — мок репозитория склада.
type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) GetByProductID(ctx context.Context, productID string) (*domain.Inventory, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Inventory), args.Error(1)
}

func (m *MockInventoryRepository) EnsureExists(ctx context.Context, productID string, initialQuantity int) error {
	args := m.Called(ctx, productID, initialQuantity)
	return args.Error(0)
}

func (m *MockInventoryRepository) Upsert(ctx context.Context, inv *domain.Inventory) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInventoryRepository) GetReservationByIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockInventoryRepository) GetReservationBySagaLogID(ctx context.Context, sagaLogID string) (*domain.Reservation, error) {
	args := m.Called(ctx, sagaLogID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockInventoryRepository) ReserveWithSaga(ctx context.Context, res *domain.Reservation, mutate saga.Mutator, event *outbox.Event) error {
	args := m.Called(ctx, res, mutate, event)
	return args.Error(0)
}

func (m *MockInventoryRepository) RecordFailureWithSaga(ctx context.Context, res *domain.Reservation, mutate saga.Mutator, event *outbox.Event) error {
	args := m.Called(ctx, res, mutate, event)
	return args.Error(0)
}

func (m *MockInventoryRepository) ReleaseWithSaga(ctx context.Context, res *domain.Reservation, mutate saga.Mutator, event *outbox.Event) error {
	args := m.Called(ctx, res, mutate, event)
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
