package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/shipping/internal/domain"
)

// MockShipmentRepository — мок репозитория доставок.
type MockShipmentRepository struct {
	mock.Mock
}

func (m *MockShipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Shipment, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) GetBySagaLogID(ctx context.Context, sagaLogID string) (*domain.Shipment, error) {
	args := m.Called(ctx, sagaLogID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) DeliverWithSaga(ctx context.Context, shipment *domain.Shipment, mutate saga.Mutator) error {
	args := m.Called(ctx, shipment, mutate)
	return args.Error(0)
}

func (m *MockShipmentRepository) CancelWithSaga(ctx context.Context, shipment *domain.Shipment, mutate saga.Mutator, event *outbox.Event) error {
	args := m.Called(ctx, shipment, mutate, event)
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

// MockMirror — мок audit зеркала.
type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) Mirror(ctx context.Context, aggregateID, eventType, sourceService string, payload []byte) error {
	args := m.Called(ctx, aggregateID, eventType, sourceService, payload)
	return args.Error(0)
}
