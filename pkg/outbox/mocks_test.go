package outbox

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockRepository — мок репозитория outbox для unit-тестов.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindUnpublished(ctx context.Context, source string, limit int) ([]*Event, error) {
	args := m.Called(ctx, source, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Event), args.Error(1)
}

func (m *MockRepository) MarkPublished(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockRepository) FindTerminallyFailed(ctx context.Context, source string, limit int) ([]*Event, error) {
	args := m.Called(ctx, source, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Event), args.Error(1)
}

func (m *MockRepository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockMirror — мок audit-зеркала.
type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) Mirror(ctx context.Context, aggregateID, eventType, sourceService string, payload []byte) error {
	args := m.Called(ctx, aggregateID, eventType, sourceService, payload)
	return args.Error(0)
}
