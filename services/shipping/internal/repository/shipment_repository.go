// Package repository содержит слой доступа к данным Shipping Service.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/shipping/internal/domain"
)

// ShipmentModel — GORM модель таблицы shipments.
type ShipmentModel struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	SagaLogID      string    `gorm:"column:saga_log_id;type:varchar(36);not null;index:idx_shipments_saga_log"`
	OrderID        string    `gorm:"column:order_id;type:varchar(36);not null"`
	CustomerID     string    `gorm:"column:customer_id;type:varchar(36);not null"`
	Status         string    `gorm:"column:status;type:varchar(20);not null"`
	CancelReason   *string   `gorm:"column:cancel_reason;type:text"`
	IdempotencyKey string    `gorm:"column:idempotency_key;type:varchar(255);not null;uniqueIndex:uq_shipments_idempotency_key"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы.
func (ShipmentModel) TableName() string {
	return "shipments"
}

func toModel(s *domain.Shipment) *ShipmentModel {
	return &ShipmentModel{
		ID:             s.ID,
		SagaLogID:      s.SagaLogID,
		OrderID:        s.OrderID,
		CustomerID:     s.CustomerID,
		Status:         string(s.Status),
		CancelReason:   s.CancelReason,
		IdempotencyKey: s.IdempotencyKey,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toDomain(m *ShipmentModel) *domain.Shipment {
	return &domain.Shipment{
		ID:             m.ID,
		SagaLogID:      m.SagaLogID,
		OrderID:        m.OrderID,
		CustomerID:     m.CustomerID,
		Status:         domain.ShipmentStatus(m.Status),
		CancelReason:   m.CancelReason,
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ShipmentRepository — интерфейс доступа к доставкам.
type ShipmentRepository interface {
	// GetByID возвращает доставку по ID.
	GetByID(ctx context.Context, id string) (*domain.Shipment, error)

	// GetByIdempotencyKey возвращает доставку по ключу идемпотентности.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Shipment, error)

	// GetBySagaLogID возвращает доставку по ID саги.
	GetBySagaLogID(ctx context.Context, sagaLogID string) (*domain.Shipment, error)

	// DeliverWithSaga атомарно создаёт доставку и применяет mutate к саге,
	// перечитанной FOR UPDATE. Outbox событие не пишется: доставка —
	// последний шаг forward цепочки, HTTP получателя у него нет.
	DeliverWithSaga(ctx context.Context, shipment *domain.Shipment, mutate saga.Mutator) error

	// CancelWithSaga атомарно фиксирует отмену доставки: CANCELLED
	// запись, мутация саги под блокировкой и событие компенсации.
	CancelWithSaga(ctx context.Context, shipment *domain.Shipment, mutate saga.Mutator, event *outbox.Event) error
}

// shipmentRepository — GORM реализация ShipmentRepository.
type shipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository создаёт репозиторий доставок.
func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

func (r *shipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *shipmentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Shipment, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

func (r *shipmentRepository) GetBySagaLogID(ctx context.Context, sagaLogID string) (*domain.Shipment, error) {
	return r.findOne(ctx, "saga_log_id = ?", sagaLogID)
}

func (r *shipmentRepository) findOne(ctx context.Context, query string, arg any) (*domain.Shipment, error) {
	var model ShipmentModel

	err := r.db.WithContext(ctx).
		Where(query, arg).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, err
	}

	return toDomain(&model), nil
}

func (r *shipmentRepository) DeliverWithSaga(ctx context.Context, shipment *domain.Shipment, mutate saga.Mutator) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toModel(shipment)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return saga.ErrDuplicateIdempotencyKey
			}
			return err
		}

		_, err := saga.MutateTx(tx, shipment.SagaLogID, mutate)
		return err
	})
}

func (r *shipmentRepository) CancelWithSaga(ctx context.Context, shipment *domain.Shipment, mutate saga.Mutator, event *outbox.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toModel(shipment)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return saga.ErrDuplicateIdempotencyKey
			}
			return err
		}

		if _, err := saga.MutateTx(tx, shipment.SagaLogID, mutate); err != nil {
			return err
		}

		return outbox.AppendTx(tx, event)
	})
}
