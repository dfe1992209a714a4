// Package repository содержит слой доступа к данным Order Service.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/order/internal/domain"
)

// OrderModel — GORM модель таблицы orders.
type OrderModel struct {
	ID              string    `gorm:"column:id;type:varchar(36);primaryKey"`
	SagaLogID       string    `gorm:"column:saga_log_id;type:varchar(36);not null;index:idx_orders_saga_log"`
	CustomerID      string    `gorm:"column:customer_id;type:varchar(36);not null"`
	ProductID       string    `gorm:"column:product_id;type:varchar(36);not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	TotalPrice      int64     `gorm:"column:total_price;not null"`
	Status          string    `gorm:"column:status;type:varchar(20);not null"`
	IdempotencyKey  string    `gorm:"column:idempotency_key;type:varchar(255);not null;uniqueIndex:uq_orders_idempotency_key"`
	CompensationKey *string   `gorm:"column:compensation_key;type:varchar(255)"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы.
func (OrderModel) TableName() string {
	return "orders"
}

func toModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:              o.ID,
		SagaLogID:       o.SagaLogID,
		CustomerID:      o.CustomerID,
		ProductID:       o.ProductID,
		Quantity:        o.Quantity,
		TotalPrice:      o.TotalPrice,
		Status:          string(o.Status),
		IdempotencyKey:  o.IdempotencyKey,
		CompensationKey: o.CompensationKey,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toDomain(m *OrderModel) *domain.Order {
	return &domain.Order{
		ID:              m.ID,
		SagaLogID:       m.SagaLogID,
		CustomerID:      m.CustomerID,
		ProductID:       m.ProductID,
		Quantity:        m.Quantity,
		TotalPrice:      m.TotalPrice,
		Status:          domain.OrderStatus(m.Status),
		IdempotencyKey:  m.IdempotencyKey,
		CompensationKey: m.CompensationKey,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// OrderRepository — интерфейс доступа к заказам.
type OrderRepository interface {
	// GetByID возвращает заказ по ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByIdempotencyKey возвращает заказ по ключу идемпотентности.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)

	// CreateWithSaga атомарно создаёт заказ, сагу и outbox событие.
	// Возвращает saga.ErrDuplicateIdempotencyKey при повторном ключе.
	CreateWithSaga(ctx context.Context, order *domain.Order, log *saga.SagaLog, event *outbox.Event) error

	// CancelWithSaga атомарно отменяет заказ и применяет mutate к саге,
	// перечитанной FOR UPDATE.
	CancelWithSaga(ctx context.Context, order *domain.Order, mutate saga.Mutator) error
}

// orderRepository — GORM реализация OrderRepository.
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создаёт репозиторий заказов.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return toDomain(&model), nil
}

func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	var model OrderModel

	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return toDomain(&model), nil
}

// CreateWithSaga — transactional outbox: заказ, сага и событие
// записываются в одной транзакции. Событие существует тогда и только
// тогда, когда закоммичен заказ.
func (r *orderRepository) CreateWithSaga(ctx context.Context, order *domain.Order, log *saga.SagaLog, event *outbox.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saga.CreateTx(tx, log); err != nil {
			return err
		}

		if err := tx.Create(toModel(order)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return saga.ErrDuplicateIdempotencyKey
			}
			return err
		}

		return outbox.AppendTx(tx, event)
	})
}

func (r *orderRepository) CancelWithSaga(ctx context.Context, order *domain.Order, mutate saga.Mutator) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&OrderModel{}).
			Where("id = ?", order.ID).
			Updates(map[string]any{
				"status":           string(order.Status),
				"compensation_key": order.CompensationKey,
			}).Error
		if err != nil {
			return err
		}

		_, err = saga.MutateTx(tx, order.SagaLogID, mutate)
		return err
	})
}
