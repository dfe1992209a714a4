// Package repository содержит слой доступа к данным Payment Service.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/payment/internal/domain"
)

// PaymentModel — GORM модель таблицы payments.
type PaymentModel struct {
	ID              string    `gorm:"column:id;type:varchar(36);primaryKey"`
	SagaLogID       string    `gorm:"column:saga_log_id;type:varchar(36);not null;index:idx_payments_saga_log"`
	OrderID         string    `gorm:"column:order_id;type:varchar(36);not null"`
	CustomerID      string    `gorm:"column:customer_id;type:varchar(36);not null"`
	Amount          int64     `gorm:"column:amount;not null"`
	Status          string    `gorm:"column:status;type:varchar(20);not null"`
	FailureReason   *string   `gorm:"column:failure_reason;type:text"`
	IdempotencyKey  string    `gorm:"column:idempotency_key;type:varchar(255);not null;uniqueIndex:uq_payments_idempotency_key"`
	CompensationKey *string   `gorm:"column:compensation_key;type:varchar(255)"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы.
func (PaymentModel) TableName() string {
	return "payments"
}

func toModel(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:              p.ID,
		SagaLogID:       p.SagaLogID,
		OrderID:         p.OrderID,
		CustomerID:      p.CustomerID,
		Amount:          p.Amount,
		Status:          string(p.Status),
		FailureReason:   p.FailureReason,
		IdempotencyKey:  p.IdempotencyKey,
		CompensationKey: p.CompensationKey,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toDomain(m *PaymentModel) *domain.Payment {
	return &domain.Payment{
		ID:              m.ID,
		SagaLogID:       m.SagaLogID,
		OrderID:         m.OrderID,
		CustomerID:      m.CustomerID,
		Amount:          m.Amount,
		Status:          domain.PaymentStatus(m.Status),
		FailureReason:   m.FailureReason,
		IdempotencyKey:  m.IdempotencyKey,
		CompensationKey: m.CompensationKey,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// PaymentRepository — интерфейс доступа к платежам.
type PaymentRepository interface {
	// GetByID возвращает платёж по ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByIdempotencyKey возвращает платёж по ключу идемпотентности.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)

	// GetBySagaLogID возвращает платёж по ID саги.
	GetBySagaLogID(ctx context.Context, sagaLogID string) (*domain.Payment, error)

	// CreateWithSaga атомарно создаёт платёж, применяет mutate к саге,
	// перечитанной FOR UPDATE, и пишет outbox событие. Результат
	// (COMPLETED или DECLINED) фиксируется одинаково — различается
	// только содержимое.
	CreateWithSaga(ctx context.Context, payment *domain.Payment, mutate saga.Mutator, event *outbox.Event) error

	// RefundWithSaga атомарно возвращает платёж, мутирует сагу
	// под блокировкой и пишет событие OrderCompensated.
	RefundWithSaga(ctx context.Context, payment *domain.Payment, mutate saga.Mutator, event *outbox.Event) error
}

// paymentRepository — GORM реализация PaymentRepository.
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository создаёт репозиторий платежей.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *paymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

func (r *paymentRepository) GetBySagaLogID(ctx context.Context, sagaLogID string) (*domain.Payment, error) {
	return r.findOne(ctx, "saga_log_id = ?", sagaLogID)
}

func (r *paymentRepository) findOne(ctx context.Context, query string, arg any) (*domain.Payment, error) {
	var model PaymentModel

	err := r.db.WithContext(ctx).
		Where(query, arg).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	return toDomain(&model), nil
}

func (r *paymentRepository) CreateWithSaga(ctx context.Context, payment *domain.Payment, mutate saga.Mutator, event *outbox.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toModel(payment)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return saga.ErrDuplicateIdempotencyKey
			}
			return err
		}

		if _, err := saga.MutateTx(tx, payment.SagaLogID, mutate); err != nil {
			return err
		}

		return outbox.AppendTx(tx, event)
	})
}

func (r *paymentRepository) RefundWithSaga(ctx context.Context, payment *domain.Payment, mutate saga.Mutator, event *outbox.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&PaymentModel{}).
			Where("id = ?", payment.ID).
			Updates(map[string]any{
				"status":           string(payment.Status),
				"compensation_key": payment.CompensationKey,
			}).Error
		if err != nil {
			return err
		}

		if _, err := saga.MutateTx(tx, payment.SagaLogID, mutate); err != nil {
			return err
		}

		return outbox.AppendTx(tx, event)
	})
}
