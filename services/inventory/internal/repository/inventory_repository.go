// Package repository содержит слой доступа к данным Inventory Service.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/fulfillment-saga/pkg/outbox"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/inventory/internal/domain"
)

// InventoryModel — GORM модель таблицы inventories.
type InventoryModel struct {
	ProductID string    `gorm:"column:product_id;type:varchar(36);primaryKey"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Reserved  int       `gorm:"column:reserved_quantity;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы.
func (InventoryModel) TableName() string {
	return "inventories"
}

// ReservationModel — GORM модель таблицы inventory_reservations.
type ReservationModel struct {
	ID              string    `gorm:"column:id;type:varchar(36);primaryKey"`
	SagaLogID       string    `gorm:"column:saga_log_id;type:varchar(36);not null;index:idx_reservations_saga_log"`
	OrderID         string    `gorm:"column:order_id;type:varchar(36);not null"`
	ProductID       string    `gorm:"column:product_id;type:varchar(36);not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	Status          string    `gorm:"column:status;type:varchar(20);not null"`
	FailureReason   *string   `gorm:"column:failure_reason;type:text"`
	IdempotencyKey  string    `gorm:"column:idempotency_key;type:varchar(255);not null;uniqueIndex:uq_reservations_idempotency_key"`
	CompensationKey *string   `gorm:"column:compensation_key;type:varchar(255)"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы.
func (ReservationModel) TableName() string {
	return "inventory_reservations"
}

func inventoryToDomain(m *InventoryModel) *domain.Inventory {
	return &domain.Inventory{
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Reserved:  m.Reserved,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func reservationToModel(r *domain.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:              r.ID,
		SagaLogID:       r.SagaLogID,
		OrderID:         r.OrderID,
		ProductID:       r.ProductID,
		Quantity:        r.Quantity,
		Status:          string(r.Status),
		FailureReason:   r.FailureReason,
		IdempotencyKey:  r.IdempotencyKey,
		CompensationKey: r.CompensationKey,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func reservationToDomain(m *ReservationModel) *domain.Reservation {
	return &domain.Reservation{
		ID:              m.ID,
		SagaLogID:       m.SagaLogID,
		OrderID:         m.OrderID,
		ProductID:       m.ProductID,
		Quantity:        m.Quantity,
		Status:          domain.ReservationStatus(m.Status),
		FailureReason:   m.FailureReason,
		IdempotencyKey:  m.IdempotencyKey,
		CompensationKey: m.CompensationKey,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// InventoryRepository — интерфейс доступа к складу и резервам.
type InventoryRepository interface {
	// GetByProductID возвращает складской остаток товара.
	GetByProductID(ctx context.Context, productID string) (*domain.Inventory, error)

	// EnsureExists создаёт складскую запись, если её ещё нет.
	// Существующая запись не изменяется.
	EnsureExists(ctx context.Context, productID string, initialQuantity int) error

	// Upsert создаёт или перезаписывает складскую запись.
	Upsert(ctx context.Context, inv *domain.Inventory) error

	// GetReservationByIdempotencyKey возвращает резерв по ключу идемпотентности.
	GetReservationByIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error)

	// GetReservationBySagaLogID возвращает резерв по ID саги.
	GetReservationBySagaLogID(ctx context.Context, sagaLogID string) (*domain.Reservation, error)

	// ReserveWithSaga атомарно списывает остаток, создаёт резерв,
	// применяет mutate к саге, перечитанной FOR UPDATE, и пишет outbox
	// событие. Списание условное: при нехватке товара в момент коммита
	// возвращает ErrInsufficientStock и откатывает транзакцию.
	ReserveWithSaga(ctx context.Context, res *domain.Reservation, mutate saga.Mutator, event *outbox.Event) error

	// RecordFailureWithSaga атомарно фиксирует неудавшееся резервирование:
	// FAILED резерв, мутация саги под блокировкой и событие компенсации.
	// Остаток не меняется.
	RecordFailureWithSaga(ctx context.Context, res *domain.Reservation, mutate saga.Mutator, event *outbox.Event) error

	// ReleaseWithSaga атомарно возвращает остаток, снимает резерв,
	// мутирует сагу под блокировкой и пишет outbox событие.
	ReleaseWithSaga(ctx context.Context, res *domain.Reservation, mutate saga.Mutator, event *outbox.Event) error
}

// inventoryRepository — GORM реализация InventoryRepository.
type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository создаёт репозиторий склада.
func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) GetByProductID(ctx context.Context, productID string) (*domain.Inventory, error) {
	var model InventoryModel

	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInventoryNotFound
		}
		return nil, err
	}

	return inventoryToDomain(&model), nil
}

func (r *inventoryRepository) EnsureExists(ctx context.Context, productID string, initialQuantity int) error {
	model := InventoryModel{
		ProductID: productID,
		Quantity:  initialQuantity,
	}

	// INSERT ... ON DUPLICATE KEY UPDATE product_id = product_id (no-op)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
}

func (r *inventoryRepository) Upsert(ctx context.Context, inv *domain.Inventory) error {
	model := InventoryModel{
		ProductID: inv.ProductID,
		Quantity:  inv.Quantity,
		Reserved:  inv.Reserved,
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "reserved_quantity"}),
		}).
		Create(&model).Error
}

func (r *inventoryRepository) GetReservationByIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error) {
	return r.findReservation(ctx, "idempotency_key = ?", key)
}

func (r *inventoryRepository) GetReservationBySagaLogID(ctx context.Context, sagaLogID string) (*domain.Reservation, error) {
	return r.findReservation(ctx, "saga_log_id = ?", sagaLogID)
}

func (r *inventoryRepository) findReservation(ctx context.Context, query string, arg any) (*domain.Reservation, error) {
	var model ReservationModel

	err := r.db.WithContext(ctx).
		Where(query, arg).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}

	return reservationToDomain(&model), nil
}

func (r *inventoryRepository) ReserveWithSaga(ctx context.Context, res *domain.Reservation, mutate saga.Mutator, event *outbox.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Условное списание: конкурентные резервы разрешаются БД,
		// не приложением
		result := tx.Model(&InventoryModel{}).
			Where("product_id = ? AND quantity >= ?", res.ProductID, res.Quantity).
			Updates(map[string]any{
				"quantity":          gorm.Expr("quantity - ?", res.Quantity),
				"reserved_quantity": gorm.Expr("reserved_quantity + ?", res.Quantity),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInsufficientStock
		}

		if err := tx.Create(reservationToModel(res)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return saga.ErrDuplicateIdempotencyKey
			}
			return err
		}

		if _, err := saga.MutateTx(tx, res.SagaLogID, mutate); err != nil {
			return err
		}

		return outbox.AppendTx(tx, event)
	})
}

func (r *inventoryRepository) RecordFailureWithSaga(ctx context.Context, res *domain.Reservation, mutate saga.Mutator, event *outbox.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reservationToModel(res)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return saga.ErrDuplicateIdempotencyKey
			}
			return err
		}

		if _, err := saga.MutateTx(tx, res.SagaLogID, mutate); err != nil {
			return err
		}

		return outbox.AppendTx(tx, event)
	})
}

func (r *inventoryRepository) ReleaseWithSaga(ctx context.Context, res *domain.Reservation, mutate saga.Mutator, event *outbox.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&InventoryModel{}).
			Where("product_id = ?", res.ProductID).
			Updates(map[string]any{
				"quantity":          gorm.Expr("quantity + ?", res.Quantity),
				"reserved_quantity": gorm.Expr("GREATEST(reserved_quantity - ?, 0)", res.Quantity),
			}).Error
		if err != nil {
			return err
		}

		err = tx.Model(&ReservationModel{}).
			Where("id = ?", res.ID).
			Updates(map[string]any{
				"status":           string(res.Status),
				"compensation_key": res.CompensationKey,
			}).Error
		if err != nil {
			return err
		}

		if _, err := saga.MutateTx(tx, res.SagaLogID, mutate); err != nil {
			return err
		}

		return outbox.AppendTx(tx, event)
	})
}
