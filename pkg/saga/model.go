package saga

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// GORM модель
// =============================================================================

// SagaLogModel — GORM модель таблицы saga_logs.
// Шаги хранятся как JSON массив: порядок шагов — часть данных.
type SagaLogModel struct {
	ID             string          `gorm:"column:id;type:varchar(36);primaryKey"`
	IdempotencyKey string          `gorm:"column:idempotency_key;type:varchar(255);not null;uniqueIndex:uq_saga_logs_idempotency_key"`
	CustomerID     string          `gorm:"column:customer_id;type:varchar(36);not null"`
	ProductID      string          `gorm:"column:product_id;type:varchar(36);not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	TotalPrice     int64           `gorm:"column:total_price;not null"`
	OrderID        *string         `gorm:"column:order_id;type:varchar(36)"`
	Status         string          `gorm:"column:status;type:varchar(20);not null"`
	Steps          json.RawMessage `gorm:"column:steps;type:json;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы.
func (SagaLogModel) TableName() string {
	return "saga_logs"
}

// toModel конвертирует доменную сущность в GORM модель.
func toModel(s *SagaLog) (*SagaLogModel, error) {
	steps, err := json.Marshal(s.Steps)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации шагов саги: %w", err)
	}

	return &SagaLogModel{
		ID:             s.ID,
		IdempotencyKey: s.IdempotencyKey,
		CustomerID:     s.CustomerID,
		ProductID:      s.ProductID,
		Quantity:       s.Quantity,
		TotalPrice:     s.TotalPrice,
		OrderID:        s.OrderID,
		Status:         string(s.Status),
		Steps:          steps,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, nil
}

// toDomain конвертирует GORM модель в доменную сущность.
func toDomain(m *SagaLogModel) (*SagaLog, error) {
	var steps []Step
	if err := json.Unmarshal(m.Steps, &steps); err != nil {
		return nil, fmt.Errorf("ошибка десериализации шагов саги %s: %w", m.ID, err)
	}

	return &SagaLog{
		ID:             m.ID,
		IdempotencyKey: m.IdempotencyKey,
		CustomerID:     m.CustomerID,
		ProductID:      m.ProductID,
		Quantity:       m.Quantity,
		TotalPrice:     m.TotalPrice,
		OrderID:        m.OrderID,
		Status:         Status(m.Status),
		Steps:          steps,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}
