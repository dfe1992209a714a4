// Package domain содержит бизнес-сущности и доменные ошибки Order Service.
package domain

import (
	"strings"
	"time"
)

// OrderStatus — статус заказа.
type OrderStatus string

const (
	// OrderStatusCreated — заказ создан, сага выполняется.
	// Финальный статус успешной саги: факт доставки отражается
	// статусом саги, не заказа.
	OrderStatusCreated OrderStatus = "CREATED"

	// OrderStatusCancelled — заказ отменён компенсацией саги.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order — заказ в системе.
// Доменная сущность без зависимостей от инфраструктуры.
type Order struct {
	ID              string      // Уникальный идентификатор заказа (UUID)
	SagaLogID       string      // ID саги, создавшей заказ
	CustomerID      string      // ID покупателя
	ProductID       string      // ID товара
	Quantity        int         // Количество единиц товара
	TotalPrice      int64       // Сумма в минимальных единицах (копейки/центы)
	Status          OrderStatus // Текущий статус заказа
	IdempotencyKey  string      // Ключ идемпотентности создания
	CompensationKey *string     // Ключ идемпотентности компенсации (nil до отмены)
	CreatedAt       time.Time   // Дата создания заказа
	UpdatedAt       time.Time   // Дата последнего обновления
}

// NewOrder создаёт заказ в статусе CREATED.
func NewOrder(id, sagaLogID, customerID, productID string, quantity int, totalPrice int64, idempotencyKey string) *Order {
	now := time.Now()
	return &Order{
		ID:             id,
		SagaLogID:      sagaLogID,
		CustomerID:     customerID,
		ProductID:      productID,
		Quantity:       quantity,
		TotalPrice:     totalPrice,
		Status:         OrderStatusCreated,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate проверяет корректность полей заказа.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.CustomerID) == "" {
		return ErrInvalidCustomerID
	}

	if strings.TrimSpace(o.ProductID) == "" {
		return ErrInvalidProductID
	}

	if o.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	if o.TotalPrice <= 0 {
		return ErrInvalidTotalPrice
	}

	return nil
}

// CanCancel проверяет, можно ли отменить заказ.
// Завершённый заказ отменить нельзя; повторная отмена — no-op на уровне сервиса.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusCreated
}

// Cancel отменяет заказ компенсацией саги.
// compensationKey фиксирует событие, вызвавшее отмену.
func (o *Order) Cancel(compensationKey string) error {
	if !o.CanCancel() {
		return ErrOrderCannotCancel
	}

	o.Status = OrderStatusCancelled
	o.CompensationKey = &compensationKey
	o.UpdatedAt = time.Now()
	return nil
}
