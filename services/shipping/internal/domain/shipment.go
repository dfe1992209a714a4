// Package domain содержит бизнес-сущности и доменные ошибки Shipping Service.
package domain

import (
	"errors"
	"time"
)

// Доменные ошибки Shipping Service.
var (
	// ErrShipmentNotFound — доставка не найдена.
	ErrShipmentNotFound = errors.New("доставка не найдена")

	// ErrShipmentAlreadyDelivered — заказ уже доставлен, отмена невозможна.
	ErrShipmentAlreadyDelivered = errors.New("заказ уже доставлен, отмена невозможна")
)

// ShipmentStatus — статус доставки.
type ShipmentStatus string

const (
	// ShipmentStatusDelivered — заказ доставлен, сага завершена.
	ShipmentStatusDelivered ShipmentStatus = "DELIVERED"

	// ShipmentStatusCancelled — доставка отменена до завершения саги.
	// Запись запускает compensation цепочку.
	ShipmentStatusCancelled ShipmentStatus = "CANCELLED"
)

// Shipment — запись о доставке заказа.
type Shipment struct {
	ID             string         // Уникальный идентификатор доставки (UUID)
	SagaLogID      string         // ID саги
	OrderID        string         // ID заказа
	CustomerID     string         // ID покупателя
	Status         ShipmentStatus // Текущий статус
	CancelReason   *string        // Причина отмены (nil для доставленных)
	IdempotencyKey string         // Ключ идемпотентности операции
	CreatedAt      time.Time      // Дата создания
	UpdatedAt      time.Time      // Дата последнего обновления
}

// NewShipment создаёт запись о выполненной доставке.
func NewShipment(id, sagaLogID, orderID, customerID, idempotencyKey string) *Shipment {
	now := time.Now()
	return &Shipment{
		ID:             id,
		SagaLogID:      sagaLogID,
		OrderID:        orderID,
		CustomerID:     customerID,
		Status:         ShipmentStatusDelivered,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewCancelledShipment создаёт запись об отменённой доставке.
func NewCancelledShipment(id, sagaLogID, orderID, customerID, idempotencyKey, reason string) *Shipment {
	s := NewShipment(id, sagaLogID, orderID, customerID, idempotencyKey)
	s.Status = ShipmentStatusCancelled
	s.CancelReason = &reason
	return s
}
