// Package domain содержит бизнес-сущности и доменные ошибки Inventory Service.
package domain

import "time"

// DefaultInitialQuantity — стартовый остаток автоматически создаваемого товара.
// Неизвестный товар получает остаток при первом обращении: система
// демонстрационная, склад самонаполняющийся.
const DefaultInitialQuantity = 100

// Inventory — складской остаток товара.
// Учёт ведётся двумя счётчиками: доступный остаток и активный резерв.
type Inventory struct {
	ProductID string    // ID товара (первичный ключ)
	Quantity  int       // Доступный остаток
	Reserved  int       // Суммарный активный резерв
	CreatedAt time.Time // Дата создания записи
	UpdatedAt time.Time // Дата последнего изменения
}

// NewInventory создаёт складскую запись со стартовым остатком.
func NewInventory(productID string, quantity int) *Inventory {
	now := time.Now()
	return &Inventory{
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanReserve проверяет, достаточно ли остатка для резервирования.
func (i *Inventory) CanReserve(quantity int) bool {
	return i.Quantity >= quantity
}

// Reserve резервирует количество: остаток уменьшается, резерв растёт.
func (i *Inventory) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !i.CanReserve(quantity) {
		return ErrInsufficientStock
	}

	i.Quantity -= quantity
	i.Reserved += quantity
	i.UpdatedAt = time.Now()
	return nil
}

// Release снимает резерв: остаток возвращается.
// Резерв не уходит в минус при расхождении счётчиков.
func (i *Inventory) Release(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	i.Quantity += quantity
	i.Reserved -= quantity
	if i.Reserved < 0 {
		i.Reserved = 0
	}
	i.UpdatedAt = time.Now()
	return nil
}

// ReservationStatus — статус резерва.
type ReservationStatus string

const (
	// ReservationStatusReserved — резерв активен.
	ReservationStatusReserved ReservationStatus = "RESERVED"

	// ReservationStatusFailed — резервирование не удалось.
	// Запись сохраняется: replay события возвращает тот же отказ.
	ReservationStatusFailed ReservationStatus = "FAILED"

	// ReservationStatusReleased — резерв снят компенсацией саги.
	ReservationStatusReleased ReservationStatus = "RELEASED"
)

// Reservation — резерв товара под конкретную сагу.
// Складская строка общая для всех саг, поэтому идемпотентность
// резервирования закреплена за отдельной записью резерва.
type Reservation struct {
	ID              string            // Уникальный идентификатор резерва (UUID)
	SagaLogID       string            // ID саги
	OrderID         string            // ID заказа
	ProductID       string            // ID товара
	Quantity        int               // Зарезервированное количество
	Status          ReservationStatus // Текущий статус резерва
	FailureReason   *string           // Причина отказа (nil для успешных)
	IdempotencyKey  string            // Ключ идемпотентности резервирования
	CompensationKey *string           // Ключ идемпотентности снятия (nil до release)
	CreatedAt       time.Time         // Дата создания
	UpdatedAt       time.Time         // Дата последнего обновления
}

// NewReservation создаёт активный резерв.
func NewReservation(id, sagaLogID, orderID, productID string, quantity int, idempotencyKey string) *Reservation {
	now := time.Now()
	return &Reservation{
		ID:             id,
		SagaLogID:      sagaLogID,
		OrderID:        orderID,
		ProductID:      productID,
		Quantity:       quantity,
		Status:         ReservationStatusReserved,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewFailedReservation создаёт запись неудавшегося резервирования.
func NewFailedReservation(id, sagaLogID, orderID, productID string, quantity int, idempotencyKey, reason string) *Reservation {
	r := NewReservation(id, sagaLogID, orderID, productID, quantity, idempotencyKey)
	r.Status = ReservationStatusFailed
	r.FailureReason = &reason
	return r
}

// CanRelease проверяет, можно ли снять резерв.
func (r *Reservation) CanRelease() bool {
	return r.Status == ReservationStatusReserved
}

// Release снимает резерв компенсацией саги.
func (r *Reservation) Release(compensationKey string) error {
	if !r.CanRelease() {
		return ErrReservationNotReleasable
	}

	r.Status = ReservationStatusReleased
	r.CompensationKey = &compensationKey
	r.UpdatedAt = time.Now()
	return nil
}
