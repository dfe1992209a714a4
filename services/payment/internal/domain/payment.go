// Package domain содержит бизнес-сущности и доменные ошибки Payment Service.
package domain

import "time"

// PaymentStatus — статус платежа.
type PaymentStatus string

const (
	// PaymentStatusCompleted — платёж проведён успешно.
	PaymentStatusCompleted PaymentStatus = "COMPLETED"

	// PaymentStatusDeclined — платёж отклонён.
	// Запись сохраняется: повторная доставка события возвращает
	// тот же результат вместо нового броска кубика.
	PaymentStatusDeclined PaymentStatus = "DECLINED"

	// PaymentStatusRefunded — платёж возвращён компенсацией саги.
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Payment — платёж по заказу.
type Payment struct {
	ID              string        // Уникальный идентификатор платежа (UUID)
	SagaLogID       string        // ID саги
	OrderID         string        // ID оплачиваемого заказа
	CustomerID      string        // ID покупателя
	Amount          int64         // Сумма в минимальных единицах
	Status          PaymentStatus // Текущий статус платежа
	FailureReason   *string       // Причина отклонения (nil для успешных)
	IdempotencyKey  string        // Ключ идемпотентности обработки
	CompensationKey *string       // Ключ идемпотентности возврата (nil до refund)
	CreatedAt       time.Time     // Дата создания
	UpdatedAt       time.Time     // Дата последнего обновления
}

// NewPayment создаёт платёж со статусом COMPLETED.
func NewPayment(id, sagaLogID, orderID, customerID string, amount int64, idempotencyKey string) *Payment {
	now := time.Now()
	return &Payment{
		ID:             id,
		SagaLogID:      sagaLogID,
		OrderID:        orderID,
		CustomerID:     customerID,
		Amount:         amount,
		Status:         PaymentStatusCompleted,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewDeclinedPayment создаёт запись отклонённого платежа.
func NewDeclinedPayment(id, sagaLogID, orderID, customerID string, amount int64, idempotencyKey, reason string) *Payment {
	p := NewPayment(id, sagaLogID, orderID, customerID, amount, idempotencyKey)
	p.Status = PaymentStatusDeclined
	p.FailureReason = &reason
	return p
}

// Validate проверяет корректность полей платежа.
func (p *Payment) Validate() error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CanRefund проверяет, можно ли вернуть платёж.
func (p *Payment) CanRefund() bool {
	return p.Status == PaymentStatusCompleted
}

// Refund возвращает платёж компенсацией саги.
func (p *Payment) Refund(compensationKey string) error {
	if !p.CanRefund() {
		return ErrPaymentNotRefundable
	}

	p.Status = PaymentStatusRefunded
	p.CompensationKey = &compensationKey
	p.UpdatedAt = time.Now()
	return nil
}
