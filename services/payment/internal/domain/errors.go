package domain

import "errors"

// Доменные ошибки Payment Service.
var (
	// ErrPaymentNotFound — платёж не найден.
	ErrPaymentNotFound = errors.New("платёж не найден")

	// ErrPaymentNotRefundable — вернуть можно только успешный платёж.
	ErrPaymentNotRefundable = errors.New("платёж нельзя вернуть в текущем статусе")

	// ErrInvalidAmount — сумма платежа должна быть положительной.
	ErrInvalidAmount = errors.New("сумма платежа должна быть больше нуля")
)
