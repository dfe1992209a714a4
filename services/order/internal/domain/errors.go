package domain

import "errors"

// Доменные ошибки Order Service.
var (
	// ErrOrderNotFound — заказ не найден.
	ErrOrderNotFound = errors.New("заказ не найден")

	// ErrOrderCannotCancel — заказ нельзя отменить в текущем статусе.
	ErrOrderCannotCancel = errors.New("заказ нельзя отменить в текущем статусе")

	// ErrInvalidCustomerID — пустой ID покупателя.
	ErrInvalidCustomerID = errors.New("customer_id не может быть пустым")

	// ErrInvalidProductID — пустой ID товара.
	ErrInvalidProductID = errors.New("product_id не может быть пустым")

	// ErrInvalidQuantity — количество должно быть положительным.
	ErrInvalidQuantity = errors.New("количество должно быть больше нуля")

	// ErrInvalidTotalPrice — сумма должна быть положительной.
	ErrInvalidTotalPrice = errors.New("сумма заказа должна быть больше нуля")
)
