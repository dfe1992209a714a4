package domain

import "errors"

// Доменные ошибки Inventory Service.
var (
	// ErrInventoryNotFound — товар не найден на складе.
	ErrInventoryNotFound = errors.New("товар не найден на складе")

	// ErrInsufficientStock — недостаточно товара для резервирования.
	ErrInsufficientStock = errors.New("недостаточно товара на складе")

	// ErrReservationNotFound — резерв не найден.
	ErrReservationNotFound = errors.New("резерв не найден")

	// ErrReservationNotReleasable — снять можно только активный резерв.
	ErrReservationNotReleasable = errors.New("резерв нельзя снять в текущем статусе")

	// ErrInvalidQuantity — количество должно быть положительным.
	ErrInvalidQuantity = errors.New("количество должно быть больше нуля")
)
