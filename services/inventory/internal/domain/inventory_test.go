package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventory_Reserve(t *testing.T) {
	inv := NewInventory("product-1", 100)

	err := inv.Reserve(30)
	require.NoError(t, err)

	assert.Equal(t, 70, inv.Quantity)
	assert.Equal(t, 30, inv.Reserved)
}

func TestInventory_Reserve_InsufficientStock(t *testing.T) {
	inv := NewInventory("product-1", 10)

	err := inv.Reserve(11)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Счётчики не изменились
	assert.Equal(t, 10, inv.Quantity)
	assert.Equal(t, 0, inv.Reserved)
}

func TestInventory_Reserve_ExactStock(t *testing.T) {
	inv := NewInventory("product-1", 10)

	require.NoError(t, inv.Reserve(10))
	assert.Equal(t, 0, inv.Quantity)
	assert.Equal(t, 10, inv.Reserved)
}

func TestInventory_Reserve_InvalidQuantity(t *testing.T) {
	inv := NewInventory("product-1", 10)

	assert.ErrorIs(t, inv.Reserve(0), ErrInvalidQuantity)
	assert.ErrorIs(t, inv.Reserve(-1), ErrInvalidQuantity)
}

func TestInventory_Release(t *testing.T) {
	inv := NewInventory("product-1", 100)
	require.NoError(t, inv.Reserve(30))

	err := inv.Release(30)
	require.NoError(t, err)

	assert.Equal(t, 100, inv.Quantity)
	assert.Equal(t, 0, inv.Reserved)
}

func TestInventory_Release_ReservedNeverNegative(t *testing.T) {
	inv := NewInventory("product-1", 100)

	// Release без предшествующего резерва: остаток растёт,
	// резерв не уходит в минус
	require.NoError(t, inv.Release(5))
	assert.Equal(t, 105, inv.Quantity)
	assert.Equal(t, 0, inv.Reserved)
}

func TestReservation_Release(t *testing.T) {
	r := NewReservation("res-1", "saga-1", "order-1", "product-1", 3, "saga-1-PaymentProcessed")

	err := r.Release("saga-1-OrderShipped")
	require.NoError(t, err)

	assert.Equal(t, ReservationStatusReleased, r.Status)
	require.NotNil(t, r.CompensationKey)
	assert.Equal(t, "saga-1-OrderShipped", *r.CompensationKey)
}

func TestReservation_Release_Twice(t *testing.T) {
	r := NewReservation("res-1", "saga-1", "order-1", "product-1", 3, "key")
	require.NoError(t, r.Release("comp-key"))

	assert.ErrorIs(t, r.Release("comp-key"), ErrReservationNotReleasable)
}

func TestReservation_Release_Failed(t *testing.T) {
	// Неудавшийся резерв снимать нечего
	r := NewFailedReservation("res-1", "saga-1", "order-1", "product-1", 3, "key", "недостаточно товара")

	assert.ErrorIs(t, r.Release("comp-key"), ErrReservationNotReleasable)
}
