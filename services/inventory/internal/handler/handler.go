// Package handler содержит HTTP обработчики Inventory Service.
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"example.com/fulfillment-saga/pkg/api"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/inventory/internal/domain"
	"example.com/fulfillment-saga/services/inventory/internal/service"
)

// InitializeInventoryRequest — запрос инициализации складского остатка.
type InitializeInventoryRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// InventoryResponse — представление складского остатка в ответах API.
type InventoryResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
}

func inventoryResponse(inv *domain.Inventory) InventoryResponse {
	return InventoryResponse{
		ProductID: inv.ProductID,
		Quantity:  inv.Quantity,
		Reserved:  inv.Reserved,
	}
}

// ReservationResponse — представление резерва в ответах API.
type ReservationResponse struct {
	ReservationID string `json:"reservationId"`
	SagaLogID     string `json:"sagaLogId"`
	OrderID       string `json:"orderId"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason,omitempty"`
}

func reservationResponse(r *domain.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ReservationID: r.ID,
		SagaLogID:     r.SagaLogID,
		OrderID:       r.OrderID,
		ProductID:     r.ProductID,
		Quantity:      r.Quantity,
		Status:        string(r.Status),
	}
	if r.FailureReason != nil {
		resp.FailureReason = *r.FailureReason
	}
	return resp
}

// InventoryHandler — HTTP обработчик Inventory Service.
type InventoryHandler struct {
	service service.InventoryService
}

// NewInventoryHandler создаёт обработчик склада.
func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: svc}
}

// UpdateInventory обрабатывает POST /api/v1/inventories/update-inventory.
// Вызывается Outbox Publisher при доставке события PaymentProcessed.
// Неудавшееся резервирование — тоже успешно обработанное событие:
// ответ success:true со статусом FAILED.
func (h *InventoryHandler) UpdateInventory(c *gin.Context) {
	key, ok := api.IdempotencyKey(c)
	if !ok {
		return
	}

	var payload saga.UpdateInventoryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	reservation, err := h.service.Reserve(c.Request.Context(), key, payload)
	if err != nil {
		if isBusinessFailure(err) {
			api.Fail(c, err.Error())
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка резервирования товара")
		api.InternalError(c, "ошибка резервирования товара")
		return
	}

	api.OK(c, reservationResponse(reservation))
}

// CompensateInventory обрабатывает POST /api/v1/inventories/compensate.
// Вызывается Outbox Publisher при доставке события OrderShipped.
func (h *InventoryHandler) CompensateInventory(c *gin.Context) {
	key, ok := api.IdempotencyKey(c)
	if !ok {
		return
	}

	var payload saga.CompensateInventoryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	reservation, err := h.service.Compensate(c.Request.Context(), key, payload)
	if err != nil {
		if isBusinessFailure(err) {
			api.Fail(c, err.Error())
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка снятия резерва")
		api.InternalError(c, "ошибка снятия резерва")
		return
	}

	api.OK(c, reservationResponse(reservation))
}

// InitializeInventory обрабатывает POST /api/v1/inventories/initialize.
// Служебный endpoint для заведения остатков.
func (h *InventoryHandler) InitializeInventory(c *gin.Context) {
	var req InitializeInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	inv, err := h.service.Initialize(c.Request.Context(), req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuantity) {
			api.BadRequest(c, err.Error())
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка инициализации остатка")
		api.InternalError(c, "ошибка инициализации остатка")
		return
	}

	api.OK(c, inventoryResponse(inv))
}

// GetInventory обрабатывает GET /api/v1/inventories/:productId.
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	inv, err := h.service.GetInventory(c.Request.Context(), c.Param("productId"))
	if err != nil {
		if errors.Is(err, domain.ErrInventoryNotFound) {
			api.Fail(c, "товар не найден на складе")
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка получения остатка")
		api.InternalError(c, "ошибка получения остатка")
		return
	}

	api.OK(c, inventoryResponse(inv))
}

// isBusinessFailure возвращает true для отказов, при которых повторная
// доставка события даст тот же результат.
func isBusinessFailure(err error) bool {
	return errors.Is(err, saga.ErrSagaNotFound) ||
		errors.Is(err, domain.ErrInventoryNotFound) ||
		errors.Is(err, domain.ErrReservationNotFound) ||
		errors.Is(err, domain.ErrReservationNotReleasable) ||
		errors.Is(err, saga.ErrInvalidTransition) ||
		errors.Is(err, saga.ErrSagaTerminal) ||
		errors.Is(err, saga.ErrStepOrder)
}
