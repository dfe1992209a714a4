// Package handler содержит HTTP обработчики Shipping Service.
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"example.com/fulfillment-saga/pkg/api"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/shipping/internal/domain"
	"example.com/fulfillment-saga/services/shipping/internal/service"
)

// CancelShipmentRequest — запрос отмены доставки.
type CancelShipmentRequest struct {
	SagaLogID string `json:"sagaLogId" binding:"required"`
	Reason    string `json:"reason"`
}

// ShipmentResponse — представление доставки в ответах API.
type ShipmentResponse struct {
	ShipmentID   string `json:"shipmentId"`
	SagaLogID    string `json:"sagaLogId"`
	OrderID      string `json:"orderId"`
	CustomerID   string `json:"customerId"`
	Status       string `json:"status"`
	CancelReason string `json:"cancelReason,omitempty"`
}

func shipmentResponse(s *domain.Shipment) ShipmentResponse {
	resp := ShipmentResponse{
		ShipmentID: s.ID,
		SagaLogID:  s.SagaLogID,
		OrderID:    s.OrderID,
		CustomerID: s.CustomerID,
		Status:     string(s.Status),
	}
	if s.CancelReason != nil {
		resp.CancelReason = *s.CancelReason
	}
	return resp
}

// ShippingHandler — HTTP обработчик Shipping Service.
type ShippingHandler struct {
	service service.ShippingService
}

// NewShippingHandler создаёт обработчик доставок.
func NewShippingHandler(svc service.ShippingService) *ShippingHandler {
	return &ShippingHandler{service: svc}
}

// DeliverOrder обрабатывает POST /api/v1/shipments/deliver-order.
// Вызывается Outbox Publisher при доставке события InventoryUpdated.
func (h *ShippingHandler) DeliverOrder(c *gin.Context) {
	key, ok := api.IdempotencyKey(c)
	if !ok {
		return
	}

	var payload saga.DeliverOrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	shipment, err := h.service.Deliver(c.Request.Context(), key, payload)
	if err != nil {
		if isBusinessFailure(err) {
			api.Fail(c, err.Error())
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка доставки заказа")
		api.InternalError(c, "ошибка доставки заказа")
		return
	}

	api.OK(c, shipmentResponse(shipment))
}

// CancelShipment обрабатывает POST /api/v1/shipments/cancel.
// Клиентский endpoint: отмена доставки до завершения саги.
func (h *ShippingHandler) CancelShipment(c *gin.Context) {
	key, ok := api.IdempotencyKey(c)
	if !ok {
		return
	}

	var req CancelShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	shipment, err := h.service.Cancel(c.Request.Context(), key, req.SagaLogID, req.Reason)
	if err != nil {
		if isBusinessFailure(err) {
			api.Fail(c, err.Error())
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка отмены доставки")
		api.InternalError(c, "ошибка отмены доставки")
		return
	}

	api.OK(c, shipmentResponse(shipment))
}

// GetShipment обрабатывает GET /api/v1/shipments/:shipmentId.
func (h *ShippingHandler) GetShipment(c *gin.Context) {
	shipment, err := h.service.GetShipment(c.Request.Context(), c.Param("shipmentId"))
	if err != nil {
		if errors.Is(err, domain.ErrShipmentNotFound) {
			api.Fail(c, "доставка не найдена")
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка получения доставки")
		api.InternalError(c, "ошибка получения доставки")
		return
	}

	api.OK(c, shipmentResponse(shipment))
}

// isBusinessFailure возвращает true для отказов, при которых повторная
// доставка события даст тот же результат.
func isBusinessFailure(err error) bool {
	return errors.Is(err, saga.ErrSagaNotFound) ||
		errors.Is(err, domain.ErrShipmentNotFound) ||
		errors.Is(err, domain.ErrShipmentAlreadyDelivered) ||
		errors.Is(err, saga.ErrInvalidTransition) ||
		errors.Is(err, saga.ErrSagaTerminal) ||
		errors.Is(err, saga.ErrStepOrder)
}
