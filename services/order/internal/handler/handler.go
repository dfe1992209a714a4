// Package handler содержит HTTP обработчики Order Service.
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"example.com/fulfillment-saga/pkg/api"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/order/internal/domain"
	"example.com/fulfillment-saga/services/order/internal/service"
)

// StartOrderRequest — тело запроса инициации саги.
type StartOrderRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
	ProductID  string `json:"productId" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
	TotalPrice int64  `json:"totalPrice" binding:"required,gt=0"`
}

// OrderResponse — представление заказа в ответах API.
type OrderResponse struct {
	OrderID    string `json:"orderId"`
	SagaLogID  string `json:"sagaLogId"`
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	TotalPrice int64  `json:"totalPrice"`
	Status     string `json:"status"`
	SagaStatus string `json:"sagaStatus,omitempty"`
}

func orderResponse(o *domain.Order, s *saga.SagaLog) OrderResponse {
	resp := OrderResponse{
		OrderID:    o.ID,
		SagaLogID:  o.SagaLogID,
		CustomerID: o.CustomerID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Status:     string(o.Status),
	}
	if s != nil {
		resp.SagaStatus = string(s.Status)
	}
	return resp
}

// OrderHandler — HTTP обработчик Order Service.
type OrderHandler struct {
	service service.OrderService
}

// NewOrderHandler создаёт обработчик заказов.
func NewOrderHandler(svc service.OrderService) *OrderHandler {
	return &OrderHandler{service: svc}
}

// StartOrder обрабатывает POST /api/v1/orders/start — инициацию саги.
func (h *OrderHandler) StartOrder(c *gin.Context) {
	key, ok := api.IdempotencyKey(c)
	if !ok {
		return
	}

	var req StartOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.StartSaga(c.Request.Context(), key, service.StartOrderInput{
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		TotalPrice: req.TotalPrice,
	})
	if err != nil {
		if isValidationError(err) {
			api.BadRequest(c, err.Error())
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка инициации саги")
		api.InternalError(c, "ошибка инициации саги")
		return
	}

	api.OK(c, orderResponse(result.Order, result.Saga))
}

// CompensateOrder обрабатывает POST /api/v1/orders/compensate.
// Вызывается Outbox Publisher при доставке событий PaymentFailed
// и OrderCompensated.
func (h *OrderHandler) CompensateOrder(c *gin.Context) {
	key, ok := api.IdempotencyKey(c)
	if !ok {
		return
	}

	var payload saga.CompensateOrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	order, err := h.service.Compensate(c.Request.Context(), key, payload)
	if err != nil {
		if isBusinessFailure(err) {
			// Событие неактуально — publisher не должен повторять доставку
			api.Fail(c, err.Error())
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка компенсации заказа")
		api.InternalError(c, "ошибка компенсации заказа")
		return
	}

	api.OK(c, orderResponse(order, nil))
}

// GetOrder обрабатывает GET /api/v1/orders/:orderId.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("orderId")

	order, sagaLog, err := h.service.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, saga.ErrSagaNotFound) {
			api.Fail(c, "заказ не найден")
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка получения заказа")
		api.InternalError(c, "ошибка получения заказа")
		return
	}

	api.OK(c, orderResponse(order, sagaLog))
}

// isValidationError возвращает true для ошибок валидации входных данных.
func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidCustomerID) ||
		errors.Is(err, domain.ErrInvalidProductID) ||
		errors.Is(err, domain.ErrInvalidQuantity) ||
		errors.Is(err, domain.ErrInvalidTotalPrice)
}

// isBusinessFailure возвращает true для отказов, при которых повторная
// доставка события даст тот же результат.
func isBusinessFailure(err error) bool {
	return errors.Is(err, saga.ErrSagaNotFound) ||
		errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrOrderCannotCancel) ||
		errors.Is(err, saga.ErrInvalidTransition) ||
		errors.Is(err, saga.ErrSagaTerminal)
}
