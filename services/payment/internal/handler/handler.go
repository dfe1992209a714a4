// Package handler содержит HTTP обработчики Payment Service.
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"example.com/fulfillment-saga/pkg/api"
	"example.com/fulfillment-saga/pkg/logger"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/payment/internal/domain"
	"example.com/fulfillment-saga/services/payment/internal/service"
)

// PaymentResponse — представление платежа в ответах API.
type PaymentResponse struct {
	PaymentID     string `json:"paymentId"`
	SagaLogID     string `json:"sagaLogId"`
	OrderID       string `json:"orderId"`
	CustomerID    string `json:"customerId"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason,omitempty"`
}

func paymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		PaymentID:  p.ID,
		SagaLogID:  p.SagaLogID,
		OrderID:    p.OrderID,
		CustomerID: p.CustomerID,
		Amount:     p.Amount,
		Status:     string(p.Status),
	}
	if p.FailureReason != nil {
		resp.FailureReason = *p.FailureReason
	}
	return resp
}

// PaymentHandler — HTTP обработчик Payment Service.
type PaymentHandler struct {
	service service.PaymentService
}

// NewPaymentHandler создаёт обработчик платежей.
func NewPaymentHandler(svc service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// ProcessPayment обрабатывает POST /api/v1/payments/process-payment.
// Вызывается Outbox Publisher при доставке события OrderCreated.
// Отклонённый платёж — тоже успешно обработанное событие: ответ
// success:true со статусом DECLINED.
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	key, ok := api.IdempotencyKey(c)
	if !ok {
		return
	}

	var payload saga.ProcessPaymentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	payment, err := h.service.Process(c.Request.Context(), key, payload)
	if err != nil {
		if isBusinessFailure(err) {
			api.Fail(c, err.Error())
			return
		}
		if errors.Is(err, domain.ErrInvalidAmount) {
			api.BadRequest(c, err.Error())
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка обработки платежа")
		api.InternalError(c, "ошибка обработки платежа")
		return
	}

	api.OK(c, paymentResponse(payment))
}

// RefundPayment обрабатывает POST /api/v1/payments/refund.
// Вызывается Outbox Publisher при доставке события InventoryFailed.
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	key, ok := api.IdempotencyKey(c)
	if !ok {
		return
	}

	var payload saga.RefundPaymentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	payment, err := h.service.Refund(c.Request.Context(), key, payload)
	if err != nil {
		if isBusinessFailure(err) {
			api.Fail(c, err.Error())
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка возврата платежа")
		api.InternalError(c, "ошибка возврата платежа")
		return
	}

	api.OK(c, paymentResponse(payment))
}

// GetPayment обрабатывает GET /api/v1/payments/:paymentId.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.service.GetPayment(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			api.Fail(c, "платёж не найден")
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Ошибка получения платежа")
		api.InternalError(c, "ошибка получения платежа")
		return
	}

	api.OK(c, paymentResponse(payment))
}

// isBusinessFailure возвращает true для отказов, при которых повторная
// доставка события даст тот же результат.
func isBusinessFailure(err error) bool {
	return errors.Is(err, saga.ErrSagaNotFound) ||
		errors.Is(err, domain.ErrPaymentNotFound) ||
		errors.Is(err, domain.ErrPaymentNotRefundable) ||
		errors.Is(err, saga.ErrInvalidTransition) ||
		errors.Is(err, saga.ErrSagaTerminal) ||
		errors.Is(err, saga.ErrStepOrder)
}
