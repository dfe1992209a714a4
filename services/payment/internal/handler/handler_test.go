package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/fulfillment-saga/pkg/api"
	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/payment/internal/domain"
)

// MockPaymentService — мок бизнес-логики для тестов handler.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Process(ctx context.Context, idempotencyKey string, p saga.ProcessPaymentPayload) (*domain.Payment, error) {
	args := m.Called(ctx, idempotencyKey, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentService) Refund(ctx context.Context, compensationKey string, p saga.RefundPaymentPayload) (*domain.Payment, error) {
	args := m.Called(ctx, compensationKey, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func doRequest(t *testing.T, svc *MockPaymentService, method, path, idempotencyKey string, body any) (*httptest.ResponseRecorder, api.Response) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := NewRouter(NewPaymentHandler(svc))

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(api.HeaderIdempotencyKey, idempotencyKey)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp api.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestProcessPayment_Completed(t *testing.T) {
	svc := new(MockPaymentService)
	payment := domain.NewPayment("payment-1", "saga-1", "order-1", "customer-1", 20000, "saga-1-OrderCreated")

	svc.On("Process", mock.Anything, "saga-1-OrderCreated", mock.Anything).Return(payment, nil)

	w, resp := doRequest(t, svc, http.MethodPost, "/api/v1/payments/process-payment", "saga-1-OrderCreated", saga.ProcessPaymentPayload{
		SagaLogID:  "saga-1",
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Amount:     20000,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "COMPLETED", data["status"])
}

func TestProcessPayment_DeclinedIsStillSuccess(t *testing.T) {
	// Отказ платежа — обработанное событие, не ошибка доставки
	svc := new(MockPaymentService)
	payment := domain.NewDeclinedPayment("payment-1", "saga-1", "order-1", "customer-1", 20000, "saga-1-OrderCreated", "недостаточно средств")

	svc.On("Process", mock.Anything, mock.Anything, mock.Anything).Return(payment, nil)

	w, resp := doRequest(t, svc, http.MethodPost, "/api/v1/payments/process-payment", "saga-1-OrderCreated", saga.ProcessPaymentPayload{
		SagaLogID:  "saga-1",
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Amount:     20000,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "DECLINED", data["status"])
	assert.Equal(t, "недостаточно средств", data["failureReason"])
}

func TestProcessPayment_MissingIdempotencyKey(t *testing.T) {
	svc := new(MockPaymentService)

	w, resp := doRequest(t, svc, http.MethodPost, "/api/v1/payments/process-payment", "", saga.ProcessPaymentPayload{
		SagaLogID:  "saga-1",
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Amount:     20000,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefundPayment_SagaNotFoundIsBusinessFailure(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("Refund", mock.Anything, mock.Anything, mock.Anything).Return(nil, saga.ErrSagaNotFound)

	w, resp := doRequest(t, svc, http.MethodPost, "/api/v1/payments/refund", "saga-1-InventoryFailed", saga.RefundPaymentPayload{
		SagaLogID: "saga-1",
		OrderID:   "order-1",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Success)
}

func TestGetPayment_NotFound(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("GetPayment", mock.Anything, "missing").Return(nil, domain.ErrPaymentNotFound)

	w, resp := doRequest(t, svc, http.MethodGet, "/api/v1/payments/missing", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Success)
}
