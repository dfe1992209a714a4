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
	"example.com/fulfillment-saga/services/order/internal/domain"
	"example.com/fulfillment-saga/services/order/internal/service"
)

// MockOrderService — мок бизнес-логики для тестов handler.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) StartSaga(ctx context.Context, idempotencyKey string, in service.StartOrderInput) (*service.StartOrderResult, error) {
	args := m.Called(ctx, idempotencyKey, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StartOrderResult), args.Error(1)
}

func (m *MockOrderService) Compensate(ctx context.Context, compensationKey string, p saga.CompensateOrderPayload) (*domain.Order, error) {
	args := m.Called(ctx, compensationKey, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, *saga.SagaLog, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Order), args.Get(1).(*saga.SagaLog), args.Error(2)
}

func setupRouter(svc service.OrderService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewOrderHandler(svc))
}

func doRequest(t *testing.T, router *gin.Engine, method, path, idempotencyKey string, body any) (*httptest.ResponseRecorder, api.Response) {
	t.Helper()

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

// =============================================================================
// Тесты POST /api/v1/orders/start
// =============================================================================

func TestStartOrder_Success(t *testing.T) {
	svc := new(MockOrderService)

	order := domain.NewOrder("order-1", "saga-1", "customer-1", "product-1", 2, 20000, "key-1")
	sagaLog := saga.NewSagaLog("saga-1", "key-1", "customer-1", "product-1", 2, 20000)

	svc.On("StartSaga", mock.Anything, "key-1", service.StartOrderInput{
		CustomerID: "customer-1",
		ProductID:  "product-1",
		Quantity:   2,
		TotalPrice: 20000,
	}).Return(&service.StartOrderResult{Saga: sagaLog, Order: order}, nil)

	router := setupRouter(svc)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/orders/start", "key-1", StartOrderRequest{
		CustomerID: "customer-1",
		ProductID:  "product-1",
		Quantity:   2,
		TotalPrice: 20000,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "order-1", data["orderId"])
	assert.Equal(t, "saga-1", data["sagaLogId"])
	assert.Equal(t, "STARTED", data["sagaStatus"])

	svc.AssertExpectations(t)
}

func TestStartOrder_MissingIdempotencyKey(t *testing.T) {
	svc := new(MockOrderService)
	router := setupRouter(svc)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/orders/start", "", StartOrderRequest{
		CustomerID: "customer-1",
		ProductID:  "product-1",
		Quantity:   2,
		TotalPrice: 20000,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)

	svc.AssertNotCalled(t, "StartSaga", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartOrder_InvalidBody(t *testing.T) {
	svc := new(MockOrderService)
	router := setupRouter(svc)

	// quantity отсутствует
	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/orders/start", "key-1", map[string]any{
		"customerId": "customer-1",
		"productId":  "product-1",
		"totalPrice": 20000,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestStartOrder_InternalError(t *testing.T) {
	svc := new(MockOrderService)
	svc.On("StartSaga", mock.Anything, "key-1", mock.Anything).
		Return(nil, assert.AnError)

	router := setupRouter(svc)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/orders/start", "key-1", StartOrderRequest{
		CustomerID: "customer-1",
		ProductID:  "product-1",
		Quantity:   2,
		TotalPrice: 20000,
	})

	// 500 — publisher и клиент могут повторить запрос
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, resp.Success)
}

// =============================================================================
// Тесты POST /api/v1/orders/compensate
// =============================================================================

func TestCompensateOrder_Success(t *testing.T) {
	svc := new(MockOrderService)

	order := domain.NewOrder("order-1", "saga-1", "customer-1", "product-1", 2, 20000, "key-1")
	require.NoError(t, order.Cancel("saga-1-PaymentFailed"))

	svc.On("Compensate", mock.Anything, "saga-1-PaymentFailed", mock.Anything).Return(order, nil)

	router := setupRouter(svc)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/orders/compensate", "saga-1-PaymentFailed", saga.CompensateOrderPayload{
		SagaLogID: "saga-1",
		OrderID:   "order-1",
		Reason:    "платёж отклонён",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "CANCELLED", data["status"])
}

func TestCompensateOrder_SagaNotFoundIsBusinessFailure(t *testing.T) {
	svc := new(MockOrderService)
	svc.On("Compensate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, saga.ErrSagaNotFound)

	router := setupRouter(svc)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/orders/compensate", "saga-1-PaymentFailed", saga.CompensateOrderPayload{
		SagaLogID: "saga-1",
		OrderID:   "order-1",
	})

	// HTTP 200 + success:false — publisher считает событие доставленным
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Success)
}

// =============================================================================
// Тесты GET /api/v1/orders/:orderId
// =============================================================================

func TestGetOrder_Success(t *testing.T) {
	svc := new(MockOrderService)

	order := domain.NewOrder("order-1", "saga-1", "customer-1", "product-1", 2, 20000, "key-1")
	sagaLog := saga.NewSagaLog("saga-1", "key-1", "customer-1", "product-1", 2, 20000)

	svc.On("GetOrder", mock.Anything, "order-1").Return(order, sagaLog, nil)

	router := setupRouter(svc)

	w, resp := doRequest(t, router, http.MethodGet, "/api/v1/orders/order-1", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "order-1", data["orderId"])
	assert.Equal(t, "STARTED", data["sagaStatus"])
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := new(MockOrderService)
	svc.On("GetOrder", mock.Anything, "missing").Return(nil, nil, domain.ErrOrderNotFound)

	router := setupRouter(svc)

	w, resp := doRequest(t, router, http.MethodGet, "/api/v1/orders/missing", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Success)
}
