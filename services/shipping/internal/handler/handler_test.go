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
	"example.com/fulfillment-saga/services/shipping/internal/domain"
)

// MockShippingService — мок бизнес-логики для тестов handler.
type MockShippingService struct {
	mock.Mock
}

func (m *MockShippingService) Deliver(ctx context.Context, idempotencyKey string, p saga.DeliverOrderPayload) (*domain.Shipment, error) {
	args := m.Called(ctx, idempotencyKey, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

func (m *MockShippingService) Cancel(ctx context.Context, idempotencyKey, sagaLogID, reason string) (*domain.Shipment, error) {
	args := m.Called(ctx, idempotencyKey, sagaLogID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

func (m *MockShippingService) GetShipment(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	args := m.Called(ctx, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

func doRequest(t *testing.T, svc *MockShippingService, method, path, idempotencyKey string, body any) (*httptest.ResponseRecorder, api.Response) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := NewRouter(NewShippingHandler(svc))

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

func TestDeliverOrder_Success(t *testing.T) {
	svc := new(MockShippingService)
	shipment := domain.NewShipment("ship-1", "saga-1", "order-1", "customer-1", "saga-1-InventoryUpdated")

	svc.On("Deliver", mock.Anything, "saga-1-InventoryUpdated", mock.Anything).Return(shipment, nil)

	w, resp := doRequest(t, svc, http.MethodPost, "/api/v1/shipments/deliver-order", "saga-1-InventoryUpdated", saga.DeliverOrderPayload{
		SagaLogID:  "saga-1",
		OrderID:    "order-1",
		CustomerID: "customer-1",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "DELIVERED", data["status"])
}

func TestDeliverOrder_MissingIdempotencyKey(t *testing.T) {
	svc := new(MockShippingService)

	w, resp := doRequest(t, svc, http.MethodPost, "/api/v1/shipments/deliver-order", "", saga.DeliverOrderPayload{
		SagaLogID:  "saga-1",
		OrderID:    "order-1",
		CustomerID: "customer-1",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	svc.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelShipment_Success(t *testing.T) {
	svc := new(MockShippingService)
	shipment := domain.NewCancelledShipment("ship-1", "saga-1", "order-1", "customer-1", "cancel-1", "передумал")

	svc.On("Cancel", mock.Anything, "cancel-1", "saga-1", "передумал").Return(shipment, nil)

	w, resp := doRequest(t, svc, http.MethodPost, "/api/v1/shipments/cancel", "cancel-1", CancelShipmentRequest{
		SagaLogID: "saga-1",
		Reason:    "передумал",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "CANCELLED", data["status"])
	assert.Equal(t, "передумал", data["cancelReason"])
}

func TestCancelShipment_AlreadyDeliveredIsBusinessFailure(t *testing.T) {
	svc := new(MockShippingService)
	svc.On("Cancel", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrShipmentAlreadyDelivered)

	w, resp := doRequest(t, svc, http.MethodPost, "/api/v1/shipments/cancel", "cancel-1", CancelShipmentRequest{
		SagaLogID: "saga-1",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Success)
}

func TestCancelShipment_MissingSagaLogID(t *testing.T) {
	svc := new(MockShippingService)

	w, resp := doRequest(t, svc, http.MethodPost, "/api/v1/shipments/cancel", "cancel-1", CancelShipmentRequest{
		Reason: "передумал",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	svc.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetShipment_NotFound(t *testing.T) {
	svc := new(MockShippingService)
	svc.On("GetShipment", mock.Anything, "missing").Return(nil, domain.ErrShipmentNotFound)

	w, resp := doRequest(t, svc, http.MethodGet, "/api/v1/shipments/missing", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Success)
}
