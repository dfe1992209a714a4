package saga

// Payload событий саги. Producer сериализует структуру в outbox payload,
// consumer десериализует её же из тела HTTP запроса — единые типы
// исключают расхождение контрактов между сервисами.

// ProcessPaymentPayload — payload события OrderCreated.
// Потребляется Payment Service (POST /payments/process-payment).
type ProcessPaymentPayload struct {
	SagaLogID  string `json:"sagaLogId" binding:"required"`
	OrderID    string `json:"orderId" binding:"required"`
	CustomerID string `json:"customerId" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
}

// UpdateInventoryPayload — payload события PaymentProcessed.
// Потребляется Inventory Service (POST /inventories/update-inventory).
type UpdateInventoryPayload struct {
	SagaLogID string `json:"sagaLogId" binding:"required"`
	OrderID   string `json:"orderId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// DeliverOrderPayload — payload события InventoryUpdated.
// Потребляется Shipping Service (POST /shipments/deliver-order).
type DeliverOrderPayload struct {
	SagaLogID  string `json:"sagaLogId" binding:"required"`
	OrderID    string `json:"orderId" binding:"required"`
	CustomerID string `json:"customerId" binding:"required"`
}

// RefundPaymentPayload — payload события InventoryFailed.
// Потребляется Payment Service (POST /payments/refund).
type RefundPaymentPayload struct {
	SagaLogID string `json:"sagaLogId" binding:"required"`
	OrderID   string `json:"orderId" binding:"required"`
	Reason    string `json:"reason,omitempty"`
}

// CompensateInventoryPayload — payload события OrderShipped (отмена доставки).
// Потребляется Inventory Service (POST /inventories/compensate).
type CompensateInventoryPayload struct {
	SagaLogID string `json:"sagaLogId" binding:"required"`
	OrderID   string `json:"orderId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// CompensateOrderPayload — payload событий PaymentFailed и OrderCompensated.
// Потребляется Order Service (POST /orders/compensate).
type CompensateOrderPayload struct {
	SagaLogID string `json:"sagaLogId" binding:"required"`
	OrderID   string `json:"orderId" binding:"required"`
	Reason    string `json:"reason,omitempty"`
}

// OrderDeliveredPayload — payload события OrderDelivered.
// Никем не потребляется по HTTP: событие аудиторское, зеркалируется в Kafka.
type OrderDeliveredPayload struct {
	SagaLogID  string `json:"sagaLogId"`
	OrderID    string `json:"orderId"`
	ShippingID string `json:"shippingId"`
}
