package saga

// =============================================================================
// События и маршрутизация
// =============================================================================

// EventType — тип события саги, публикуемого через Outbox.
type EventType string

const (
	// Forward события
	EventOrderCreated     EventType = "OrderCreated"
	EventPaymentProcessed EventType = "PaymentProcessed"
	EventInventoryUpdated EventType = "InventoryUpdated"
	EventOrderDelivered   EventType = "OrderDelivered"

	// Compensation события
	EventPaymentFailed    EventType = "PaymentFailed"
	EventInventoryFailed  EventType = "InventoryFailed"
	EventOrderShipped     EventType = "OrderShipped"
	EventOrderCompensated EventType = "OrderCompensated"
)

// TargetService — имя сервиса-участника саги.
type TargetService string

const (
	ServiceOrder     TargetService = "order"
	ServicePayment   TargetService = "payment"
	ServiceInventory TargetService = "inventory"
	ServiceShipping  TargetService = "shipping"
)

// Route — статический маршрут события: какой сервис и endpoint его потребляет.
// Endpoint записывается в outbox при создании события и не вычисляется
// на стороне publisher — маршрутизация фиксируется в момент решения.
type Route struct {
	Event    EventType
	Target   TargetService
	Endpoint string
}

// Маршруты forward цепочки:
// Order -> Payment -> Inventory -> Shipping.
var (
	RouteProcessPayment = Route{
		Event:    EventOrderCreated,
		Target:   ServicePayment,
		Endpoint: "/payments/process-payment",
	}

	RouteUpdateInventory = Route{
		Event:    EventPaymentProcessed,
		Target:   ServiceInventory,
		Endpoint: "/inventories/update-inventory",
	}

	RouteDeliverOrder = Route{
		Event:    EventInventoryUpdated,
		Target:   ServiceShipping,
		Endpoint: "/shipments/deliver-order",
	}
)

// Маршруты compensation цепочки (обратный порядок шагов).
var (
	// Платёж отклонён — компенсируем заказ напрямую:
	// ни резерва, ни доставки ещё не было.
	RoutePaymentFailed = Route{
		Event:    EventPaymentFailed,
		Target:   ServiceOrder,
		Endpoint: "/orders/compensate",
	}

	// Резервирование не удалось — возвращаем платёж.
	RouteRefundPayment = Route{
		Event:    EventInventoryFailed,
		Target:   ServicePayment,
		Endpoint: "/payments/refund",
	}

	// Отмена доставки — снимаем резерв товара.
	RouteCompensateInventory = Route{
		Event:    EventOrderShipped,
		Target:   ServiceInventory,
		Endpoint: "/inventories/compensate",
	}

	// Возврат выполнен — отменяем заказ, сага завершает компенсацию.
	RouteCompensateOrder = Route{
		Event:    EventOrderCompensated,
		Target:   ServiceOrder,
		Endpoint: "/orders/compensate",
	}
)
