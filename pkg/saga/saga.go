// Package saga содержит протокол оркестрированной саги оформления заказа:
// алфавит шагов, state machine статусов, сущность SagaLog и маршрутизацию
// событий между сервисами-участниками.
//
// Единый источник правды для всех четырёх сервисов — исключает
// рассинхронизацию имён шагов, статусов и типов событий.
package saga

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Алфавит шагов
// =============================================================================

// StepName — имя шага саги.
type StepName string

const (
	// StepCreateOrder — создание заказа (Order Service).
	StepCreateOrder StepName = "CREATE_ORDER"

	// StepProcessPayment — обработка платежа (Payment Service).
	StepProcessPayment StepName = "PROCESS_PAYMENT"

	// StepUpdateInventory — резервирование товара (Inventory Service).
	StepUpdateInventory StepName = "UPDATE_INVENTORY"

	// StepDeliverOrder — доставка заказа (Shipping Service).
	StepDeliverOrder StepName = "DELIVER_ORDER"
)

// StepOrder — фиксированный порядок шагов саги.
// Хранится как массив: порядок не зависит от сортировки JSON ключей.
var StepOrder = []StepName{
	StepCreateOrder,
	StepProcessPayment,
	StepUpdateInventory,
	StepDeliverOrder,
}

// =============================================================================
// Статусы
// =============================================================================

// Status — состояние саги в state machine.
type Status string

const (
	// StatusStarted — сага создана, первый шаг ещё не завершён.
	StatusStarted Status = "STARTED"

	// StatusInProgress — выполняются forward шаги.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusCompleted — все четыре шага завершены (терминальное).
	StatusCompleted Status = "COMPLETED"

	// StatusFailed — один из шагов отказал, компенсация ещё не началась.
	StatusFailed Status = "FAILED"

	// StatusCompensating — выполняются компенсирующие действия.
	StatusCompensating Status = "COMPENSATING"

	// StatusCompensated — все завершённые шаги компенсированы (терминальное).
	StatusCompensated Status = "COMPENSATED"
)

// IsTerminal возвращает true, если сага в финальном состоянии.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompensated
}

// StepStatus — состояние forward выполнения шага.
type StepStatus string

const (
	StepPending     StepStatus = "PENDING"
	StepInProgress  StepStatus = "IN_PROGRESS"
	StepCompleted   StepStatus = "COMPLETED"
	StepFailed      StepStatus = "FAILED"
	StepCompensated StepStatus = "COMPENSATED"
)

// CompensationStatus — состояние компенсации шага.
type CompensationStatus string

const (
	CompensationPending    CompensationStatus = "PENDING"
	CompensationInProgress CompensationStatus = "IN_PROGRESS"
	CompensationCompleted  CompensationStatus = "COMPLETED"
	CompensationFailed     CompensationStatus = "FAILED"
)

// =============================================================================
// Step — запись одного шага в SagaLog
// =============================================================================

// Step — прогресс одного шага саги: forward статус и статус компенсации.
type Step struct {
	Name               StepName           `json:"name"`
	Status             StepStatus         `json:"status"`
	CompensationStatus CompensationStatus `json:"compensationStatus"`
	Error              *string            `json:"error,omitempty"`
	Timestamp          *time.Time         `json:"timestamp,omitempty"`
}

// =============================================================================
// SagaLog — доменная сущность
// =============================================================================

// SagaLog — персистентная запись прогресса одной саги.
type SagaLog struct {
	ID             string    // UUIDv7 саги
	IdempotencyKey string    // Уникален глобально — якорь дедупликации старта
	CustomerID     string    // Бизнес-payload, зафиксирован при инициации
	ProductID      string    //
	Quantity       int       //
	TotalPrice     int64     // Сумма в минимальных единицах
	OrderID        *string   // nil до завершения первого шага
	Status         Status    // Текущее состояние
	Steps          []Step    // Ровно 4 шага в порядке StepOrder
	CreatedAt      time.Time //
	UpdatedAt      time.Time //
}

// NewSagaLog создаёт сагу в состоянии STARTED со всеми шагами в PENDING.
func NewSagaLog(id, idempotencyKey, customerID, productID string, quantity int, totalPrice int64) *SagaLog {
	steps := make([]Step, len(StepOrder))
	for i, name := range StepOrder {
		steps[i] = Step{
			Name:               name,
			Status:             StepPending,
			CompensationStatus: CompensationPending,
		}
	}

	return &SagaLog{
		ID:             id,
		IdempotencyKey: idempotencyKey,
		CustomerID:     customerID,
		ProductID:      productID,
		Quantity:       quantity,
		TotalPrice:     totalPrice,
		Status:         StatusStarted,
		Steps:          steps,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

// Ошибки работы с шагами и переходами.
var (
	ErrInvalidTransition = errors.New("недопустимый переход состояния саги")
	ErrSagaTerminal      = errors.New("сага уже в терминальном состоянии")
	ErrUnknownStep       = errors.New("неизвестный шаг саги")
	ErrStepOrder         = errors.New("предыдущие шаги саги не завершены")
)

// Step возвращает запись шага по имени.
func (s *SagaLog) Step(name StepName) (*Step, error) {
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			return &s.Steps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStep, name)
}

// StartStep переводит шаг в IN_PROGRESS и проставляет timestamp.
func (s *SagaLog) StartStep(name StepName) error {
	step, err := s.Step(name)
	if err != nil {
		return err
	}

	now := time.Now()
	step.Status = StepInProgress
	step.Timestamp = &now
	s.UpdatedAt = now
	return nil
}

// CompleteStep переводит шаг в COMPLETED.
// Шаг может завершиться только если все предыдущие шаги завершены.
func (s *SagaLog) CompleteStep(name StepName) error {
	idx := -1
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownStep, name)
	}

	for i := 0; i < idx; i++ {
		if s.Steps[i].Status != StepCompleted {
			return fmt.Errorf("%w: %s до %s", ErrStepOrder, s.Steps[i].Name, name)
		}
	}

	step := &s.Steps[idx]
	now := time.Now()
	step.Status = StepCompleted
	if step.Timestamp == nil {
		step.Timestamp = &now
	}
	step.Error = nil
	s.UpdatedAt = now
	return nil
}

// FailStep переводит шаг в FAILED с текстом ошибки.
func (s *SagaLog) FailStep(name StepName, reason string) error {
	step, err := s.Step(name)
	if err != nil {
		return err
	}

	now := time.Now()
	step.Status = StepFailed
	step.Error = &reason
	if step.Timestamp == nil {
		step.Timestamp = &now
	}
	s.UpdatedAt = now
	return nil
}

// CompleteCompensation отмечает компенсацию шага завершённой.
// Forward статус шага переводится в COMPENSATED, если шаг был завершён.
func (s *SagaLog) CompleteCompensation(name StepName) error {
	step, err := s.Step(name)
	if err != nil {
		return err
	}

	step.CompensationStatus = CompensationCompleted
	if step.Status == StepCompleted {
		step.Status = StepCompensated
	}
	s.UpdatedAt = time.Now()
	return nil
}

// StepCompleted возвращает true, если шаг существует и завершён.
func (s *SagaLog) StepCompleted(name StepName) bool {
	step, err := s.Step(name)
	return err == nil && step.Status == StepCompleted
}

// AllStepsCompleted возвращает true, если все шаги завершены.
func (s *SagaLog) AllStepsCompleted() bool {
	for i := range s.Steps {
		if s.Steps[i].Status != StepCompleted {
			return false
		}
	}
	return true
}

// =============================================================================
// Переходы состояний (State Machine)
// =============================================================================

// allowedTransitions определяет допустимые переходы статуса саги.
// Переходы монотонны к терминальному состоянию.
var allowedTransitions = map[Status][]Status{
	StatusStarted:      {StatusInProgress, StatusFailed},
	StatusInProgress:   {StatusCompleted, StatusFailed, StatusCompensating},
	StatusFailed:       {StatusCompensating},
	StatusCompensating: {StatusCompensated},
	// StatusCompleted и StatusCompensated — терминальные, переходов нет
}

// CanTransitionTo проверяет, допустим ли переход в указанное состояние.
func (s *SagaLog) CanTransitionTo(newStatus Status) bool {
	allowed, ok := allowedTransitions[s.Status]
	if !ok {
		return false // Терминальное состояние
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo выполняет переход в новое состояние.
// Переход в текущее состояние — no-op: переигранное событие не ломает сагу.
func (s *SagaLog) TransitionTo(newStatus Status) error {
	if s.Status == newStatus {
		return nil
	}

	if s.Status.IsTerminal() {
		return ErrSagaTerminal
	}

	if !s.CanTransitionTo(newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, newStatus)
	}

	s.Status = newStatus
	s.UpdatedAt = time.Now()
	return nil
}
