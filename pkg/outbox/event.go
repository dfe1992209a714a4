// Package outbox реализует transactional outbox: события записываются
// в таблицу outbox в одной транзакции с изменением состояния участника,
// фоновый Publisher доставляет их по HTTP в целевые сервисы.
//
// Гарантия: событие существует тогда и только тогда, когда закоммичено
// изменение состояния. Доставка at-least-once; дедупликация на стороне
// получателя по детерминированному idempotency key.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/fulfillment-saga/pkg/saga"
)

// Event — событие в таблице outbox.
type Event struct {
	ID              string          // UUIDv7: сортировка по ID ~ порядок создания
	AggregateID     string          // ID саги — все события одной саги связаны
	EventType       saga.EventType  //
	Payload         json.RawMessage //
	SourceService   string          // Сервис, породивший событие
	TargetService   string          // Сервис-получатель
	TargetEndpoint  string          // Относительный путь endpoint получателя
	IsPublished     bool            //
	PublishAttempts int             // Счётчик попыток доставки
	MaxRetries      int             // Лимит попыток; после — terminal failure
	LastError       *string         // Текст последней ошибки доставки
	PublishedAt     *time.Time      //
	CreatedAt       time.Time       //
}

// NewEvent создаёт событие по статическому маршруту.
// payload сериализуется в JSON немедленно: событие фиксирует снимок
// данных на момент решения, не ссылку на изменяемое состояние.
func NewEvent(aggregateID string, route saga.Route, source saga.TargetService, maxRetries int, payload any) (*Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации UUID события: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации payload события %s: %w", route.Event, err)
	}

	return &Event{
		ID:              id.String(),
		AggregateID:     aggregateID,
		EventType:       route.Event,
		Payload:         body,
		SourceService:   string(source),
		TargetService:   string(route.Target),
		TargetEndpoint:  route.Endpoint,
		IsPublished:     false,
		PublishAttempts: 0,
		MaxRetries:      maxRetries,
		CreatedAt:       time.Now(),
	}, nil
}

// IdempotencyKey возвращает детерминированный ключ идемпотентности.
// Ключ не содержит случайности: повторная доставка того же события
// даёт тот же ключ, и получатель распознаёт дубликат.
func (e *Event) IdempotencyKey() string {
	return e.AggregateID + "-" + string(e.EventType)
}

// IsTerminallyFailed возвращает true, если лимит попыток исчерпан.
func (e *Event) IsTerminallyFailed() bool {
	return !e.IsPublished && e.PublishAttempts >= e.MaxRetries
}
