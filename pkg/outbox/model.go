package outbox

import (
	"encoding/json"
	"time"

	"example.com/fulfillment-saga/pkg/saga"
)

// EventModel — GORM модель таблицы outbox.
type EventModel struct {
	ID              string          `gorm:"column:id;type:varchar(36);primaryKey"`
	AggregateID     string          `gorm:"column:aggregate_id;type:varchar(36);not null;index:idx_outbox_aggregate"`
	EventType       string          `gorm:"column:event_type;type:varchar(50);not null"`
	Payload         json.RawMessage `gorm:"column:payload;type:json;not null"`
	SourceService   string          `gorm:"column:source_service;type:varchar(20);not null;index:idx_outbox_unpublished,priority:1"`
	TargetService   string          `gorm:"column:target_service;type:varchar(20);not null"`
	TargetEndpoint  string          `gorm:"column:target_endpoint;type:varchar(100);not null"`
	IsPublished     bool            `gorm:"column:is_published;not null;default:false;index:idx_outbox_unpublished,priority:2"`
	PublishAttempts int             `gorm:"column:publish_attempts;not null;default:0"`
	MaxRetries      int             `gorm:"column:max_retries;not null;default:3"`
	LastError       *string         `gorm:"column:last_error;type:text"`
	PublishedAt     *time.Time      `gorm:"column:published_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime;index:idx_outbox_unpublished,priority:3"`
}

// TableName возвращает имя таблицы.
func (EventModel) TableName() string {
	return "outbox"
}

func toModel(e *Event) *EventModel {
	return &EventModel{
		ID:              e.ID,
		AggregateID:     e.AggregateID,
		EventType:       string(e.EventType),
		Payload:         e.Payload,
		SourceService:   e.SourceService,
		TargetService:   e.TargetService,
		TargetEndpoint:  e.TargetEndpoint,
		IsPublished:     e.IsPublished,
		PublishAttempts: e.PublishAttempts,
		MaxRetries:      e.MaxRetries,
		LastError:       e.LastError,
		PublishedAt:     e.PublishedAt,
		CreatedAt:       e.CreatedAt,
	}
}

func toDomain(m *EventModel) *Event {
	return &Event{
		ID:              m.ID,
		AggregateID:     m.AggregateID,
		EventType:       saga.EventType(m.EventType),
		Payload:         m.Payload,
		SourceService:   m.SourceService,
		TargetService:   m.TargetService,
		TargetEndpoint:  m.TargetEndpoint,
		IsPublished:     m.IsPublished,
		PublishAttempts: m.PublishAttempts,
		MaxRetries:      m.MaxRetries,
		LastError:       m.LastError,
		PublishedAt:     m.PublishedAt,
		CreatedAt:       m.CreatedAt,
	}
}
