package outbox

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository — интерфейс репозитория outbox.
type Repository interface {
	// FindUnpublished возвращает недоставленные события сервиса source,
	// не исчерпавшие лимит попыток, в порядке создания.
	FindUnpublished(ctx context.Context, source string, limit int) ([]*Event, error)

	// MarkPublished помечает событие доставленным.
	MarkPublished(ctx context.Context, id string) error

	// MarkFailed увеличивает счётчик попыток и сохраняет текст ошибки.
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// FindTerminallyFailed возвращает события, исчерпавшие лимит попыток.
	FindTerminallyFailed(ctx context.Context, source string, limit int) ([]*Event, error)

	// DeletePublishedBefore удаляет доставленные события старше cutoff.
	// Возвращает количество удалённых строк.
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// repository — GORM реализация Repository.
type repository struct {
	db *gorm.DB
}

// NewRepository создаёт репозиторий outbox.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindUnpublished(ctx context.Context, source string, limit int) ([]*Event, error) {
	var models []EventModel

	err := r.db.WithContext(ctx).
		Where("source_service = ? AND is_published = ? AND publish_attempts < max_retries", source, false).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	events := make([]*Event, len(models))
	for i := range models {
		events[i] = toDomain(&models[i])
	}
	return events, nil
}

func (r *repository) MarkPublished(ctx context.Context, id string) error {
	now := time.Now()

	return r.db.WithContext(ctx).
		Model(&EventModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_published": true,
			"published_at": now,
			"last_error":   nil,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&EventModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"publish_attempts": gorm.Expr("publish_attempts + 1"),
			"last_error":       errMsg,
		}).Error
}

func (r *repository) FindTerminallyFailed(ctx context.Context, source string, limit int) ([]*Event, error) {
	var models []EventModel

	err := r.db.WithContext(ctx).
		Where("source_service = ? AND is_published = ? AND publish_attempts >= max_retries", source, false).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	events := make([]*Event, len(models))
	for i := range models {
		events[i] = toDomain(&models[i])
	}
	return events, nil
}

func (r *repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("is_published = ? AND published_at < ?", true, cutoff).
		Delete(&EventModel{})

	return result.RowsAffected, result.Error
}

// AppendTx вставляет событие в рамках переданной транзакции.
// Единственный способ создать событие: append всегда атомарен
// с изменением состояния участника.
func AppendTx(tx *gorm.DB, e *Event) error {
	model := toModel(e)

	if err := tx.Create(model).Error; err != nil {
		return err
	}

	e.CreatedAt = model.CreatedAt
	return nil
}
