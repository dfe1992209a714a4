package saga

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ошибки репозитория.
var (
	// ErrSagaNotFound — сага не найдена.
	ErrSagaNotFound = errors.New("сага не найдена")

	// ErrDuplicateIdempotencyKey — сага с таким idempotency key уже существует.
	// БД — арбитр гонки: два конкурентных старта с одним ключом
	// разрешаются уникальным индексом, не приложением.
	ErrDuplicateIdempotencyKey = errors.New("сага с таким idempotency key уже существует")
)

// Repository — интерфейс репозитория saga log.
type Repository interface {
	// Create вставляет новую сагу.
	// Возвращает ErrDuplicateIdempotencyKey при конфликте ключа.
	Create(ctx context.Context, s *SagaLog) error

	// FindByID возвращает сагу по ID.
	FindByID(ctx context.Context, id string) (*SagaLog, error)

	// FindByIdempotencyKey возвращает сагу по idempotency key.
	FindByIdempotencyKey(ctx context.Context, key string) (*SagaLog, error)
}

// repository — GORM реализация Repository.
type repository struct {
	db *gorm.DB
}

// NewRepository создаёт репозиторий saga log.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, s *SagaLog) error {
	return CreateTx(r.db.WithContext(ctx), s)
}

func (r *repository) FindByID(ctx context.Context, id string) (*SagaLog, error) {
	var model SagaLogModel

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSagaNotFound
		}
		return nil, err
	}

	return toDomain(&model)
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*SagaLog, error) {
	var model SagaLogModel

	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSagaNotFound
		}
		return nil, err
	}

	return toDomain(&model)
}

// =============================================================================
// Транзакционные операции
// =============================================================================

// CreateTx вставляет сагу в рамках переданной транзакции.
// Изменение состояния участника, мутация саги и outbox событие
// коммитятся атомарно — caller собирает их в один tx.Transaction.
func CreateTx(tx *gorm.DB, s *SagaLog) error {
	model, err := toModel(s)
	if err != nil {
		return err
	}

	if err := tx.Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateIdempotencyKey
		}
		return err
	}

	s.CreatedAt = model.CreatedAt
	s.UpdatedAt = model.UpdatedAt
	return nil
}

// SaveTx сохраняет мутацию саги в рамках переданной транзакции.
// Обновляются только изменяемые поля: статус, шаги, order_id.
func SaveTx(tx *gorm.DB, s *SagaLog) error {
	model, err := toModel(s)
	if err != nil {
		return err
	}

	return tx.Model(&SagaLogModel{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"status":   model.Status,
			"steps":    model.Steps,
			"order_id": model.OrderID,
		}).Error
}

// Mutator применяет изменение к саге, прочитанной под блокировкой.
type Mutator func(*SagaLog) error

// MutateTx перечитывает сагу FOR UPDATE, применяет mutate и сохраняет
// результат. Конкурентные доставки событий одной саги сериализуются
// на строке saga_logs: мутация применяется к свежему состоянию,
// а не к снимку, прочитанному до начала транзакции.
func MutateTx(tx *gorm.DB, id string, mutate Mutator) (*SagaLog, error) {
	s, err := FindByIDTx(tx, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(s); err != nil {
		return nil, err
	}

	if err := SaveTx(tx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FindByIDTx возвращает сагу в рамках транзакции с блокировкой FOR UPDATE.
// Конкурентные доставки событий одной саги сериализуются на уровне строки.
func FindByIDTx(tx *gorm.DB, id string) (*SagaLog, error) {
	var model SagaLogModel

	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSagaNotFound
		}
		return nil, err
	}

	return toDomain(&model)
}
