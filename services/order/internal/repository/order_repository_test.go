package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"example.com/fulfillment-saga/pkg/saga"
	"example.com/fulfillment-saga/services/order/internal/domain"
)

// setupMockDB создаёт мок базы данных с GORM.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Ошибка создания sqlmock")

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Ошибка инициализации GORM")

	return gormDB, mock, func() { _ = db.Close() }
}

func orderRows(orderID string) *sqlmock.Rows {
	now := time.Now().Truncate(time.Second)
	return sqlmock.NewRows([]string{
		"id", "saga_log_id", "customer_id", "product_id", "quantity",
		"total_price", "status", "idempotency_key", "compensation_key",
		"created_at", "updated_at",
	}).AddRow(orderID, "saga-1", "customer-1", "product-1", 2,
		20000, "CREATED", "key-1", nil, now, now)
}

// =============================================================================
// Тесты GetByID
// =============================================================================

func TestGetByID(t *testing.T) {
	tests := []struct {
		name        string
		orderID     string
		mockSetup   func(mock sqlmock.Sqlmock, orderID string)
		expectedErr error
	}{
		{
			name:    "успешное получение",
			orderID: "order-123",
			mockSetup: func(mock sqlmock.Sqlmock, orderID string) {
				mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\? ORDER BY `orders`.`id` LIMIT \\?").
					WithArgs(orderID, 1).WillReturnRows(orderRows(orderID))
			},
			expectedErr: nil,
		},
		{
			name:    "не найден",
			orderID: "unknown-order",
			mockSetup: func(mock sqlmock.Sqlmock, orderID string) {
				rows := sqlmock.NewRows([]string{"id"})
				mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\? ORDER BY `orders`.`id` LIMIT \\?").
					WithArgs(orderID, 1).WillReturnRows(rows)
			},
			expectedErr: domain.ErrOrderNotFound,
		},
		{
			name:    "ошибка БД",
			orderID: "order-456",
			mockSetup: func(mock sqlmock.Sqlmock, orderID string) {
				mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\? ORDER BY `orders`.`id` LIMIT \\?").
					WithArgs(orderID, 1).WillReturnError(sql.ErrConnDone)
			},
			expectedErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			repo := NewOrderRepository(gormDB)
			tt.mockSetup(mock, tt.orderID)

			order, err := repo.GetByID(context.Background(), tt.orderID)

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, order)
			} else {
				require.NoError(t, err)
				require.NotNil(t, order)
				assert.Equal(t, tt.orderID, order.ID)
				assert.Equal(t, domain.OrderStatusCreated, order.Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// =============================================================================
// Тесты GetByIdempotencyKey
// =============================================================================

func TestGetByIdempotencyKey(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE idempotency_key = \\? ORDER BY `orders`.`id` LIMIT \\?").
		WithArgs("key-1", 1).WillReturnRows(orderRows("order-123"))

	repo := NewOrderRepository(gormDB)

	order, err := repo.GetByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, "key-1", order.IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Тесты CreateWithSaga
// =============================================================================

func TestCreateWithSaga_DuplicateKeyRollsBack(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `saga_logs`")).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'key-1' for key 'uq_saga_logs_idempotency_key'"})
	mock.ExpectRollback()

	repo := NewOrderRepository(gormDB)

	log := saga.NewSagaLog("saga-1", "key-1", "customer-1", "product-1", 2, 20000)
	order := domain.NewOrder("order-1", "saga-1", "customer-1", "product-1", 2, 20000, "key-1")

	err := repo.CreateWithSaga(context.Background(), order, log, nil)
	assert.ErrorIs(t, err, saga.ErrDuplicateIdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Тесты CancelWithSaga
// =============================================================================

func TestCancelWithSaga_MutatesSagaUnderLock(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	// Сага в FAILED: платёж отклонён, компенсация дошла до заказа
	failed := saga.NewSagaLog("saga-1", "key-1", "customer-1", "product-1", 2, 20000)
	require.NoError(t, failed.CompleteStep(saga.StepCreateOrder))
	require.NoError(t, failed.TransitionTo(saga.StatusInProgress))
	require.NoError(t, failed.FailStep(saga.StepProcessPayment, "платёж отклонён"))
	require.NoError(t, failed.TransitionTo(saga.StatusFailed))
	steps, err := json.Marshal(failed.Steps)
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	sagaRows := sqlmock.NewRows([]string{
		"id", "idempotency_key", "customer_id", "product_id", "quantity",
		"total_price", "order_id", "status", "steps", "created_at", "updated_at",
	}).AddRow("saga-1", "key-1", "customer-1", "product-1", 2,
		20000, "order-1", string(failed.Status), steps, now, now)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Сага перечитывается под блокировкой строки, не из снимка сервиса
	mock.ExpectQuery("SELECT \\* FROM `saga_logs` WHERE id = \\? ORDER BY `saga_logs`.`id` LIMIT \\? FOR UPDATE").
		WithArgs("saga-1", 1).WillReturnRows(sagaRows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `saga_logs` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewOrderRepository(gormDB)

	order := domain.NewOrder("order-1", "saga-1", "customer-1", "product-1", 2, 20000, "key-1")
	require.NoError(t, order.Cancel("saga-1-PaymentFailed"))

	var mutated *saga.SagaLog
	err = repo.CancelWithSaga(context.Background(), order, func(sl *saga.SagaLog) error {
		mutated = sl
		if err := sl.TransitionTo(saga.StatusCompensating); err != nil {
			return err
		}
		if err := sl.CompleteCompensation(saga.StepCreateOrder); err != nil {
			return err
		}
		return sl.TransitionTo(saga.StatusCompensated)
	})
	require.NoError(t, err)

	// Мутация применена к перечитанной строке и сохранена до коммита
	require.NotNil(t, mutated)
	assert.Equal(t, saga.StatusCompensated, mutated.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
