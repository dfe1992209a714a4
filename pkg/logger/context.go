package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// Ключи для хранения значений в контексте.
// Приватный тип исключает коллизии с другими пакетами.
type ctxKey string

const (
	// traceIDKey — ключ для хранения trace_id в контексте.
	traceIDKey ctxKey = "trace_id"

	// sagaIDKey — ключ для хранения saga_id в контексте.
	// Связывает все операции одной распределённой транзакции.
	sagaIDKey ctxKey = "saga_id"

	// loggerKey — ключ для хранения логгера в контексте.
	loggerKey ctxKey = "logger"
)

// WithTraceID добавляет trace_id в контекст.
// Генерируется на входе в систему и передаётся между сервисами.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext извлекает trace_id из контекста.
// Возвращает пустую строку, если trace_id не установлен.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithSagaID добавляет saga_id в контекст.
// Все логи операций одной саги получают общий идентификатор.
func WithSagaID(ctx context.Context, sagaID string) context.Context {
	return context.WithValue(ctx, sagaIDKey, sagaID)
}

// SagaIDFromContext извлекает saga_id из контекста.
// Возвращает пустую строку, если saga_id не установлен.
func SagaIDFromContext(ctx context.Context) string {
	if sagaID, ok := ctx.Value(sagaIDKey).(string); ok {
		return sagaID
	}
	return ""
}

// WithLogger добавляет логгер в контекст.
// Полезно для передачи настроенного логгера через слои приложения.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext извлекает логгер из контекста и автоматически добавляет
// trace_id и saga_id, если они присутствуют в контексте.
//
// Если логгер не был явно добавлен в контекст, возвращает глобальный логгер.
// Это основной способ получения логгера в обработчиках и сервисах.
// Возвращает указатель: методы уровней zerolog определены на *Logger,
// поэтому результат можно вызывать цепочкой без промежуточной переменной.
func FromContext(ctx context.Context) *zerolog.Logger {
	var l zerolog.Logger
	if ctxLogger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		l = ctxLogger
	} else {
		l = log
	}

	if traceID := TraceIDFromContext(ctx); traceID != "" {
		l = l.With().Str("trace_id", traceID).Logger()
	}

	if sagaID := SagaIDFromContext(ctx); sagaID != "" {
		l = l.With().Str("saga_id", sagaID).Logger()
	}

	return &l
}

// Ctx — алиас FromContext, совместим по стилю с zerolog.Ctx().
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx)
}
