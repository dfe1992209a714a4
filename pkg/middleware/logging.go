// Package middleware содержит Gin middleware, общие для всех сервисов.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/fulfillment-saga/pkg/logger"
)

// headerTraceID — заголовок сквозного идентификатора запроса.
const headerTraceID = "X-Trace-Id"

// RequestLogger возвращает middleware логирования HTTP запросов.
// Прокидывает trace_id через контекст: все логи обработки запроса
// (включая слои service и repository) получают общий идентификатор.
func RequestLogger(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Берём trace_id из заголовка или генерируем новый
		traceID := c.GetHeader(headerTraceID)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(headerTraceID, traceID)

		c.Next()

		log := logger.FromContext(ctx)
		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}

		event.
			Str("service", service).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP запрос обработан")
	}
}
