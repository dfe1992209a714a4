package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/fulfillment-saga/pkg/metrics"
	"example.com/fulfillment-saga/pkg/middleware"
)

// serviceName — имя сервиса для логов, метрик и tracing.
const serviceName = "payment-service"

// NewRouter создаёт Gin router Payment Service.
func NewRouter(h *PaymentHandler) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middleware.RequestLogger(serviceName))
	r.Use(metrics.GinMetricsMiddleware(serviceName))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	v1 := r.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("/process-payment", h.ProcessPayment)
			payments.POST("/refund", h.RefundPayment)
			payments.GET("/:paymentId", h.GetPayment)
		}
	}

	return r
}
