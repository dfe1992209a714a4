package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/fulfillment-saga/pkg/metrics"
	"example.com/fulfillment-saga/pkg/middleware"
)

// serviceName — имя сервиса для логов, метрик и tracing.
const serviceName = "order-service"

// NewRouter создаёт Gin router Order Service.
func NewRouter(h *OrderHandler) *gin.Engine {
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
		orders := v1.Group("/orders")
		{
			orders.POST("/start", h.StartOrder)
			orders.POST("/compensate", h.CompensateOrder)
			orders.GET("/:orderId", h.GetOrder)
		}
	}

	return r
}
