package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/fulfillment-saga/pkg/metrics"
	"example.com/fulfillment-saga/pkg/middleware"
)

// serviceName — имя сервиса для логов, метрик и tracing.
const serviceName = "shipping-service"

// NewRouter создаёт Gin router Shipping Service.
func NewRouter(h *ShippingHandler) *gin.Engine {
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
		shipments := v1.Group("/shipments")
		{
			shipments.POST("/deliver-order", h.DeliverOrder)
			shipments.POST("/cancel", h.CancelShipment)
			shipments.GET("/:shipmentId", h.GetShipment)
		}
	}

	return r
}
