package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/fulfillment-saga/pkg/metrics"
	"example.com/fulfillment-saga/pkg/middleware"
)

// serviceName — имя сервиса для логов, метрик и tracing.
const serviceName = "inventory-service"

// NewRouter создаёт Gin router Inventory Service.
func NewRouter(h *InventoryHandler) *gin.Engine {
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
		inventories := v1.Group("/inventories")
		{
			inventories.POST("/update-inventory", h.UpdateInventory)
			inventories.POST("/compensate", h.CompensateInventory)
			inventories.POST("/initialize", h.InitializeInventory)
			inventories.GET("/:productId", h.GetInventory)
		}
	}

	return r
}
