package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/handlers"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/telemetry"
)

func NewRouter(fraudHandler *handlers.FraudHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if telemetry.Tracer != nil {
		r.Use(telemetry.TracingMiddleware())
	}

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "fraud-orchestrator"})
	})

	r.GET("/orders/:increment_id/fraud", fraudHandler.GetFraudEntity)
	r.GET("/sessions/:session_id/fraud-message", fraudHandler.GetSessionMessage)

	events := r.Group("/events")
	{
		events.POST("/payment-placed", fraudHandler.PaymentPlaced)
		events.POST("/order-saved", fraudHandler.OrderSaved)
	}

	return r
}
