package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/repository"
)

// EventProcessor receives order-system triggers.
type EventProcessor interface {
	HandlePaymentPlaced(ctx context.Context, event models.PaymentPlacedEvent)
	HandleOrderSaved(ctx context.Context, event models.OrderSavedEvent)
}

type SessionMessageReader interface {
	PopMessage(ctx context.Context, sessionID string) (string, error)
}

type FraudHandler struct {
	entities  interfaces.FraudEntityRepository
	processor EventProcessor
	sessions  SessionMessageReader
	logger    *zap.Logger
}

func NewFraudHandler(entities interfaces.FraudEntityRepository, processor EventProcessor, sessions SessionMessageReader, logger *zap.Logger) *FraudHandler {
	return &FraudHandler{
		entities:  entities,
		processor: processor,
		sessions:  sessions,
		logger:    logger,
	}
}

func (h *FraudHandler) GetFraudEntity(c *gin.Context) {
	incrementID := c.Param("increment_id")

	entity, err := h.entities.GetByIncrementID(c.Request.Context(), incrementID)
	if errors.Is(err, repository.ErrEntityNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fraud entity not found"})
		return
	}

	if err != nil {
		h.logger.Error("Failed to fetch fraud entity", zap.String("order_increment_id", incrementID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch fraud entity"})
		return
	}

	c.JSON(http.StatusOK, entity)
}

// PaymentPlaced accepts the trigger even when processing fails; failures are
// reported to diagnostics by the processor.
func (h *FraudHandler) PaymentPlaced(c *gin.Context) {
	var event models.PaymentPlacedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Error("Error decoding payment placed event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if event.Order.IncrementID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order.increment_id is required"})
		return
	}

	h.processor.HandlePaymentPlaced(c.Request.Context(), event)

	c.JSON(http.StatusAccepted, gin.H{
		"status":             "accepted",
		"order_increment_id": event.Order.IncrementID,
	})
}

func (h *FraudHandler) OrderSaved(c *gin.Context) {
	var event models.OrderSavedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Error("Error decoding order saved event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if event.Order.IncrementID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order.increment_id is required"})
		return
	}

	h.processor.HandleOrderSaved(c.Request.Context(), event)

	c.JSON(http.StatusAccepted, gin.H{
		"status":             "accepted",
		"order_increment_id": event.Order.IncrementID,
	})
}

// GetSessionMessage hands the storefront the pending fraud message, once.
func (h *FraudHandler) GetSessionMessage(c *gin.Context) {
	msg, err := h.sessions.PopMessage(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.logger.Error("Failed to read session message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read session message"})
		return
	}
	if msg == "" {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
