package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/config"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

// Log record labels understood by the log collector.
const (
	LabelPostAuth      = "Post-Auth"
	LabelPreAuth       = "Pre-Auth"
	LabelHandlingOrder = "Handling Order With Forter"
	LabelQueueMessage  = "processing message to queue"
	LabelStatusUpdate  = "Order Status Update"
)

func newLogRecord(cfg config.MerchantConfig, order *models.Order, label string, meta map[string]interface{}) models.LogRecord {
	metadata := map[string]interface{}{
		"order":   order,
		"payment": order.Payment,
	}
	for k, v := range meta {
		metadata[k] = v
	}
	return models.LogRecord{
		ID:               uuid.NewString(),
		SiteID:           cfg.SiteID,
		StoreID:          order.StoreID,
		OrderIncrementID: order.IncrementID,
		Label:            label,
		Metadata:         metadata,
		Timestamp:        time.Now().UTC(),
	}
}
