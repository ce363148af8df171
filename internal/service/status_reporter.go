package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/config"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/repository"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/telemetry"
)

const (
	ReportCompleted          = "COMPLETED"
	ReportProcessing         = "PROCESSING"
	ReportCanceledByMerchant = "CANCELED_BY_MERCHANT"
)

var reportableStates = map[models.OrderState]string{
	models.OrderStateComplete:   ReportCompleted,
	models.OrderStateProcessing: ReportProcessing,
	models.OrderStateCanceled:   ReportCanceledByMerchant,
}

// MapOrderStatus returns the label to report for a state change, or false
// when the change is not reported.
func MapOrderStatus(state, origState models.OrderState) (string, bool) {
	label, ok := reportableStates[state]
	if !ok || state == origState {
		return "", false
	}
	return label, true
}

// OrderStatusReporter reports order lifecycle transitions to the risk API.
type OrderStatusReporter struct {
	entities interfaces.FraudEntityRepository
	risk     interfaces.RiskAPI
	logs     interfaces.LogShipper
	logger   *zap.Logger
}

func NewOrderStatusReporter(entities interfaces.FraudEntityRepository, risk interfaces.RiskAPI, logs interfaces.LogShipper, logger *zap.Logger) *OrderStatusReporter {
	return &OrderStatusReporter{
		entities: entities,
		risk:     risk,
		logs:     logs,
		logger:   logger,
	}
}

// Report sends the transition if the order went through fraud validation.
// It returns whether a report was sent.
func (r *OrderStatusReporter) Report(ctx context.Context, event models.OrderSavedEvent, cfg config.MerchantConfig) (bool, error) {
	if !cfg.Enabled || !cfg.OrderFulfillmentEnabled {
		return false, nil
	}

	order := &event.Order
	entity, err := r.entities.GetByIncrementID(ctx, order.IncrementID)
	if errors.Is(err, repository.ErrEntityNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if entity.ForterStatus == "" {
		return false, nil
	}

	label, ok := MapOrderStatus(order.State, event.OrigState)
	if !ok {
		return false, nil
	}

	if err := r.risk.SendOrderStatus(ctx, order, label); err != nil {
		return false, err
	}
	telemetry.OrderStatusReports.WithLabelValues(label).Inc()

	entity.LastStatusReport = label
	if err := r.entities.Save(ctx, entity); err != nil {
		return true, err
	}

	r.logger.Info("Order status reported",
		zap.String("order_increment_id", order.IncrementID),
		zap.String("order_state", label),
		zap.String("orig_state", string(event.OrigState)),
		zap.Any("payment", order.Payment),
	)
	record := newLogRecord(cfg, order, LabelStatusUpdate, map[string]interface{}{
		"orderState":     label,
		"orderOrigState": event.OrigState,
	})
	return true, r.logs.SendLog(ctx, record)
}
