package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/config"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/repository"
)

type Classification int

const (
	ClassSkip Classification = iota
	ClassAsyncPending
	ClassSyncRequired
)

func (c Classification) String() string {
	switch c {
	case ClassAsyncPending:
		return "async_pending"
	case ClassSyncRequired:
		return "sync_required"
	default:
		return "skip"
	}
}

// EligibilityClassifier decides how a placed payment is validated.
type EligibilityClassifier struct {
	entities interfaces.FraudEntityRepository
	actuator *OrderActuator
	logs     interfaces.LogShipper
	logger   *zap.Logger
}

func NewEligibilityClassifier(entities interfaces.FraudEntityRepository, actuator *OrderActuator, logs interfaces.LogShipper, logger *zap.Logger) *EligibilityClassifier {
	return &EligibilityClassifier{
		entities: entities,
		actuator: actuator,
		logs:     logs,
		logger:   logger,
	}
}

// Classify applies the eligibility rules in order; the first match wins. It
// returns the order's fraud entity when one exists or was created here.
// Skipped orders with a pending pre-authorization decision get it reconciled.
func (c *EligibilityClassifier) Classify(ctx context.Context, order *models.Order, preDecision string, cfg config.MerchantConfig) (Classification, *models.FraudEntity, error) {
	if !cfg.Enabled {
		return c.skip(ctx, order, preDecision, cfg, "disabled for store")
	}

	entity, err := c.entities.GetByIncrementID(ctx, order.IncrementID)
	if err != nil && !errors.Is(err, repository.ErrEntityNotFound) {
		return ClassSkip, nil, err
	}

	if cfg.IsAsyncMethod(order.Payment.Method) && entity == nil {
		entity, err = c.entities.Create(ctx, newPostAuthEntity(order))
		if err != nil {
			return ClassSkip, nil, err
		}
		c.logger.Info("Async payment method, awaiting webhook decision",
			zap.String("order_increment_id", order.IncrementID),
			zap.String("payment_method", order.Payment.Method),
		)
		return ClassAsyncPending, entity, nil
	}

	mode := cfg.MappedPrePost(order.Payment.Method, order.SubMethod())
	if mode != "" && mode != config.ModePost && mode != config.ModePrePost {
		return c.skip(ctx, order, preDecision, cfg, "method not validated post-authorization")
	}
	if mode == "" && !cfg.PostEnabled && !cfg.PreAndPostEnabled {
		return c.skip(ctx, order, preDecision, cfg, "post-authorization disabled")
	}

	return ClassSyncRequired, entity, nil
}

func (c *EligibilityClassifier) skip(ctx context.Context, order *models.Order, preDecision string, cfg config.MerchantConfig, reason string) (Classification, *models.FraudEntity, error) {
	c.logger.Debug("Order skipped by fraud validation",
		zap.String("order_increment_id", order.IncrementID),
		zap.String("reason", reason),
	)
	if preDecision == "" {
		return ClassSkip, nil, nil
	}
	if err := c.reconcilePreDecision(ctx, order, preDecision, cfg); err != nil {
		return ClassSkip, nil, err
	}
	return ClassSkip, nil, nil
}

func (c *EligibilityClassifier) reconcilePreDecision(ctx context.Context, order *models.Order, preDecision string, cfg config.MerchantConfig) error {
	if err := c.actuator.AppendComment(ctx, order, fmt.Sprintf("Forter (pre) Decision: %s", preDecision)); err != nil {
		return err
	}
	c.logger.Info("Pre-authorization decision reconciled",
		zap.String("order_increment_id", order.IncrementID),
		zap.String("decision", preDecision),
		zap.Any("payment", order.Payment),
	)
	record := newLogRecord(cfg, order, LabelPreAuth, map[string]interface{}{"decision": preDecision})
	return c.logs.SendLog(ctx, record)
}

func newPostAuthEntity(order *models.Order) *models.FraudEntity {
	return &models.FraudEntity{
		OrderIncrementID: order.IncrementID,
		StoreID:          order.StoreID,
		ValidationType:   models.ValidationPostAuthorization,
		EntityType:       models.EntityTypeOrder,
	}
}
