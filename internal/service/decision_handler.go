package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/config"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

// DecisionHandler maps a risk decision onto order actions according to the
// merchant's post-decision policy.
type DecisionHandler struct {
	actuator *OrderActuator
	entities interfaces.FraudEntityRepository
	sessions interfaces.SessionMessenger
	logs     interfaces.LogShipper
	logger   *zap.Logger
}

func NewDecisionHandler(
	actuator *OrderActuator,
	entities interfaces.FraudEntityRepository,
	sessions interfaces.SessionMessenger,
	logs interfaces.LogShipper,
	logger *zap.Logger,
) *DecisionHandler {
	return &DecisionHandler{
		actuator: actuator,
		entities: entities,
		sessions: sessions,
		logs:     logs,
		logger:   logger,
	}
}

// Handle must be invoked at most once per decision; the orchestrator's event
// lock and the entity sync flag provide that.
func (h *DecisionHandler) Handle(ctx context.Context, action models.DecisionAction, order *models.Order, entity *models.FraudEntity, cfg config.MerchantConfig, sessionID string) error {
	var err error
	switch action {
	case models.ActionDecline:
		err = h.handleDecline(ctx, order, entity, cfg, sessionID)
	case models.ActionApprove:
		if cfg.ApprovePost == config.PolicyNotify {
			err = h.setMessage(ctx, order, entity, cfg, string(models.ActionApprove))
		}
	case models.ActionNotReviewed, "not_reviewed":
		if cfg.NotReviewPost == config.PolicyNotify {
			err = h.setMessage(ctx, order, entity, cfg, string(models.ActionApprove))
		}
	case models.ActionPending:
		if cfg.PendingOnHoldEnabled && order.CanHold() {
			err = h.actuator.Hold(ctx, order)
		}
	}
	if err != nil {
		return fmt.Errorf("handle %q decision for order %s: %w", action, order.IncrementID, err)
	}

	if cfg.DebugEnabled {
		h.logger.Debug("Handling order with fraud decision",
			zap.String("order_increment_id", order.IncrementID),
			zap.String("action", string(action)),
			zap.Any("payment", order.Payment),
			zap.Bool("pending_on_hold_enabled", cfg.PendingOnHoldEnabled),
		)
		record := newLogRecord(cfg, order, LabelHandlingOrder, map[string]interface{}{
			"forterDecision":       action,
			"pendingOnHoldEnabled": cfg.PendingOnHoldEnabled,
		})
		if err := h.logs.SendLog(ctx, record); err != nil {
			return err
		}
	}

	entity.EntityType = models.EntityTypeOrder
	return h.entities.Save(ctx, entity)
}

// HandleError records a decision-level error. No order action is taken.
func (h *DecisionHandler) HandleError(ctx context.Context, decision *models.FraudDecision, order *models.Order, entity *models.FraudEntity, cfg config.MerchantConfig) error {
	entity.ForterStatus = models.StatusError
	if err := h.actuator.AppendComment(ctx, order, fmt.Sprintf("Forter (post) Decision: %s", models.StatusError)); err != nil {
		return err
	}

	var action models.DecisionAction
	if decision != nil {
		action = decision.Action
	}
	h.logger.Warn("Risk API returned an unusable decision",
		zap.String("order_increment_id", order.IncrementID),
		zap.Any("payment", order.Payment),
		zap.Any("decision", decision),
	)
	record := newLogRecord(cfg, order, LabelPostAuth, map[string]interface{}{"decision": action})
	if err := h.logs.SendLog(ctx, record); err != nil {
		return err
	}
	return h.entities.Save(ctx, entity)
}

func (h *DecisionHandler) handleDecline(ctx context.Context, order *models.Order, entity *models.FraudEntity, cfg config.MerchantConfig, sessionID string) error {
	if err := h.actuator.SendDeclineMail(ctx, order); err != nil {
		return err
	}

	switch cfg.DeclinePost {
	case config.PolicyNotify:
		if err := h.sessions.SetMessage(ctx, sessionID, cfg.PostThanksMessage); err != nil {
			return err
		}
		// a held order can only be re-held after it is forced back to processing
		if cfg.ForceHoldingOrders && !order.CanHold() {
			if err := h.actuator.CancelToProcessing(ctx, order); err != nil {
				return err
			}
		}
		if order.CanHold() {
			order.CanSendNewEmail = false
			if err := h.actuator.Hold(ctx, order); err != nil {
				return err
			}
		}
		return h.setMessage(ctx, order, entity, cfg, string(models.ActionDecline))
	case config.PolicyPaymentReview:
		order.CanSendNewEmail = false
		return h.actuator.MarkPaymentReview(ctx, order)
	}
	return nil
}

func (h *DecisionHandler) setMessage(ctx context.Context, order *models.Order, entity *models.FraudEntity, cfg config.MerchantConfig, body string) error {
	h.logger.Info("Recording fraud decision message",
		zap.String("order_increment_id", order.IncrementID),
		zap.String("entity_body", body),
	)
	if cfg.DebugEnabled {
		record := newLogRecord(cfg, order, LabelQueueMessage, map[string]interface{}{
			"currentTime": time.Now().UTC(),
		})
		if err := h.logs.SendLog(ctx, record); err != nil {
			return err
		}
	}
	entity.EntityType = models.EntityTypeOrder
	entity.EntityBody = body
	return h.entities.Save(ctx, entity)
}
