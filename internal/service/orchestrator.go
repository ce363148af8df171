package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/config"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/telemetry"
)

const (
	EventPaymentPlaced = "payment_placed"
	EventOrderSaved    = "order_saved"
)

var ErrEventInProgress = errors.New("event is already being processed")

// Dependencies wires the orchestrator. Locker may be nil.
type Dependencies struct {
	Merchants   *config.MerchantSettings
	Entities    interfaces.FraudEntityRepository
	Orders      interfaces.OrderRepository
	Risk        interfaces.RiskAPI
	Classifier  *EligibilityClassifier
	Decisions   *DecisionHandler
	Actuator    *OrderActuator
	Reporter    *OrderStatusReporter
	Logs        interfaces.LogShipper
	Diagnostics interfaces.DiagnosticsReporter
	Locker      interfaces.Locker
	LockTTL     time.Duration
	Logger      *zap.Logger
}

// Orchestrator is the event boundary of the fraud flow. Its Handle methods
// never return errors: failures go to the diagnostics reporter.
type Orchestrator struct {
	Dependencies
	tracer trace.Tracer
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 30 * time.Second
	}
	return &Orchestrator{
		Dependencies: deps,
		tracer:       otel.Tracer("fraud-orchestrator"),
	}
}

// MessageReader is the part of *kafka.Reader the consumers use.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func (o *Orchestrator) ConsumePaymentPlaced(ctx context.Context, reader MessageReader) {
	o.consume(ctx, reader, EventPaymentPlaced, func(ctx context.Context, value []byte) error {
		var event models.PaymentPlacedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		o.HandlePaymentPlaced(ctx, event)
		return nil
	})
}

func (o *Orchestrator) ConsumeOrderSaved(ctx context.Context, reader MessageReader) {
	o.consume(ctx, reader, EventOrderSaved, func(ctx context.Context, value []byte) error {
		var event models.OrderSavedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		o.HandleOrderSaved(ctx, event)
		return nil
	})
}

func (o *Orchestrator) consume(ctx context.Context, reader MessageReader, eventName string, handle func(context.Context, []byte) error) {
	o.Logger.Info("Started consuming events", zap.String("event", eventName))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				o.Logger.Info("Stopped consuming events", zap.String("event", eventName))
				return
			}
			o.Logger.Error("Error reading message from Kafka", zap.String("event", eventName), zap.Error(err))
			continue
		}

		if err := handle(ctx, msg.Value); err != nil {
			o.Logger.Error("Error unmarshaling event",
				zap.String("event", eventName),
				zap.String("key", string(msg.Key)),
				zap.Error(err),
			)
		}
	}
}

func (o *Orchestrator) HandlePaymentPlaced(ctx context.Context, event models.PaymentPlacedEvent) {
	order := event.Order
	o.guard(ctx, EventPaymentPlaced, &order, func(ctx context.Context) error {
		return o.processPaymentPlaced(ctx, event.PreDecision, event.SessionID, &order)
	})
}

func (o *Orchestrator) HandleOrderSaved(ctx context.Context, event models.OrderSavedEvent) {
	o.guard(ctx, EventOrderSaved, &event.Order, func(ctx context.Context) error {
		cfg := o.Merchants.Resolve(event.Order.StoreID)
		_, err := o.Reporter.Report(ctx, event, cfg)
		return err
	})
}

// guard runs one event under the order lock and funnels every failure,
// panics included, to diagnostics.
func (o *Orchestrator) guard(ctx context.Context, eventName string, order *models.Order, run func(context.Context) error) {
	ctx, span := o.tracer.Start(ctx, "fraud."+eventName)
	defer span.End()
	span.SetAttributes(
		attribute.String("order.increment_id", order.IncrementID),
		attribute.String("order.store_id", order.StoreID),
	)

	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err == nil {
			return
		}
		if errors.Is(err, ErrEventInProgress) {
			o.Logger.Info("Duplicate event skipped",
				zap.String("event", eventName),
				zap.String("order_increment_id", order.IncrementID),
			)
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.report(ctx, eventName, order, err)
	}()

	err = o.withLock(ctx, eventName, order.IncrementID, run)
}

func (o *Orchestrator) withLock(ctx context.Context, eventName, incrementID string, run func(context.Context) error) error {
	if o.Locker == nil {
		return run(ctx)
	}
	lockKey := fmt.Sprintf("fraud_event_lock:%s:%s", eventName, incrementID)
	token, locked, err := o.Locker.Acquire(ctx, lockKey, o.LockTTL)
	if err != nil {
		return err
	}
	if !locked {
		return ErrEventInProgress
	}
	defer func() {
		if err := o.Locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			o.Logger.Warn("Failed to release event lock",
				zap.String("lock_key", lockKey),
				zap.Duration("lock_ttl", o.LockTTL),
				zap.Error(err),
			)
		}
	}()

	return run(ctx)
}

func (o *Orchestrator) report(ctx context.Context, eventName string, order *models.Order, err error) {
	telemetry.EventFailures.WithLabelValues(eventName).Inc()
	diagnostic := models.Diagnostic{
		ID:               uuid.NewString(),
		Event:            eventName,
		OrderIncrementID: order.IncrementID,
		StoreID:          order.StoreID,
		Error:            err.Error(),
		Timestamp:        time.Now().UTC(),
	}
	if rerr := o.Diagnostics.Report(ctx, diagnostic); rerr != nil {
		o.Logger.Error("Failed to report diagnostic",
			zap.String("order_increment_id", order.IncrementID),
			zap.NamedError("cause", err),
			zap.Error(rerr),
		)
	}
}

func (o *Orchestrator) processPaymentPlaced(ctx context.Context, preDecision, sessionID string, order *models.Order) error {
	cfg := o.Merchants.Resolve(order.StoreID)

	if err := o.loadOrder(ctx, order); err != nil {
		return err
	}

	class, entity, err := o.Classifier.Classify(ctx, order, preDecision, cfg)
	if err != nil {
		return err
	}
	if class != ClassSyncRequired {
		return nil
	}

	if entity == nil {
		if entity, err = o.Entities.Create(ctx, newPostAuthEntity(order)); err != nil {
			return err
		}
	}
	if entity.SyncFlag {
		o.Logger.Info("Fraud decision already reconciled",
			zap.String("order_increment_id", order.IncrementID),
			zap.String("forter_status", entity.ForterStatus),
		)
		return nil
	}

	if cfg.IsAcceptedMethod(order.Payment.Method) && !order.ReadyForValidation() {
		entity.ForterStatus = models.StatusWaitingForData
		if err := o.Entities.Save(ctx, entity); err != nil {
			return err
		}
		if cfg.HoldingOrdersEnabled {
			return o.Actuator.Hold(ctx, order)
		}
		return nil
	}

	decision, err := o.validate(ctx, order, entity)
	if err != nil {
		return err
	}

	if decision.IsError() {
		telemetry.DecisionsTotal.WithLabelValues(models.StatusError).Inc()
		return o.Decisions.HandleError(ctx, decision, order, entity, cfg)
	}
	telemetry.DecisionsTotal.WithLabelValues(string(decision.Action)).Inc()

	if err := o.Actuator.AppendComment(ctx, order, fmt.Sprintf("Forter (post) Decision: %s%s", decision.Action, recommendationsNote(decision))); err != nil {
		return err
	}
	if err := o.Actuator.AppendComment(ctx, order, fmt.Sprintf("Forter (post) Decision Reason: %s", decision.ReasonCode)); err != nil {
		return err
	}

	if err := o.Decisions.Handle(ctx, decision.Action, order, entity, cfg, sessionID); err != nil {
		return err
	}

	// the decision counts as reconciled only once the order actions above succeeded
	entity.ForterStatus = string(decision.Action)
	entity.SyncFlag = true
	if err := o.Entities.Save(ctx, entity); err != nil {
		return err
	}

	o.Logger.Info("Fraud decision applied",
		zap.String("order_increment_id", order.IncrementID),
		zap.String("action", string(decision.Action)),
		zap.String("reason_code", decision.ReasonCode),
		zap.Any("payment", order.Payment),
	)
	record := newLogRecord(cfg, order, LabelPostAuth, map[string]interface{}{"decision": decision.Action})
	return o.Logs.SendLog(ctx, record)
}

// loadOrder records the event's snapshot and replaces it with the stored
// order, so state and the decline-mail flag come from the order store.
func (o *Orchestrator) loadOrder(ctx context.Context, order *models.Order) error {
	if err := o.Orders.UpsertSnapshot(ctx, order); err != nil {
		return err
	}
	stored, err := o.Orders.GetByIncrementID(ctx, order.IncrementID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", order.IncrementID, err)
	}
	*order = *stored
	return nil
}

// validate counts the attempt on the entity before the request goes out, so
// retries grows by one per attempt whatever the outcome.
func (o *Orchestrator) validate(ctx context.Context, order *models.Order, entity *models.FraudEntity) (*models.FraudDecision, error) {
	entity.Retries++
	entity.ForterStatus = models.StatusPrePostValidation
	if err := o.Entities.Save(ctx, entity); err != nil {
		return nil, err
	}

	decision, err := o.Risk.SendTransaction(ctx, order, StageAfterPaymentAction)
	if err != nil {
		return nil, fmt.Errorf("validate order %s: %w", order.IncrementID, err)
	}
	return decision, nil
}

func recommendationsNote(decision *models.FraudDecision) string {
	if len(decision.Recommendations) == 0 {
		return ""
	}
	return fmt.Sprintf(" (Recommendations: %s)", strings.Join(decision.Recommendations, ", "))
}
