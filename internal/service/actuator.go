package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

const declineMailTemplate = "fraud_decline"

// OrderActuator applies fraud outcomes to an order. Every operation is safe to
// repeat: state changes are skipped when already in effect and the decline
// mail is gated by a persisted flag.
type OrderActuator struct {
	orders interfaces.OrderRepository
	mailer interfaces.Mailer
	logger *zap.Logger
}

func NewOrderActuator(orders interfaces.OrderRepository, mailer interfaces.Mailer, logger *zap.Logger) *OrderActuator {
	return &OrderActuator{
		orders: orders,
		mailer: mailer,
		logger: logger,
	}
}

func (a *OrderActuator) Hold(ctx context.Context, order *models.Order) error {
	if !order.CanHold() {
		return nil
	}
	order.HoldBeforeState = order.State
	order.State = models.OrderStateHolded
	if err := a.orders.SaveState(ctx, order); err != nil {
		return fmt.Errorf("hold order: %w", err)
	}
	a.logger.Info("Order put on hold",
		zap.String("order_increment_id", order.IncrementID),
		zap.String("hold_before_state", string(order.HoldBeforeState)),
	)
	return nil
}

// CancelToProcessing forces the order back to processing so it can be held again.
func (a *OrderActuator) CancelToProcessing(ctx context.Context, order *models.Order) error {
	if order.State == models.OrderStateProcessing {
		return nil
	}
	from := order.State
	order.State = models.OrderStateProcessing
	order.HoldBeforeState = ""
	if err := a.orders.SaveState(ctx, order); err != nil {
		return fmt.Errorf("force order to processing: %w", err)
	}
	a.logger.Info("Order forced to processing",
		zap.String("order_increment_id", order.IncrementID),
		zap.String("from_state", string(from)),
	)
	return nil
}

func (a *OrderActuator) MarkPaymentReview(ctx context.Context, order *models.Order) error {
	if order.State == models.OrderStatePaymentReview {
		return nil
	}
	order.State = models.OrderStatePaymentReview
	if err := a.orders.SaveState(ctx, order); err != nil {
		return fmt.Errorf("mark payment review: %w", err)
	}
	return a.AppendComment(ctx, order, "Forter: payment is under review")
}

// SendDeclineMail sends at most one decline mail per order. The flag is
// claimed before sending, so a failed send is not retried.
func (a *OrderActuator) SendDeclineMail(ctx context.Context, order *models.Order) error {
	claimed, err := a.orders.MarkDeclineMailSent(ctx, order.IncrementID)
	if err != nil {
		return err
	}
	if !claimed {
		a.logger.Debug("Decline mail already sent", zap.String("order_increment_id", order.IncrementID))
		return nil
	}
	order.DeclineMailSent = true

	mail := models.DeclineMail{
		OrderIncrementID: order.IncrementID,
		StoreID:          order.StoreID,
		CustomerEmail:    order.CustomerEmail,
		Template:         declineMailTemplate,
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.mailer.SendDeclineMail(ctx, mail); err != nil {
		return fmt.Errorf("send decline mail: %w", err)
	}
	return nil
}

func (a *OrderActuator) AppendComment(ctx context.Context, order *models.Order, text string) error {
	return a.orders.AddStatusHistoryComment(ctx, order.IncrementID, text)
}
