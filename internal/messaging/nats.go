package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

// NATSDiagnostics is the catch-all sink for failures caught at the event boundary.
type NATSDiagnostics struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

func NewNATSDiagnostics(nc *nats.Conn, subject string, logger *zap.Logger) *NATSDiagnostics {
	return &NATSDiagnostics{nc: nc, subject: subject, logger: logger}
}

func (d *NATSDiagnostics) Report(ctx context.Context, diagnostic models.Diagnostic) error {
	d.logger.Error("Fraud flow failure",
		zap.String("event", diagnostic.Event),
		zap.String("order_increment_id", diagnostic.OrderIncrementID),
		zap.String("store_id", diagnostic.StoreID),
		zap.String("error", diagnostic.Error),
	)

	payload, err := json.Marshal(diagnostic)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostic: %w", err)
	}
	if err := d.nc.Publish(d.subject, payload); err != nil {
		return fmt.Errorf("failed to publish diagnostic: %w", err)
	}
	return nil
}
