package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

// RiskAPI is the external fraud-risk service.
type RiskAPI interface {
	SendTransaction(ctx context.Context, order *models.Order, stage string) (*models.FraudDecision, error)
	SendOrderStatus(ctx context.Context, order *models.Order, status string) error
}

type LogShipper interface {
	SendLog(ctx context.Context, record models.LogRecord) error
}

type Mailer interface {
	SendDeclineMail(ctx context.Context, mail models.DeclineMail) error
}

type DiagnosticsReporter interface {
	Report(ctx context.Context, diagnostic models.Diagnostic) error
}

// SessionMessenger surfaces a message to the shopper's session.
type SessionMessenger interface {
	SetMessage(ctx context.Context, sessionID, message string) error
}

// Locker hands out expiring locks. Release only frees a lock still owned by token.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}
