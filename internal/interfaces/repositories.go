package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

// FraudEntityRepository defines the contract for fraud entity data access
type FraudEntityRepository interface {
	// GetByIncrementID returns repository.ErrEntityNotFound when no entity exists.
	GetByIncrementID(ctx context.Context, incrementID string) (*models.FraudEntity, error)
	// Create inserts the entity unless one already exists for the order, and
	// returns the stored row either way.
	Create(ctx context.Context, entity *models.FraudEntity) (*models.FraudEntity, error)
	Save(ctx context.Context, entity *models.FraudEntity) error
}

// OrderRepository is the slice of the order-management system the fraud flow writes to.
type OrderRepository interface {
	// UpsertSnapshot stores an event's order; an existing row keeps its state and flags.
	UpsertSnapshot(ctx context.Context, order *models.Order) error
	// GetByIncrementID returns repository.ErrOrderNotFound when no order exists.
	GetByIncrementID(ctx context.Context, incrementID string) (*models.Order, error)
	SaveState(ctx context.Context, order *models.Order) error
	AddStatusHistoryComment(ctx context.Context, incrementID, comment string) error
	// MarkDeclineMailSent flips the decline-mail flag and reports whether this
	// call was the one that flipped it.
	MarkDeclineMailSent(ctx context.Context, incrementID string) (bool, error)
}
