package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

var ErrEntityNotFound = errors.New("fraud entity not found")

type FraudEntityRepository struct {
	db *sql.DB
}

func NewFraudEntityRepository(db *sql.DB) *FraudEntityRepository {
	return &FraudEntityRepository{db: db}
}

func (r *FraudEntityRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS fraud_entities (
			id BIGSERIAL PRIMARY KEY,
			order_increment_id VARCHAR(64) NOT NULL UNIQUE,
			store_id VARCHAR(32) NOT NULL,
			validation_type VARCHAR(32) NOT NULL,
			forter_status VARCHAR(64) NOT NULL DEFAULT '',
			entity_type VARCHAR(16) NOT NULL DEFAULT 'order',
			entity_body VARCHAR(64) NOT NULL DEFAULT '',
			sync_flag BOOLEAN NOT NULL DEFAULT FALSE,
			retries INTEGER NOT NULL DEFAULT 0 CHECK (retries >= 0),
			last_status_report VARCHAR(32) NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fraud_entities_status ON fraud_entities(forter_status)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *FraudEntityRepository) GetByIncrementID(ctx context.Context, incrementID string) (*models.FraudEntity, error) {
	var e models.FraudEntity
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_increment_id, store_id, validation_type, forter_status, entity_type,
			entity_body, sync_flag, retries, last_status_report, created_at, updated_at
		FROM fraud_entities WHERE order_increment_id = $1
	`, incrementID).Scan(&e.ID, &e.OrderIncrementID, &e.StoreID, &e.ValidationType, &e.ForterStatus,
		&e.EntityType, &e.EntityBody, &e.SyncFlag, &e.Retries, &e.LastStatusReport, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fraud entity %s: %w", incrementID, err)
	}
	return &e, nil
}

// Create relies on the unique order key, so a concurrent duplicate insert
// collapses into the row that won.
func (r *FraudEntityRepository) Create(ctx context.Context, entity *models.FraudEntity) (*models.FraudEntity, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fraud_entities (order_increment_id, store_id, validation_type, forter_status, entity_type, retries)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_increment_id) DO NOTHING
	`, entity.OrderIncrementID, entity.StoreID, entity.ValidationType, entity.ForterStatus, entity.EntityType, entity.Retries)
	if err != nil {
		return nil, fmt.Errorf("failed to create fraud entity %s: %w", entity.OrderIncrementID, err)
	}
	return r.GetByIncrementID(ctx, entity.OrderIncrementID)
}

func (r *FraudEntityRepository) Save(ctx context.Context, entity *models.FraudEntity) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE fraud_entities
		SET forter_status = $1, entity_type = $2, entity_body = $3, sync_flag = $4,
			retries = $5, last_status_report = $6, updated_at = NOW()
		WHERE order_increment_id = $7
	`, entity.ForterStatus, entity.EntityType, entity.EntityBody, entity.SyncFlag,
		entity.Retries, entity.LastStatusReport, entity.OrderIncrementID)
	if err != nil {
		return fmt.Errorf("failed to save fraud entity %s: %w", entity.OrderIncrementID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrEntityNotFound
	}
	return nil
}
