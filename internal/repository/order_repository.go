package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderRepository reads and writes the order system's sales tables.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sales_orders (
			increment_id VARCHAR(64) PRIMARY KEY,
			store_id VARCHAR(32) NOT NULL,
			state VARCHAR(32) NOT NULL,
			hold_before_state VARCHAR(32) NOT NULL DEFAULT '',
			sub_payment_method VARCHAR(64) NOT NULL DEFAULT '',
			customer_email VARCHAR(255) NOT NULL DEFAULT '',
			grand_total NUMERIC(12,4) NOT NULL DEFAULT 0,
			currency VARCHAR(3) NOT NULL DEFAULT '',
			can_send_new_email BOOLEAN NOT NULL DEFAULT TRUE,
			decline_mail_sent BOOLEAN NOT NULL DEFAULT FALSE,
			payment JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sales_order_status_history (
			id BIGSERIAL PRIMARY KEY,
			order_increment_id VARCHAR(64) NOT NULL REFERENCES sales_orders(increment_id),
			comment TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_order ON sales_order_status_history(order_increment_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) GetByIncrementID(ctx context.Context, incrementID string) (*models.Order, error) {
	var (
		o       models.Order
		payment []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT increment_id, store_id, state, hold_before_state, sub_payment_method, customer_email,
			grand_total, currency, can_send_new_email, decline_mail_sent, payment
		FROM sales_orders WHERE increment_id = $1
	`, incrementID).Scan(&o.IncrementID, &o.StoreID, &o.State, &o.HoldBeforeState, &o.SubPaymentMethod,
		&o.CustomerEmail, &o.GrandTotal, &o.Currency, &o.CanSendNewEmail, &o.DeclineMailSent, &payment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", incrementID, err)
	}
	if err := json.Unmarshal(payment, &o.Payment); err != nil {
		return nil, fmt.Errorf("failed to decode payment of order %s: %w", incrementID, err)
	}
	return &o, nil
}

// UpsertSnapshot stores the order as carried by an order-system event. A
// known order only takes the payment and customer fields; state, hold
// bookkeeping and the email flags stay as persisted.
func (r *OrderRepository) UpsertSnapshot(ctx context.Context, order *models.Order) error {
	payment, err := json.Marshal(order.Payment)
	if err != nil {
		return fmt.Errorf("failed to encode payment of order %s: %w", order.IncrementID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sales_orders (increment_id, store_id, state, hold_before_state, sub_payment_method,
			customer_email, grand_total, currency, can_send_new_email, decline_mail_sent, payment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (increment_id) DO UPDATE
		SET sub_payment_method = EXCLUDED.sub_payment_method,
			customer_email = EXCLUDED.customer_email,
			grand_total = EXCLUDED.grand_total,
			currency = EXCLUDED.currency,
			payment = EXCLUDED.payment,
			updated_at = NOW()
	`, order.IncrementID, order.StoreID, order.State, order.HoldBeforeState, order.SubPaymentMethod,
		order.CustomerEmail, order.GrandTotal, order.Currency, order.CanSendNewEmail, order.DeclineMailSent, payment)
	if err != nil {
		return fmt.Errorf("failed to store order %s: %w", order.IncrementID, err)
	}
	return nil
}

func (r *OrderRepository) SaveState(ctx context.Context, order *models.Order) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sales_orders
		SET state = $1, hold_before_state = $2, can_send_new_email = $3, updated_at = NOW()
		WHERE increment_id = $4
	`, order.State, order.HoldBeforeState, order.CanSendNewEmail, order.IncrementID)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.IncrementID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) AddStatusHistoryComment(ctx context.Context, incrementID, comment string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sales_order_status_history (order_increment_id, comment)
		VALUES ($1, $2)
	`, incrementID, comment)
	if err != nil {
		return fmt.Errorf("failed to add status history to order %s: %w", incrementID, err)
	}
	return nil
}

// MarkDeclineMailSent is a compare-and-set on the persisted flag, so only one
// caller per order ever gets true. A missing order is ErrOrderNotFound.
func (r *OrderRepository) MarkDeclineMailSent(ctx context.Context, incrementID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sales_orders SET decline_mail_sent = TRUE, updated_at = NOW()
		WHERE increment_id = $1 AND decline_mail_sent = FALSE
	`, incrementID)
	if err != nil {
		return false, fmt.Errorf("failed to flag decline mail for order %s: %w", incrementID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 1 {
		return true, nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales_orders WHERE increment_id = $1)`, incrementID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check order %s: %w", incrementID, err)
	}
	if !exists {
		return false, ErrOrderNotFound
	}
	return false, nil
}
