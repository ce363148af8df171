package models

import "time"

// PaymentPlacedEvent is emitted by the order system once payment placement ends.
// PreDecision carries a pre-authorization decision recorded earlier in checkout.
type PaymentPlacedEvent struct {
	Order       Order  `json:"order"`
	PreDecision string `json:"pre_decision,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// OrderSavedEvent carries the order as saved together with its previous state.
type OrderSavedEvent struct {
	Order     Order      `json:"order"`
	OrigState OrderState `json:"orig_state"`
}

// LogRecord is shipped to the fraud log collector.
type LogRecord struct {
	ID               string                 `json:"id"`
	SiteID           string                 `json:"site_id"`
	StoreID          string                 `json:"store_id"`
	OrderIncrementID string                 `json:"order_increment_id"`
	Label            string                 `json:"label"`
	Metadata         map[string]interface{} `json:"metadata"`
	Timestamp        time.Time              `json:"timestamp"`
}

type DeclineMail struct {
	OrderIncrementID string    `json:"order_increment_id"`
	StoreID          string    `json:"store_id"`
	CustomerEmail    string    `json:"customer_email"`
	Template         string    `json:"template"`
	CreatedAt        time.Time `json:"created_at"`
}

// Diagnostic is a failure caught at the event boundary.
type Diagnostic struct {
	ID               string    `json:"id"`
	Event            string    `json:"event"`
	OrderIncrementID string    `json:"order_increment_id"`
	StoreID          string    `json:"store_id"`
	Error            string    `json:"error"`
	Timestamp        time.Time `json:"timestamp"`
}
