package models

import "time"

type ValidationType string

const (
	ValidationPreAuthorization  ValidationType = "pre-authorization"
	ValidationPostAuthorization ValidationType = "post-authorization"
)

// ForterStatus values written by the decision flow. Successful decisions store
// the decision label itself (approve, decline, ...).
const (
	StatusWaitingForData    = "waiting_for_data"
	StatusPrePostValidation = "pre_post_validation"
	StatusComplete          = "complete"
	StatusError             = "error"
)

type EntityType string

const (
	EntityTypeOrder   EntityType = "order"
	EntityTypePreAuth EntityType = "pre-auth"
	EntityTypeOther   EntityType = "other"
)

// FraudEntity is the durable per-order record of the validation lifecycle.
type FraudEntity struct {
	ID               int64          `json:"id"`
	OrderIncrementID string         `json:"order_increment_id"`
	StoreID          string         `json:"store_id"`
	ValidationType   ValidationType `json:"validation_type"`
	ForterStatus     string         `json:"forter_status"`
	EntityType       EntityType     `json:"entity_type"`
	EntityBody       string         `json:"entity_body"`
	SyncFlag         bool           `json:"sync_flag"`
	Retries          int            `json:"retries"`
	LastStatusReport string         `json:"last_status_report"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
