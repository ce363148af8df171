package models

type DecisionAction string

const (
	ActionDecline     DecisionAction = "decline"
	ActionApprove     DecisionAction = "approve"
	ActionNotReviewed DecisionAction = "not reviewed"
	ActionPending     DecisionAction = "pending"
)

const DecisionStatusSuccess = "success"

// FraudDecision is the parsed risk API response. It is consumed right away and
// only its action is kept on the FraudEntity.
type FraudDecision struct {
	Status          string         `json:"status"`
	Action          DecisionAction `json:"action,omitempty"`
	ReasonCode      string         `json:"reasonCode,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Message         string         `json:"message,omitempty"`
}

// IsError reports a decision-level error: an unsuccessful status or a missing action.
func (d *FraudDecision) IsError() bool {
	return d == nil || d.Status != DecisionStatusSuccess || d.Action == ""
}
