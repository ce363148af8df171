package models

type OrderState string

const (
	OrderStateNew            OrderState = "new"
	OrderStatePendingPayment OrderState = "pending_payment"
	OrderStateProcessing     OrderState = "processing"
	OrderStateComplete       OrderState = "complete"
	OrderStateClosed         OrderState = "closed"
	OrderStateCanceled       OrderState = "canceled"
	OrderStateHolded         OrderState = "holded"
	OrderStatePaymentReview  OrderState = "payment_review"
)

type Payment struct {
	Method    string  `json:"method"`
	CcType    string  `json:"cc_type,omitempty"`
	CcLast4   string  `json:"cc_last4,omitempty"`
	CcTransID string  `json:"cc_trans_id,omitempty"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

// Order is owned by the order-management system. The fraud flow only changes
// its state, hold bookkeeping and email flags.
type Order struct {
	IncrementID      string     `json:"increment_id"`
	StoreID          string     `json:"store_id"`
	State            OrderState `json:"state"`
	HoldBeforeState  OrderState `json:"hold_before_state,omitempty"`
	SubPaymentMethod string     `json:"sub_payment_method,omitempty"`
	CustomerEmail    string     `json:"customer_email"`
	GrandTotal       float64    `json:"grand_total"`
	Currency         string     `json:"currency"`
	CanSendNewEmail  bool       `json:"can_send_new_email"`
	DeclineMailSent  bool       `json:"decline_mail_sent"`
	Payment          Payment    `json:"payment"`
}

// SubMethod resolves the wallet/sub method, falling back to the card type
// (googlepay, applepay, VI, ...).
func (o *Order) SubMethod() string {
	if o.SubPaymentMethod != "" {
		return o.SubPaymentMethod
	}
	return o.Payment.CcType
}

func (o *Order) CanHold() bool {
	switch o.State {
	case OrderStateHolded, OrderStatePaymentReview, OrderStateCanceled, OrderStateComplete, OrderStateClosed:
		return false
	}
	return true
}

// ReadyForValidation reports whether the processor has returned a
// transaction id for the payment.
func (o *Order) ReadyForValidation() bool {
	return o.Payment.CcTransID != ""
}
