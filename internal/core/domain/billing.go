package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice statuses.
const (
	InvoicePending   = "pending"
	InvoicePaid      = "paid"
	InvoiceFailed    = "failed"
	InvoiceCancelled = "cancelled"
)

// Payment statuses.
const (
	PaymentPending        = "pending"
	PaymentProcessing     = "processing"
	PaymentSucceeded      = "succeeded"
	PaymentFailed         = "failed"
	PaymentCancelled      = "cancelled"
	PaymentRequiresAction = "requires_action"
)

// Invoice bills a single shipment.
type Invoice struct {
	ID              int64
	ShipmentID      string
	InvoiceNumber   string
	Status          string
	Amount          decimal.Decimal
	DriverAssistFee decimal.Decimal
	TotalAmount     decimal.Decimal
	CreatedAt       time.Time
	PaidAt          *time.Time
}

// Total recomputes TotalAmount from its parts.
func (i *Invoice) Total() decimal.Decimal {
	i.TotalAmount = i.Amount.Add(i.DriverAssistFee)
	return i.TotalAmount
}

// Payment is one attempt to pay an invoice through the gateway.
type Payment struct {
	ID              int64
	InvoiceID       int64
	IntentID        string
	PaymentMethodID string
	Amount          decimal.Decimal
	Status          string
	FailureReason   string
	ClientSecret    string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Resolved through the invoice, read only.
	InvoiceNumber string
	ShipmentID    string
}

// PaymentIntent is the gateway's view of a payment.
type PaymentIntent struct {
	ID           string
	Status       string
	ClientSecret string
	NextAction   json.RawMessage
}

// RequiresAction reports whether the customer has to complete an extra step (3-D Secure).
func (pi *PaymentIntent) RequiresAction() bool {
	return pi.Status == "requires_action" || pi.Status == "requires_source_action"
}

// PaymentEvent is a verified webhook notification about an intent.
type PaymentEvent struct {
	Type          string
	IntentID      string
	FailureReason string
}

// Webhook event types that change local state.
const (
	EventIntentSucceeded      = "payment_intent.succeeded"
	EventIntentFailed         = "payment_intent.payment_failed"
	EventIntentRequiresAction = "payment_intent.requires_action"
)

// PaymentStatusFromGateway maps a gateway intent status to a local payment status.
func PaymentStatusFromGateway(status string) string {
	switch status {
	case "requires_payment_method":
		return PaymentFailed
	case "requires_confirmation":
		return PaymentPending
	case "requires_action":
		return PaymentRequiresAction
	case "processing":
		return PaymentProcessing
	case "succeeded":
		return PaymentSucceeded
	case "canceled":
		return PaymentCancelled
	}
	return PaymentPending
}

// PaymentOutcome is returned by intent creation and confirmation.
type PaymentOutcome struct {
	Payment        *Payment
	ClientSecret   string
	Status         string
	RequiresAction bool
	NextAction     json.RawMessage
}

// PaymentStatusReport is the refreshed status of an intent.
type PaymentStatusReport struct {
	IntentID       string
	Status         string
	LocalStatus    string
	RequiresAction bool
}
