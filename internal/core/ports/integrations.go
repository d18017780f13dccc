package ports

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

// GeoService searches the city catalogue.
// Results are passed through to clients unchanged.
type GeoService interface {
	Cities(ctx context.Context, namePrefix string) ([]json.RawMessage, error)
	Regions(ctx context.Context, countryCode, namePrefix string) ([]json.RawMessage, error)
}

// Email is a single HTML message.
type Email struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// IntentRequest creates a payment intent.
type IntentRequest struct {
	AmountCents     int64
	Currency        string
	CustomerID      string
	PaymentMethodID string
	Metadata        map[string]string
	Confirm         bool
	ReturnURL       string
}

var (
	// ErrInvalidPayload is returned when a webhook body cannot be decoded.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInvalidSignature is returned when a webhook signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)

// PaymentGateway is the card processor.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateIntent(ctx context.Context, req IntentRequest) (*domain.PaymentIntent, error)
	ConfirmIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error)
	// ParseEvent verifies and decodes a webhook delivery.
	ParseEvent(payload []byte, signature string) (*domain.PaymentEvent, error)
}
