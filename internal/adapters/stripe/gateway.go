// Package stripe implements the payment gateway on Stripe PaymentIntents.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
)

// Gateway implements ports.PaymentGateway.
type Gateway struct {
	api           *client.API
	webhookSecret string
}

// New builds a gateway. backends may be nil for the live Stripe API.
func New(secretKey, webhookSecret string, backends *stripe.Backends) *Gateway {
	return &Gateway{api: client.New(secretKey, backends), webhookSecret: webhookSecret}
}

func (g *Gateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", message(err)
	}
	return c.ID, nil
}

func (g *Gateway) CreateIntent(ctx context.Context, req ports.IntentRequest) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
	}
	if req.Confirm {
		params.Confirm = stripe.Bool(true)
		params.ConfirmationMethod = stripe.String(string(stripe.PaymentIntentConfirmationMethodManual))
		params.ReturnURL = stripe.String(req.ReturnURL)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, message(err)
	}
	return intent(pi), nil
}

func (g *Gateway) ConfirmIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return nil, message(err)
	}
	return intent(pi), nil
}

func (g *Gateway) GetIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, message(err)
	}
	return intent(pi), nil
}

// ParseEvent verifies the Stripe-Signature header and extracts the intent the event is about.
func (g *Gateway) ParseEvent(payload []byte, signature string) (*domain.PaymentEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	switch {
	case errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrTooOld):
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidSignature, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidPayload, err)
	}

	out := &domain.PaymentEvent{Type: string(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidPayload, err)
	}
	out.IntentID = pi.ID
	if pi.LastPaymentError != nil {
		out.FailureReason = pi.LastPaymentError.Msg
	}
	return out, nil
}

func intent(pi *stripe.PaymentIntent) *domain.PaymentIntent {
	out := &domain.PaymentIntent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
	}
	if pi.NextAction != nil {
		if raw, err := json.Marshal(pi.NextAction); err == nil {
			out.NextAction = raw
		}
	}
	return out
}

// message reduces a Stripe API error to its user-facing message.
func message(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.Msg != "" {
		return errors.New(serr.Msg)
	}
	return err
}
