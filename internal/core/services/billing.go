package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
)

const currency = "usd"

// ErrPaymentNotFound is returned when an intent id does not belong to the caller.
var ErrPaymentNotFound = errors.New("payment not found")

// GatewayError wraps a failure reported by the payment gateway.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string { return e.Err.Error() }
func (e *GatewayError) Unwrap() error { return e.Err }

// IntentInput starts a card payment for a shipment.
type IntentInput struct {
	ShipmentID          string
	PaymentMethodID     string
	Confirm             *bool
	ReturnURL           string
	IncludeDriverAssist bool
}

// BillingService invoices shipments and drives payments through the gateway.
type BillingService struct {
	billing          ports.BillingRepository
	shipments        ports.ShipmentRepository
	users            ports.UserRepository
	gateway          ports.PaymentGateway
	defaultReturnURL string
	now              func() time.Time
}

func NewBillingService(billing ports.BillingRepository, shipments ports.ShipmentRepository, users ports.UserRepository, gateway ports.PaymentGateway, frontendURL string) *BillingService {
	return &BillingService{
		billing:          billing,
		shipments:        shipments,
		users:            users,
		gateway:          gateway,
		defaultReturnURL: strings.TrimSuffix(frontendURL, "/") + "/payment-return",
		now:              time.Now,
	}
}

func (s *BillingService) userShipment(ctx context.Context, u *domain.User, id string) (*domain.Shipment, *domain.ValidationError) {
	if id == "" {
		return nil, domain.NewValidationError("shipment_id", msgRequired)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NewValidationError("shipment_id", "Must be a valid UUID.")
	}
	sh, err := s.shipments.ShipmentByID(ctx, u.ID, id)
	if err != nil {
		return nil, domain.NewValidationError("shipment_id", "Shipment not found")
	}
	return sh, nil
}

func (s *BillingService) newInvoice(sh *domain.Shipment, includeAssist bool) *domain.Invoice {
	inv := &domain.Invoice{
		ShipmentID:      sh.ID,
		InvoiceNumber:   "INV-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]),
		Status:          domain.InvoicePending,
		Amount:          decimal.Zero,
		DriverAssistFee: decimal.Zero,
		CreatedAt:       s.now(),
	}
	if sh.BasePrice.Valid {
		inv.Amount = sh.BasePrice.Decimal
	}
	if includeAssist {
		inv.DriverAssistFee = domain.DriverAssistFee
	}
	inv.Total()
	return inv
}

// CreateInvoice bills one of the user's shipments that has no invoice yet.
func (s *BillingService) CreateInvoice(ctx context.Context, u *domain.User, shipmentID string, includeAssist bool) (*domain.Invoice, error) {
	sh, verr := s.userShipment(ctx, u, shipmentID)
	if verr != nil {
		return nil, verr
	}
	if _, err := s.billing.InvoiceByShipment(ctx, sh.ID); err == nil {
		return nil, domain.NewValidationError("shipment_id", "Invoice already exists for this shipment")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	inv := s.newInvoice(sh, includeAssist)
	if err := s.billing.CreateInvoice(ctx, inv); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.NewValidationError("shipment_id", "Invoice already exists for this shipment")
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return inv, nil
}

// Invoices pages through the user's invoices, newest first.
func (s *BillingService) Invoices(ctx context.Context, u *domain.User, limit, offset int) ([]*domain.Invoice, int, error) {
	total, err := s.billing.CountInvoices(ctx, u.ID)
	if err != nil {
		return nil, 0, err
	}
	list, err := s.billing.ListInvoices(ctx, u.ID, limit, offset)
	return list, total, err
}

func (s *BillingService) Invoice(ctx context.Context, u *domain.User, id int64) (*domain.Invoice, error) {
	return s.billing.InvoiceForUser(ctx, u.ID, id)
}

// CreateIntent invoices the shipment if needed and asks the gateway to charge it.
// When the gateway refuses, an invoice created by this call is removed again.
func (s *BillingService) CreateIntent(ctx context.Context, u *domain.User, in IntentInput) (*domain.PaymentOutcome, error) {
	v := &domain.ValidationError{}
	sh, verr := s.userShipment(ctx, u, in.ShipmentID)
	v.Merge("", verr)
	if in.PaymentMethodID == "" {
		v.Add("payment_method_id", msgRequired)
	} else {
		maxLen(v, "payment_method_id", in.PaymentMethodID, 255)
	}
	if in.ReturnURL != "" && !validURL(in.ReturnURL) {
		v.Add("return_url", "Enter a valid URL.")
	}

	var inv *domain.Invoice
	if sh != nil {
		if sh.Status != domain.StatusUpcoming {
			v.Add("shipment_id", "Shipment must have 'upcoming' status to create payment")
		} else {
			existing, err := s.billing.InvoiceByShipment(ctx, sh.ID)
			switch {
			case err == nil && existing.Status != domain.InvoicePending:
				v.Add("shipment_id", "Invoice must be in pending status to create payment intent")
			case err == nil:
				inv = existing
			case !errors.Is(err, domain.ErrNotFound):
				return nil, err
			}
		}
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	created := false
	if inv == nil {
		inv = s.newInvoice(sh, in.IncludeDriverAssist)
		if err := s.billing.CreateInvoice(ctx, inv); err != nil {
			return nil, fmt.Errorf("failed to create invoice: %w", err)
		}
		created = true
	}

	confirm := in.Confirm == nil || *in.Confirm
	returnURL := in.ReturnURL
	if returnURL == "" {
		returnURL = s.defaultReturnURL
	}

	intent, err := s.charge(ctx, u, inv, in.PaymentMethodID, confirm, returnURL)
	if err != nil {
		if created {
			if derr := s.billing.DeleteInvoice(ctx, inv.ID); derr != nil {
				log.WithFields(log.Fields{"invoice": inv.InvoiceNumber, "error": derr}).Error("failed to remove invoice")
			}
		}
		var gerr *GatewayError
		if errors.As(err, &gerr) {
			return nil, domain.NewValidationError(domain.NonFieldErrors, "Payment failed: "+gerr.Error())
		}
		return nil, err
	}

	now := s.now()
	p := &domain.Payment{
		InvoiceID:       inv.ID,
		IntentID:        intent.ID,
		PaymentMethodID: in.PaymentMethodID,
		Amount:          inv.TotalAmount,
		Status:          domain.PaymentStatusFromGateway(intent.Status),
		ClientSecret:    intent.ClientSecret,
		CreatedAt:       now,
		UpdatedAt:       now,
		InvoiceNumber:   inv.InvoiceNumber,
		ShipmentID:      inv.ShipmentID,
	}
	if err := s.billing.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	switch {
	case intent.Status == "succeeded":
		if err := s.billing.MarkPaid(ctx, p, now); err != nil {
			return nil, err
		}
	case intent.RequiresAction():
		p.Status = domain.PaymentRequiresAction
		if err := s.billing.UpdatePayment(ctx, p); err != nil {
			return nil, err
		}
	case intent.Status == "requires_payment_method":
		p.Status = domain.PaymentFailed
		p.FailureReason = "Payment method declined"
		if err := s.billing.UpdatePayment(ctx, p); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{"invoice": inv.InvoiceNumber, "intent": intent.ID, "status": intent.Status}).Info("payment intent created")
	return outcome(p, intent), nil
}

func (s *BillingService) charge(ctx context.Context, u *domain.User, inv *domain.Invoice, method string, confirm bool, returnURL string) (*domain.PaymentIntent, error) {
	if u.StripeCustomerID == "" {
		id, err := s.gateway.CreateCustomer(ctx, u.Email, customerName(u))
		if err != nil {
			return nil, &GatewayError{Err: err}
		}
		u.StripeCustomerID = id
		u.UpdatedAt = s.now()
		if err := s.users.UpdateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to store customer id: %w", err)
		}
	}

	req := ports.IntentRequest{
		AmountCents:     inv.TotalAmount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:        currency,
		CustomerID:      u.StripeCustomerID,
		PaymentMethodID: method,
		Metadata: map[string]string{
			"invoice_id":  fmt.Sprint(inv.ID),
			"shipment_id": inv.ShipmentID,
			"user_id":     u.ID,
		},
	}
	if confirm {
		req.Confirm = true
		req.ReturnURL = returnURL
	}
	intent, err := s.gateway.CreateIntent(ctx, req)
	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	return intent, nil
}

// ConfirmIntent confirms an intent that was created without confirmation or needed action.
func (s *BillingService) ConfirmIntent(ctx context.Context, u *domain.User, intentID string) (*domain.PaymentOutcome, error) {
	if intentID == "" {
		return nil, domain.NewValidationError("payment_intent_id", msgRequired)
	}
	p, err := s.billing.PaymentByIntentForUser(ctx, u.ID, intentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewValidationError("payment_intent_id", "Payment not found")
	}
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.ConfirmIntent(ctx, intentID)
	if err != nil {
		return nil, domain.NewValidationError(domain.NonFieldErrors, "Payment confirmation failed: "+err.Error())
	}

	now := s.now()
	p.Status = domain.PaymentStatusFromGateway(intent.Status)
	p.UpdatedAt = now
	if intent.Status == "succeeded" {
		err = s.billing.MarkPaid(ctx, p, now)
	} else {
		err = s.billing.UpdatePayment(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return outcome(p, intent), nil
}

// PaymentStatus refreshes a payment from the gateway.
func (s *BillingService) PaymentStatus(ctx context.Context, u *domain.User, intentID string) (*domain.PaymentStatusReport, error) {
	p, err := s.billing.PaymentByIntentForUser(ctx, u.ID, intentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, &GatewayError{Err: err}
	}

	status := domain.PaymentStatusFromGateway(intent.Status)
	if p.Status != status {
		now := s.now()
		p.Status = status
		p.UpdatedAt = now
		if err := s.billing.UpdatePayment(ctx, p); err != nil {
			return nil, err
		}
		if status == domain.PaymentSucceeded {
			inv, err := s.billing.InvoiceForUser(ctx, u.ID, p.InvoiceID)
			if err != nil {
				return nil, err
			}
			if inv.Status != domain.InvoicePaid {
				if err := s.billing.MarkInvoicePaid(ctx, p, now); err != nil {
					return nil, err
				}
			}
		}
	}

	return &domain.PaymentStatusReport{
		IntentID:       intentID,
		Status:         intent.Status,
		LocalStatus:    p.Status,
		RequiresAction: intent.RequiresAction(),
	}, nil
}

// History lists the user's payments, newest first.
func (s *BillingService) History(ctx context.Context, u *domain.User) ([]*domain.Payment, error) {
	return s.billing.PaymentsForUser(ctx, u.ID)
}

// HandleWebhook applies a verified gateway notification. Events about unknown
// intents and unhandled event types are acknowledged and ignored.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		return err
	}

	logger := log.WithFields(log.Fields{"event": ev.Type, "intent": ev.IntentID})
	switch ev.Type {
	case domain.EventIntentSucceeded, domain.EventIntentFailed, domain.EventIntentRequiresAction:
	default:
		logger.Debug("ignoring webhook event")
		return nil
	}

	p, err := s.billing.PaymentByIntent(ctx, ev.IntentID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("webhook for unknown payment")
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	p.UpdatedAt = now
	switch ev.Type {
	case domain.EventIntentSucceeded:
		err = s.billing.MarkPaid(ctx, p, now)
	case domain.EventIntentFailed:
		p.Status = domain.PaymentFailed
		p.FailureReason = ev.FailureReason
		if p.FailureReason == "" {
			p.FailureReason = "Unknown error"
		}
		err = s.billing.UpdatePayment(ctx, p)
	case domain.EventIntentRequiresAction:
		p.Status = domain.PaymentRequiresAction
		err = s.billing.UpdatePayment(ctx, p)
	}
	if err != nil {
		return err
	}
	logger.Info("payment updated from webhook")
	return nil
}

func outcome(p *domain.Payment, intent *domain.PaymentIntent) *domain.PaymentOutcome {
	return &domain.PaymentOutcome{
		Payment:        p,
		ClientSecret:   intent.ClientSecret,
		Status:         intent.Status,
		RequiresAction: intent.RequiresAction(),
		NextAction:     intent.NextAction,
	}
}

func customerName(u *domain.User) string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
