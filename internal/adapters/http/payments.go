package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/shiporbit/shiporbit/internal/core/ports"
	"github.com/shiporbit/shiporbit/internal/core/services"
)

func (h *handlers) listInvoices(c *fiber.Ctx) error {
	p, err := pageParam(c)
	if err != nil {
		return err
	}
	list, total, err := h.svc.Billing.Invoices(c.Context(), user(c), p.limit(), p.offset())
	if err != nil {
		return err
	}
	return p.respond(c, total, invoices(list))
}

func (h *handlers) createInvoice(c *fiber.Ctx) error {
	var req struct {
		ShipmentID          string `json:"shipment_id"`
		IncludeDriverAssist bool   `json:"include_driver_assist"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	inv, err := h.svc.Billing.CreateInvoice(c.Context(), user(c), req.ShipmentID, req.IncludeDriverAssist)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newInvoiceJSON(inv))
}

func (h *handlers) getInvoice(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.ErrNotFound
	}
	inv, err := h.svc.Billing.Invoice(c.Context(), user(c), id)
	if err != nil {
		return err
	}
	return c.JSON(newInvoiceJSON(inv))
}

func (h *handlers) createIntent(c *fiber.Ctx) error {
	var req struct {
		ShipmentID          string `json:"shipment_id"`
		PaymentMethodID     string `json:"payment_method_id"`
		Confirm             *bool  `json:"confirm"`
		ReturnURL           string `json:"return_url"`
		IncludeDriverAssist bool   `json:"include_driver_assist"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	out, err := h.svc.Billing.CreateIntent(c.Context(), user(c), services.IntentInput{
		ShipmentID:          req.ShipmentID,
		PaymentMethodID:     req.PaymentMethodID,
		Confirm:             req.Confirm,
		ReturnURL:           req.ReturnURL,
		IncludeDriverAssist: req.IncludeDriverAssist,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment":         newPaymentJSON(out.Payment),
		"client_secret":   out.ClientSecret,
		"status":          out.Status,
		"requires_action": out.RequiresAction,
		"next_action":     nextAction(out.NextAction),
		"message":         "Payment intent created successfully",
	})
}

func (h *handlers) confirmIntent(c *fiber.Ctx) error {
	var req struct {
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	out, err := h.svc.Billing.ConfirmIntent(c.Context(), user(c), req.PaymentIntentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"payment":         newPaymentJSON(out.Payment),
		"status":          out.Status,
		"requires_action": out.RequiresAction,
		"next_action":     nextAction(out.NextAction),
		"message":         "Payment confirmed successfully",
	})
}

func (h *handlers) paymentStatus(c *fiber.Ctx) error {
	report, err := h.svc.Billing.PaymentStatus(c.Context(), user(c), c.Params("intent"))
	var gerr *services.GatewayError
	switch {
	case errors.Is(err, services.ErrPaymentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	case errors.As(err, &gerr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": gerr.Error()})
	case err != nil:
		return err
	}
	return c.JSON(fiber.Map{
		"payment_intent_id": report.IntentID,
		"status":            report.Status,
		"local_status":      report.LocalStatus,
		"requires_action":   report.RequiresAction,
	})
}

func (h *handlers) paymentHistory(c *fiber.Ctx) error {
	list, err := h.svc.Billing.History(c.Context(), user(c))
	if err != nil {
		return err
	}
	return c.JSON(payments(list))
}

// stripeWebhook is called by the gateway; the signature replaces token auth.
func (h *handlers) stripeWebhook(c *fiber.Ctx) error {
	err := h.svc.Billing.HandleWebhook(c.Context(), c.Body(), c.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, ports.ErrInvalidPayload):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payload"})
	case errors.Is(err, ports.ErrInvalidSignature):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid signature"})
	case err != nil:
		return err
	}
	return c.JSON(fiber.Map{"status": "success"})
}
