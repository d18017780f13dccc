// Package http exposes the accounts, shipper and payments services as a JSON API on fiber.
package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiporbit/shiporbit/internal/core/services"
)

// Config holds the transport settings of the API.
type Config struct {
	// AllowedHosts are accepted next to DefaultHosts, matched against the Host header without port.
	AllowedHosts []string
	// AllowedOrigins may call the API from a browser with credentials, next to DefaultOrigins.
	AllowedOrigins []string
	// Prefork runs one listener per worker process (SO_REUSEPORT).
	Prefork bool
	// Registry receives the HTTP metrics; nil uses a private registry.
	Registry *prometheus.Registry
	Version  string
}

// Services are the use cases the API exposes.
type Services struct {
	Accounts *services.AccountService
	Shipper  *services.ShipperService
	Billing  *services.BillingService
}

// DefaultHosts are always accepted next to the configured ones.
var DefaultHosts = []string{"localhost", "127.0.0.1", "shiporbit.ahmedelbilal.com"}

// DefaultOrigins are always allowed next to the configured frontend.
var DefaultOrigins = []string{"http://127.0.0.1:5173", "https://shiporbit.ahmedelbilal.com"}

// NewApp builds the fiber application with every route mounted.
func NewApp(cfg Config, svc Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "shiporbit",
		Prefork:               cfg.Prefork,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		BodyLimit:             2 << 20,
	})

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := newMetrics(reg)

	app.Use(recover.New())
	app.Use(requestLogger())
	app.Use(m.middleware())

	// Probes and scrapes bypass the host check.
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", m.handler())

	app.Use(allowedHosts(merge(DefaultHosts, cfg.AllowedHosts)))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(merge(DefaultOrigins, cfg.AllowedOrigins), ","),
		AllowCredentials: true,
		AllowHeaders:     "Accept, Authorization, Content-Type, Origin, Stripe-Signature",
	}))

	h := &handlers{svc: svc, buildVersion: cfg.Version}
	auth := requireToken(svc.Accounts)

	api := app.Group("/api")
	api.Get("/version", h.version)

	// accounts
	api.Post("/auth/register", h.register)
	api.Post("/auth/login", h.login)
	api.Post("/auth/password-reset/request", h.passwordResetRequest)
	api.Post("/auth/password-reset/confirm", h.passwordResetConfirm)
	api.Post("/auth/verify-email", h.verifyEmail)
	api.Post("/auth/resend-verification", auth, h.resendVerification)
	api.Get("/auth/user", auth, h.userProfile)

	// shipper
	shipper := api.Group("/shipper", auth)
	shipper.Post("/shipping-needs", h.shippingNeeds)
	shipper.Get("/cities", h.cities)
	shipper.Get("/country-regions", h.regions)
	shipper.Post("/distance-price", h.quote)
	shipper.Get("/dashboard", h.dashboard)
	shipper.Get("/price-calculations", h.priceCalculations)

	shipments := shipper.Group("/shipments")
	shipments.Post("/calculate", h.quote)
	shipments.Get("/", h.listShipments)
	shipments.Post("/", h.createShipment)
	shipments.Get("/:id", h.getShipment)
	shipments.Put("/:id", h.updateShipment)
	shipments.Patch("/:id", h.updateShipment)
	shipments.Delete("/:id", h.deleteShipment)
	shipments.Put("/:id/appointment", h.appointment)
	shipments.Patch("/:id/appointment", h.appointment)
	shipments.Put("/:id/finalizing", h.finalize)
	shipments.Patch("/:id/finalizing", h.finalize)
	shipments.Post("/:id/status", h.changeStatus)
	shipments.Get("/:id/status-history", h.statusHistory)
	shipments.Post("/:id/draft", h.saveDraft)
	shipments.Get("/:id/locations", h.locations)

	// payments
	api.Get("/invoices", auth, h.listInvoices)
	api.Post("/invoices", auth, h.createInvoice)
	api.Get("/invoices/:id<int>", auth, h.getInvoice)
	api.Post("/payments/create-intent", auth, h.createIntent)
	api.Post("/payments/confirm", auth, h.confirmIntent)
	api.Get("/payments/status/:intent", auth, h.paymentStatus)
	api.Get("/payments/history", auth, h.paymentHistory)
	api.Post("/webhooks/stripe", h.stripeWebhook)

	app.Use(func(c *fiber.Ctx) error { return fiber.ErrNotFound })
	return app
}

type handlers struct {
	svc          Services
	buildVersion string
}

func (h *handlers) version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"version": h.buildVersion})
}

// merge returns base plus the non-empty extras without duplicates or trailing slashes.
func merge(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	var out []string
	for _, v := range append(append([]string{}, base...), extra...) {
		v = strings.TrimSuffix(strings.TrimSpace(v), "/")
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
