package ports

import (
	"context"
	"time"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

// UserRepository persists accounts, companies, shipping needs and API tokens.
// Lookups return domain.ErrNotFound when nothing matches.
type UserRepository interface {
	// CreateAccount stores a user and its company atomically.
	// A duplicate email yields domain.ErrConflict.
	CreateAccount(ctx context.Context, u *domain.User, c *domain.Company) error
	UserByID(ctx context.Context, id string) (*domain.User, error)
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	UserByVerificationToken(ctx context.Context, token string) (*domain.User, error)
	UserByResetToken(ctx context.Context, token string) (*domain.User, error)
	UpdateUser(ctx context.Context, u *domain.User) error

	CompanyByUser(ctx context.Context, userID string) (*domain.Company, error)
	UpdateCompany(ctx context.Context, c *domain.Company) error

	ShippingNeedsByUser(ctx context.Context, userID string) (*domain.ShippingNeeds, error)
	// CreateShippingNeeds yields domain.ErrConflict when the user already has them.
	CreateShippingNeeds(ctx context.Context, n *domain.ShippingNeeds) error

	// TokenForUser returns the user's existing token, storing candidate if there is none.
	TokenForUser(ctx context.Context, userID, candidate string) (string, error)
	UserByToken(ctx context.Context, key string) (*domain.User, error)
}

// ShipmentFilter narrows shipment listings. Zero values mean "no constraint".
type ShipmentFilter struct {
	UserID        string
	Statuses      []string
	PickupBefore  *time.Time // inclusive
	OrderByPickup bool       // ascending pickup date instead of newest first
	Limit         int
	Offset        int
}

// ShipmentRepository persists cities, quotes, shipments and their locations.
type ShipmentRepository interface {
	CityByID(ctx context.Context, id int64) (*domain.City, error)
	// GetOrCreateCity returns the stored city with c.ID, inserting c when missing.
	GetOrCreateCity(ctx context.Context, c *domain.City) (*domain.City, error)

	PriceCalculationFor(ctx context.Context, pickupCityID, dropoffCityID int64, equipment string) (*domain.PriceCalculation, error)
	CreatePriceCalculation(ctx context.Context, p *domain.PriceCalculation) error
	RecentPriceCalculations(ctx context.Context, limit int) ([]*domain.PriceCalculation, error)

	// CreateShipment stores a shipment and its locations atomically.
	CreateShipment(ctx context.Context, s *domain.Shipment, locations []*domain.Location) error
	// ShipmentByID only returns shipments owned by userID.
	ShipmentByID(ctx context.Context, userID, id string) (*domain.Shipment, error)
	ListShipments(ctx context.Context, f ShipmentFilter) ([]*domain.Shipment, error)
	CountShipments(ctx context.Context, f ShipmentFilter) (int, error)
	UpdateShipment(ctx context.Context, s *domain.Shipment) error
	DeleteShipment(ctx context.Context, userID, id string) error

	Locations(ctx context.Context, shipmentID string) ([]*domain.Location, error)
	CountLocations(ctx context.Context, shipmentID string) (int, error)
	UpsertLocation(ctx context.Context, l *domain.Location) error
	// UpdateLocationDetails sets reference number and notes of one location type.
	UpdateLocationDetails(ctx context.Context, shipmentID, locationType, number, notes string) error

	// ChangeStatus updates the shipment status and appends the history entry atomically.
	ChangeStatus(ctx context.Context, s *domain.Shipment, change *domain.StatusChange) error
	StatusHistory(ctx context.Context, shipmentID string, limit, offset int) ([]*domain.StatusChange, error)
	CountStatusHistory(ctx context.Context, shipmentID string) (int, error)
}

// BillingRepository persists invoices and payments.
type BillingRepository interface {
	// CreateInvoice yields domain.ErrConflict when the shipment is already invoiced.
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	InvoiceByShipment(ctx context.Context, shipmentID string) (*domain.Invoice, error)
	InvoiceForUser(ctx context.Context, userID string, id int64) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, userID string, limit, offset int) ([]*domain.Invoice, error)
	CountInvoices(ctx context.Context, userID string) (int, error)
	DeleteInvoice(ctx context.Context, id int64) error

	CreatePayment(ctx context.Context, p *domain.Payment) error
	UpdatePayment(ctx context.Context, p *domain.Payment) error
	PaymentByIntent(ctx context.Context, intentID string) (*domain.Payment, error)
	PaymentByIntentForUser(ctx context.Context, userID, intentID string) (*domain.Payment, error)
	PaymentsForUser(ctx context.Context, userID string) ([]*domain.Payment, error)

	// MarkPaid stores the payment as succeeded, the invoice as paid and moves
	// the shipment in progress, atomically.
	MarkPaid(ctx context.Context, p *domain.Payment, paidAt time.Time) error
	// MarkInvoicePaid settles the invoice of p and moves its shipment in progress.
	MarkInvoicePaid(ctx context.Context, p *domain.Payment, paidAt time.Time) error
}

// Store bundles every repository on one database.
type Store interface {
	UserRepository
	ShipmentRepository
	BillingRepository
	Close() error
}
