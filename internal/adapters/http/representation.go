package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func nullTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timestamp(*t)
	return &s
}

func date(t time.Time) string { return t.Format(domain.DateLayout) }

type companyJSON struct {
	Name                string `json:"name"`
	Location            string `json:"location"`
	PrimaryShipsCountry string `json:"primary_ships_country"`
}

type shippingNeedsJSON struct {
	Mode        []string `json:"mode"`
	AverageFTL  string   `json:"average_ftl"`
	TrailerType []string `json:"trailer_type"`
}

type userJSON struct {
	ID              string             `json:"id"`
	Email           string             `json:"email"`
	FirstName       string             `json:"first_name"`
	LastName        string             `json:"last_name"`
	PhoneNumber     string             `json:"phone_number"`
	IsEmailVerified bool               `json:"is_email_verified"`
	Company         *companyJSON       `json:"company"`
	ShippingNeeds   *shippingNeedsJSON `json:"shipping_needs"`
}

func newUserJSON(p *domain.Profile) userJSON {
	u := p.User
	out := userJSON{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		PhoneNumber:     u.PhoneNumber,
		IsEmailVerified: u.IsEmailVerified,
	}
	if c := p.Company; c != nil {
		out.Company = &companyJSON{Name: c.Name, Location: c.Location, PrimaryShipsCountry: c.PrimaryShipsCountry}
	}
	if n := p.ShippingNeeds; n != nil {
		out.ShippingNeeds = &shippingNeedsJSON{Mode: nonNil(n.Mode), AverageFTL: n.AverageFTL, TrailerType: nonNil(n.TrailerType)}
	}
	return out
}

type cityJSON struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RegionCode string `json:"region_code"`
}

type locationJSON struct {
	LocationType         string    `json:"location_type"`
	FacilityName         string    `json:"facility_name"`
	FacilityAddress      string    `json:"facility_address"`
	City                 *cityJSON `json:"city"`
	State                string    `json:"state"`
	ZipCode              string    `json:"zip_code"`
	ContactName          string    `json:"contact_name"`
	PhoneNumber          string    `json:"phone_number"`
	Email                string    `json:"email"`
	SchedulingPreference string    `json:"scheduling_preference"`
	LocationNumber       string    `json:"location_number"`
	AdditionalNotes      string    `json:"additional_notes"`
	Date                 *string   `json:"date"`
}

// newLocationJSON renders l with the date of its end of sh, sh may be nil.
func newLocationJSON(l *domain.Location, sh *domain.Shipment) *locationJSON {
	if l == nil {
		return nil
	}
	out := &locationJSON{
		LocationType:         l.Type,
		FacilityName:         l.FacilityName,
		FacilityAddress:      l.FacilityAddress,
		State:                l.State,
		ZipCode:              l.ZipCode,
		ContactName:          l.ContactName,
		PhoneNumber:          l.PhoneNumber,
		Email:                l.Email,
		SchedulingPreference: l.SchedulingPreference,
		LocationNumber:       l.LocationNumber,
		AdditionalNotes:      l.AdditionalNotes,
	}
	if l.City != nil {
		out.City = &cityJSON{ID: l.City.ID, Name: l.City.Name, RegionCode: l.City.RegionCode}
	}
	if sh != nil {
		d := sh.PickupDate
		if l.Type == domain.LocationDropoff {
			d = sh.DropoffDate
		}
		s := date(d)
		out.Date = &s
	}
	return out
}

type shipmentListJSON struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	Pickup     *locationJSON `json:"pickup"`
	Dropoff    *locationJSON `json:"dropoff"`
	BasePrice  *string       `json:"base_price"`
	TotalPrice string        `json:"total_price"`
	Miles      *int64        `json:"miles"`
	Equipment  string        `json:"equipment"`
	CreatedAt  string        `json:"created_at"`
}

type shipmentDetailJSON struct {
	shipmentListJSON
	DriverAssist    bool   `json:"driver_assist"`
	DriverAssistFee string `json:"driver_assist_fee"`
	MinTransitTime  *int64 `json:"min_transit_time"`
	ReferenceNumber string `json:"reference_number"`
	Weight          *int64 `json:"weight"`
	Commodity       string `json:"commodity"`
	Packaging       *int64 `json:"packaging"`
	PackagingType   string `json:"packaging_type"`
	PickupDate      string `json:"pickup_date"`
	DropoffDate     string `json:"dropoff_date"`
	UpdatedAt       string `json:"updated_at"`
}

func newShipmentListJSON(v *domain.ShipmentView) shipmentListJSON {
	sh := v.Shipment
	return shipmentListJSON{
		ID:         sh.ID,
		Status:     sh.Status,
		Pickup:     newLocationJSON(v.Pickup, sh),
		Dropoff:    newLocationJSON(v.Dropoff, sh),
		BasePrice:  nullMoney(sh.BasePrice),
		TotalPrice: money(sh.TotalPrice()),
		Miles:      sh.Miles,
		Equipment:  sh.Equipment,
		CreatedAt:  timestamp(sh.CreatedAt),
	}
}

func newShipmentDetailJSON(v *domain.ShipmentView) shipmentDetailJSON {
	sh := v.Shipment
	return shipmentDetailJSON{
		shipmentListJSON: newShipmentListJSON(v),
		DriverAssist:     sh.DriverAssist,
		DriverAssistFee:  money(sh.DriverAssistFee),
		MinTransitTime:   sh.MinTransitTime,
		ReferenceNumber:  sh.ReferenceNumber,
		Weight:           sh.Weight,
		Commodity:        sh.Commodity,
		Packaging:        sh.Packaging,
		PackagingType:    sh.PackagingType,
		PickupDate:       date(sh.PickupDate),
		DropoffDate:      date(sh.DropoffDate),
		UpdatedAt:        timestamp(sh.UpdatedAt),
	}
}

func shipmentList(views []*domain.ShipmentView) []shipmentListJSON {
	out := make([]shipmentListJSON, 0, len(views))
	for _, v := range views {
		out = append(out, newShipmentListJSON(v))
	}
	return out
}

type quoteJSON struct {
	PickupLocation       string `json:"pickup_location"`
	DropoffLocation      string `json:"dropoff_location"`
	Equipment            string `json:"equipment"`
	Miles                int64  `json:"miles"`
	BasePrice            string `json:"base_price"`
	MinTransitTime       int64  `json:"min_transit_time"`
	DriverAssistFee      string `json:"driver_assist_fee"`
	TotalPriceWithAssist string `json:"total_price_with_assist"`
}

func newQuoteJSON(q *domain.Quote) quoteJSON {
	return quoteJSON{
		PickupLocation:       q.Pickup.String(),
		DropoffLocation:      q.Dropoff.String(),
		Equipment:            q.Equipment,
		Miles:                q.Miles,
		BasePrice:            money(q.BasePrice),
		MinTransitTime:       q.MinTransitTime,
		DriverAssistFee:      money(q.DriverAssistFee),
		TotalPriceWithAssist: money(q.TotalPriceWithAssist),
	}
}

type priceCalculationJSON struct {
	ID             int64  `json:"id"`
	PickupCity     int64  `json:"pickup_city"`
	DropoffCity    int64  `json:"dropoff_city"`
	Equipment      string `json:"equipment"`
	Miles          int64  `json:"miles"`
	BasePrice      string `json:"base_price"`
	MinTransitTime int64  `json:"min_transit_time"`
	RatePerMile    string `json:"rate_per_mile"`
	BaseFee        string `json:"base_fee"`
	CreatedAt      string `json:"created_at"`
}

func priceCalculations(list []*domain.PriceCalculation) []priceCalculationJSON {
	out := make([]priceCalculationJSON, 0, len(list))
	for _, p := range list {
		out = append(out, priceCalculationJSON{
			ID:             p.ID,
			PickupCity:     p.PickupCityID,
			DropoffCity:    p.DropoffCityID,
			Equipment:      p.Equipment,
			Miles:          p.Miles,
			BasePrice:      money(p.BasePrice),
			MinTransitTime: p.MinTransitTime,
			RatePerMile:    money(p.RatePerMile),
			BaseFee:        money(p.BaseFee),
			CreatedAt:      timestamp(p.CreatedAt),
		})
	}
	return out
}

type statusChangeJSON struct {
	ID           int64  `json:"id"`
	Shipment     string `json:"shipment"`
	OldStatus    string `json:"old_status"`
	NewStatus    string `json:"new_status"`
	ChangedBy    string `json:"changed_by"`
	ChangeReason string `json:"change_reason"`
	CreatedAt    string `json:"created_at"`
}

// statusHistory shows the caller's own changes by email.
func statusHistory(list []*domain.StatusChange, u *domain.User) []statusChangeJSON {
	out := make([]statusChangeJSON, 0, len(list))
	for _, h := range list {
		by := h.ChangedBy
		if by == u.ID {
			by = u.Email
		}
		out = append(out, statusChangeJSON{
			ID:           h.ID,
			Shipment:     h.ShipmentID,
			OldStatus:    h.OldStatus,
			NewStatus:    h.NewStatus,
			ChangedBy:    by,
			ChangeReason: h.ChangeReason,
			CreatedAt:    timestamp(h.CreatedAt),
		})
	}
	return out
}

type dashboardJSON struct {
	StatusCounts      map[string]int     `json:"status_counts"`
	TotalShipments    int                `json:"total_shipments"`
	RecentShipments   []shipmentListJSON `json:"recent_shipments"`
	UpcomingShipments []shipmentListJSON `json:"upcoming_shipments"`
}

func newDashboardJSON(d *domain.Dashboard) dashboardJSON {
	return dashboardJSON{
		StatusCounts:      d.StatusCounts,
		TotalShipments:    d.Total,
		RecentShipments:   shipmentList(d.Recent),
		UpcomingShipments: shipmentList(d.Upcoming),
	}
}

type invoiceJSON struct {
	ID              int64   `json:"id"`
	ShipmentID      string  `json:"shipment_id"`
	InvoiceNumber   string  `json:"invoice_number"`
	Status          string  `json:"status"`
	Amount          string  `json:"amount"`
	DriverAssistFee string  `json:"driver_assist_fee"`
	TotalAmount     string  `json:"total_amount"`
	CreatedAt       string  `json:"created_at"`
	PaidAt          *string `json:"paid_at"`
}

func newInvoiceJSON(i *domain.Invoice) invoiceJSON {
	return invoiceJSON{
		ID:              i.ID,
		ShipmentID:      i.ShipmentID,
		InvoiceNumber:   i.InvoiceNumber,
		Status:          i.Status,
		Amount:          money(i.Amount),
		DriverAssistFee: money(i.DriverAssistFee),
		TotalAmount:     money(i.TotalAmount),
		CreatedAt:       timestamp(i.CreatedAt),
		PaidAt:          nullTimestamp(i.PaidAt),
	}
}

func invoices(list []*domain.Invoice) []invoiceJSON {
	out := make([]invoiceJSON, 0, len(list))
	for _, i := range list {
		out = append(out, newInvoiceJSON(i))
	}
	return out
}

type paymentJSON struct {
	ID            int64  `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	ShipmentID    string `json:"shipment_id"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func newPaymentJSON(p *domain.Payment) paymentJSON {
	return paymentJSON{
		ID:            p.ID,
		InvoiceNumber: p.InvoiceNumber,
		ShipmentID:    p.ShipmentID,
		Amount:        money(p.Amount),
		Status:        p.Status,
		FailureReason: p.FailureReason,
		CreatedAt:     timestamp(p.CreatedAt),
		UpdatedAt:     timestamp(p.UpdatedAt),
	}
}

func payments(list []*domain.Payment) []paymentJSON {
	out := make([]paymentJSON, 0, len(list))
	for _, p := range list {
		out = append(out, newPaymentJSON(p))
	}
	return out
}

// nextAction passes the gateway's next_action through, null when absent.
func nextAction(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
