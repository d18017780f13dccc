package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
	"github.com/shiporbit/shiporbit/internal/core/pricing"
)

var (
	locationPhonePattern = regexp.MustCompile(`^\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}$`)
	zipPattern           = regexp.MustCompile(`^\d{5}(?:[-\s]\d{4})?$`)
)

// ErrInvalidStatus is returned for a status outside domain.ShipmentStatuses.
var ErrInvalidStatus = errors.New("invalid status")

const (
	dashboardRecent    = 5
	upcomingWindowDays = 30
	recentQuotes       = 20
)

// CityInput is a city as the GeoDB search returned it to the client.
type CityInput struct {
	ID          string
	Name        string
	RegionCode  string
	CountryCode string
	Latitude    *float64
	Longitude   *float64
}

// QuoteInput asks for the price of a route.
type QuoteInput struct {
	Pickup    *CityInput
	Dropoff   *CityInput
	Equipment string
}

// ShippingNeedsInput is the second registration step.
type ShippingNeedsInput struct {
	Mode            []string
	TrailerType     []string
	AverageFTL      string
	CompanyLocation *string
}

// StopInput references the city and date of one end of a new shipment.
type StopInput struct {
	CityID *int64
	Date   string
}

// CreateShipmentInput books a quoted route.
type CreateShipmentInput struct {
	Equipment string
	Pickup    *StopInput
	Dropoff   *StopInput
}

// ShipmentPatch holds the shipment fields a partial update may set.
type ShipmentPatch struct {
	Status          *string
	Equipment       *string
	PickupDate      *string
	DropoffDate     *string
	DriverAssist    *bool
	ReferenceNumber *string
	Weight          *int64
	Commodity       *string
	Packaging       *int64
	PackagingType   *string
}

// LocationInput holds facility details; nil fields keep their stored value.
type LocationInput struct {
	FacilityName         *string
	FacilityAddress      *string
	CityID               *int64
	State                *string
	ZipCode              *string
	ContactName          *string
	PhoneNumber          *string
	Email                *string
	SchedulingPreference *string
	LocationNumber       *string
	AdditionalNotes      *string
}

// AppointmentInput is the facility step of the booking flow.
type AppointmentInput struct {
	DriverAssist *bool
	Pickup       *LocationInput
	Dropoff      *LocationInput
}

// FinalizeInput is the last step of the booking flow.
type FinalizeInput struct {
	ReferenceNumber *string
	Weight          *int64
	Commodity       *string
	Packaging       *int64
	PackagingType   *string
	PickupNumber    string
	PickupNotes     string
	DropoffNumber   string
	DropoffNotes    string
}

// ShipperService quotes routes and manages shipments.
type ShipperService struct {
	users     ports.UserRepository
	shipments ports.ShipmentRepository
	geo       ports.GeoService
	now       func() time.Time
}

func NewShipperService(users ports.UserRepository, shipments ports.ShipmentRepository, geo ports.GeoService) *ShipperService {
	return &ShipperService{users: users, shipments: shipments, geo: geo, now: time.Now}
}

// SaveShippingNeeds stores the user's needs and the company location.
func (s *ShipperService) SaveShippingNeeds(ctx context.Context, u *domain.User, in ShippingNeedsInput) error {
	v := &domain.ValidationError{}
	if in.Mode == nil {
		v.Add("mode", msgRequired)
	}
	if in.TrailerType == nil {
		v.Add("trailer_type", msgRequired)
	}
	if in.AverageFTL == "" {
		in.AverageFTL = domain.AverageFTLChoices[0]
	} else if !domain.Contains(domain.AverageFTLChoices, in.AverageFTL) {
		v.Add("average_ftl", notAChoice(in.AverageFTL))
	}
	if in.CompanyLocation == nil {
		v.Add("company_location", msgRequired)
	} else {
		maxLen(v, "company_location", *in.CompanyLocation, 50)
	}
	if err := v.OrNil(); err != nil {
		return err
	}

	company, err := s.users.CompanyByUser(ctx, u.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewValidationError(domain.NonFieldErrors, "User has no company.")
	}
	if err != nil {
		return err
	}
	if _, err := s.users.ShippingNeedsByUser(ctx, u.ID); err == nil {
		return domain.NewValidationError(domain.NonFieldErrors, "Shipping needs already exist for this user.")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	now := s.now()
	company.Location = *in.CompanyLocation
	company.UpdatedAt = now
	if err := s.users.UpdateCompany(ctx, company); err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}

	needs := &domain.ShippingNeeds{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		Mode:        in.Mode,
		AverageFTL:  in.AverageFTL,
		TrailerType: in.TrailerType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.CreateShippingNeeds(ctx, needs); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.NewValidationError(domain.NonFieldErrors, "Shipping needs already exist for this user.")
		}
		return err
	}
	return nil
}

// Cities searches the catalogue by name prefix.
func (s *ShipperService) Cities(ctx context.Context, prefix string) ([]json.RawMessage, error) {
	return s.geo.Cities(ctx, prefix)
}

// Regions lists the regions of the country the user's company ships from.
func (s *ShipperService) Regions(ctx context.Context, u *domain.User, prefix string) ([]json.RawMessage, error) {
	company, err := s.users.CompanyByUser(ctx, u.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewValidationError(domain.NonFieldErrors, "User has no company.")
	}
	if err != nil {
		return nil, err
	}
	return s.geo.Regions(ctx, company.PrimaryShipsCountry, prefix)
}

func validateCity(v *domain.ValidationError, field string, c *CityInput) int64 {
	if c == nil {
		v.Add(field, msgRequired)
		return 0
	}
	sub := &domain.ValidationError{}
	id, err := strconv.ParseInt(c.ID, 10, 64)
	if c.ID == "" {
		sub.Add("id", msgRequired)
	} else if err != nil {
		sub.Add("id", "A valid integer is required.")
	}
	if c.Name == "" {
		sub.Add("name", msgRequired)
	}
	if c.Latitude == nil {
		sub.Add("latitude", msgRequired)
	}
	if c.Longitude == nil {
		sub.Add("longitude", msgRequired)
	}
	v.Merge(field, sub)
	return id
}

// Quote prices a route, reusing the cached calculation of the same route and equipment.
func (s *ShipperService) Quote(ctx context.Context, in QuoteInput) (*domain.Quote, error) {
	v := &domain.ValidationError{}
	pickupID := validateCity(v, "pickup_location", in.Pickup)
	dropoffID := validateCity(v, "dropoff_location", in.Dropoff)
	if in.Equipment == "" {
		in.Equipment = domain.EquipmentDryVan
	} else if !domain.Contains(domain.EquipmentChoices, in.Equipment) {
		v.Add("equipment", notAChoice(in.Equipment))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	pickup, err := s.shipments.GetOrCreateCity(ctx, cityFromInput(pickupID, in.Pickup))
	if err != nil {
		return nil, fmt.Errorf("failed to store pickup city: %w", err)
	}
	dropoff, err := s.shipments.GetOrCreateCity(ctx, cityFromInput(dropoffID, in.Dropoff))
	if err != nil {
		return nil, fmt.Errorf("failed to store dropoff city: %w", err)
	}

	q := &domain.Quote{
		Pickup:          pickup,
		Dropoff:         dropoff,
		Equipment:       in.Equipment,
		DriverAssistFee: domain.DriverAssistFee,
	}

	cached, err := s.shipments.PriceCalculationFor(ctx, pickup.ID, dropoff.ID, in.Equipment)
	switch {
	case err == nil:
		q.Miles = cached.Miles
		q.BasePrice = cached.BasePrice
		q.MinTransitTime = cached.MinTransitTime
	case errors.Is(err, domain.ErrNotFound):
		miles := pricing.Distance(
			pricing.Point{Latitude: *in.Pickup.Latitude, Longitude: *in.Pickup.Longitude},
			pricing.Point{Latitude: *in.Dropoff.Latitude, Longitude: *in.Dropoff.Longitude},
		)
		q.Miles = int64(miles)
		q.BasePrice = pricing.BasePrice(miles, in.Equipment)
		q.MinTransitTime = pricing.TransitDays(miles)

		calc := &domain.PriceCalculation{
			PickupCityID:   pickup.ID,
			DropoffCityID:  dropoff.ID,
			Equipment:      in.Equipment,
			Miles:          q.Miles,
			BasePrice:      q.BasePrice,
			MinTransitTime: q.MinTransitTime,
			RatePerMile:    pricing.RatePerMile,
			BaseFee:        pricing.BaseFee,
			CreatedAt:      s.now(),
		}
		// A concurrent quote of the same route may have won; its numbers are identical.
		if err := s.shipments.CreatePriceCalculation(ctx, calc); err != nil && !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("failed to cache price calculation: %w", err)
		}
	default:
		return nil, err
	}

	q.TotalPriceWithAssist = q.BasePrice.Add(domain.DriverAssistFee)
	return q, nil
}

func cityFromInput(id int64, c *CityInput) *domain.City {
	return &domain.City{
		ID:          id,
		Name:        c.Name,
		RegionCode:  c.RegionCode,
		CountryCode: c.CountryCode,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
	}
}

// PriceCalculations returns the most recent cached quotes.
func (s *ShipperService) PriceCalculations(ctx context.Context) ([]*domain.PriceCalculation, error) {
	return s.shipments.RecentPriceCalculations(ctx, recentQuotes)
}

func (s *ShipperService) resolveStop(ctx context.Context, v *domain.ValidationError, field string, in *StopInput) (*domain.City, time.Time) {
	if in == nil {
		v.Add(field, msgRequired)
		return nil, time.Time{}
	}
	sub := &domain.ValidationError{}
	var city *domain.City
	if in.CityID == nil {
		sub.Add("city", msgRequired)
	} else {
		c, err := s.shipments.CityByID(ctx, *in.CityID)
		if err != nil {
			sub.Add("city", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.CityID))
		}
		city = c
	}
	var date time.Time
	if in.Date == "" {
		sub.Add("date", msgRequired)
	} else {
		date, _ = parseDate(sub, "date", in.Date)
	}
	v.Merge(field, sub)
	return city, date
}

// CreateShipment books a shipment for a route that has been quoted before.
func (s *ShipperService) CreateShipment(ctx context.Context, u *domain.User, in CreateShipmentInput) (*domain.ShipmentView, error) {
	v := &domain.ValidationError{}
	if in.Equipment == "" {
		in.Equipment = domain.EquipmentDryVan
	} else if !domain.Contains(domain.EquipmentChoices, in.Equipment) {
		v.Add("equipment", notAChoice(in.Equipment))
	}
	pickupCity, pickupDate := s.resolveStop(ctx, v, "pickup", in.Pickup)
	dropoffCity, dropoffDate := s.resolveStop(ctx, v, "dropoff", in.Dropoff)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	calc, err := s.shipments.PriceCalculationFor(ctx, pickupCity.ID, dropoffCity.ID, in.Equipment)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewValidationError(domain.NonFieldErrors,
			"Price calculation for this route and equipment does not exist.")
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	miles, transit := calc.Miles, calc.MinTransitTime
	sh := &domain.Shipment{
		ID:              uuid.NewString(),
		UserID:          u.ID,
		Status:          domain.StatusUnfinished,
		Equipment:       in.Equipment,
		PickupDate:      pickupDate,
		DropoffDate:     dropoffDate,
		BasePrice:       decimal.NewNullDecimal(calc.BasePrice),
		DriverAssistFee: domain.DriverAssistFee,
		Miles:           &miles,
		MinTransitTime:  &transit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	pickup := &domain.Location{Type: domain.LocationPickup, City: pickupCity, CreatedAt: now}
	dropoff := &domain.Location{Type: domain.LocationDropoff, City: dropoffCity, CreatedAt: now}
	if err := s.shipments.CreateShipment(ctx, sh, []*domain.Location{pickup, dropoff}); err != nil {
		return nil, fmt.Errorf("failed to create shipment: %w", err)
	}
	return &domain.ShipmentView{Shipment: sh, Pickup: pickup, Dropoff: dropoff}, nil
}

// Shipments lists the user's shipments newest first, optionally of one status.
func (s *ShipperService) Shipments(ctx context.Context, u *domain.User, status string, limit, offset int) ([]*domain.ShipmentView, int, error) {
	f := ports.ShipmentFilter{UserID: u.ID}
	if status != "" {
		f.Statuses = []string{status}
	}
	total, err := s.shipments.CountShipments(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	f.Limit, f.Offset = limit, offset
	list, err := s.shipments.ListShipments(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, list)
	return views, total, err
}

// Shipment returns one of the user's shipments.
func (s *ShipperService) Shipment(ctx context.Context, u *domain.User, id string) (*domain.ShipmentView, error) {
	sh, err := s.owned(ctx, u, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, sh)
}

// UpdateShipment applies a partial update and returns the updated shipment.
func (s *ShipperService) UpdateShipment(ctx context.Context, u *domain.User, id string, patch ShipmentPatch) (*domain.ShipmentView, error) {
	sh, err := s.owned(ctx, u, id)
	if err != nil {
		return nil, err
	}
	if err := applyPatch(sh, patch); err != nil {
		return nil, err
	}
	sh.UpdatedAt = s.now()
	if err := s.shipments.UpdateShipment(ctx, sh); err != nil {
		return nil, err
	}
	return s.view(ctx, sh)
}

func applyPatch(sh *domain.Shipment, p ShipmentPatch) error {
	v := &domain.ValidationError{}
	if p.Status != nil {
		if domain.Contains(domain.ShipmentStatuses, *p.Status) {
			sh.Status = *p.Status
		} else {
			v.Add("status", notAChoice(*p.Status))
		}
	}
	if p.Equipment != nil {
		if domain.Contains(domain.EquipmentChoices, *p.Equipment) {
			sh.Equipment = *p.Equipment
		} else {
			v.Add("equipment", notAChoice(*p.Equipment))
		}
	}
	if p.PickupDate != nil {
		if d, ok := parseDate(v, "pickup_date", *p.PickupDate); ok {
			sh.PickupDate = d
		}
	}
	if p.DropoffDate != nil {
		if d, ok := parseDate(v, "dropoff_date", *p.DropoffDate); ok {
			sh.DropoffDate = d
		}
	}
	if p.DriverAssist != nil {
		sh.DriverAssist = *p.DriverAssist
	}
	if p.ReferenceNumber != nil {
		maxLen(v, "reference_number", *p.ReferenceNumber, 500)
		sh.ReferenceNumber = *p.ReferenceNumber
	}
	if p.Commodity != nil {
		maxLen(v, "commodity", *p.Commodity, 500)
		sh.Commodity = *p.Commodity
	}
	if p.PackagingType != nil {
		maxLen(v, "packaging_type", *p.PackagingType, 500)
		sh.PackagingType = *p.PackagingType
	}
	if p.Weight != nil {
		if *p.Weight < 0 {
			v.Add("weight", "Ensure this value is greater than or equal to 0.")
		}
		sh.Weight = p.Weight
	}
	if p.Packaging != nil {
		if *p.Packaging < 0 {
			v.Add("packaging", "Ensure this value is greater than or equal to 0.")
		}
		sh.Packaging = p.Packaging
	}
	if (p.PickupDate != nil || p.DropoffDate != nil) && !v.HasErrors() && !sh.DropoffDate.After(sh.PickupDate) {
		v.Add(domain.NonFieldErrors, "Dropoff date must be after pickup date")
	}
	return v.OrNil()
}

// SaveDraft stores whatever the client has filled in so far.
func (s *ShipperService) SaveDraft(ctx context.Context, u *domain.User, id string, patch ShipmentPatch) error {
	_, err := s.UpdateShipment(ctx, u, id, patch)
	return err
}

// DeleteShipment removes one of the user's shipments.
func (s *ShipperService) DeleteShipment(ctx context.Context, u *domain.User, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	return s.shipments.DeleteShipment(ctx, u.ID, id)
}

func validateLocation(ctx context.Context, repo ports.ShipmentRepository, in *LocationInput) (*domain.City, *domain.ValidationError) {
	v := &domain.ValidationError{}
	var city *domain.City
	if in.CityID != nil {
		c, err := repo.CityByID(ctx, *in.CityID)
		if err != nil {
			v.Add("city", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.CityID))
		}
		city = c
	}
	if in.PhoneNumber != nil && *in.PhoneNumber != "" && !locationPhonePattern.MatchString(*in.PhoneNumber) {
		v.Add("phone_number", "Invalid phone number format")
	}
	if in.ZipCode != nil && *in.ZipCode != "" && !zipPattern.MatchString(*in.ZipCode) {
		v.Add("zip_code", "Invalid ZIP code format")
	}
	if in.Email != nil && *in.Email != "" && !validEmail(*in.Email) {
		v.Add("email", msgInvalidEmail)
	}
	if in.SchedulingPreference != nil && !domain.Contains(domain.SchedulingChoices, *in.SchedulingPreference) {
		v.Add("scheduling_preference", notAChoice(*in.SchedulingPreference))
	}
	return city, v
}

func applyLocation(l *domain.Location, in *LocationInput, city *domain.City) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&l.FacilityName, in.FacilityName)
	set(&l.FacilityAddress, in.FacilityAddress)
	set(&l.State, in.State)
	set(&l.ZipCode, in.ZipCode)
	set(&l.ContactName, in.ContactName)
	set(&l.PhoneNumber, in.PhoneNumber)
	set(&l.Email, in.Email)
	set(&l.SchedulingPreference, in.SchedulingPreference)
	set(&l.LocationNumber, in.LocationNumber)
	set(&l.AdditionalNotes, in.AdditionalNotes)
	if city != nil {
		l.City = city
	}
}

// UpdateAppointment stores facility details of both ends and the driver assist choice.
func (s *ShipperService) UpdateAppointment(ctx context.Context, u *domain.User, id string, in AppointmentInput) (*domain.ShipmentView, error) {
	sh, err := s.owned(ctx, u, id)
	if err != nil {
		return nil, err
	}
	view, err := s.view(ctx, sh)
	if err != nil {
		return nil, err
	}

	v := &domain.ValidationError{}
	type pending struct {
		input    *LocationInput
		city     *domain.City
		existing *domain.Location
		kind     string
	}
	var updates []pending
	for _, p := range []pending{
		{input: in.Pickup, existing: view.Pickup, kind: domain.LocationPickup},
		{input: in.Dropoff, existing: view.Dropoff, kind: domain.LocationDropoff},
	} {
		if p.input == nil {
			continue
		}
		city, lv := validateLocation(ctx, s.shipments, p.input)
		v.Merge(p.kind, lv)
		p.city = city
		updates = append(updates, p)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	if in.DriverAssist != nil {
		sh.DriverAssist = *in.DriverAssist
	}
	sh.UpdatedAt = now
	if err := s.shipments.UpdateShipment(ctx, sh); err != nil {
		return nil, err
	}

	for _, p := range updates {
		l := p.existing
		if l == nil {
			l = &domain.Location{ShipmentID: sh.ID, Type: p.kind, CreatedAt: now}
		}
		applyLocation(l, p.input, p.city)
		if err := s.shipments.UpsertLocation(ctx, l); err != nil {
			return nil, fmt.Errorf("failed to store %s location: %w", p.kind, err)
		}
	}
	return s.view(ctx, sh)
}

// Finalize stores the load details. A shipment with every detail set becomes upcoming.
func (s *ShipperService) Finalize(ctx context.Context, u *domain.User, id string, in FinalizeInput) (*domain.ShipmentView, error) {
	sh, err := s.owned(ctx, u, id)
	if err != nil {
		return nil, err
	}

	v := &domain.ValidationError{}
	if in.Weight != nil && *in.Weight < 1 {
		v.Add("weight", "Weight must be at least 1")
	}
	if in.Packaging != nil && *in.Packaging < 1 {
		v.Add("packaging", "Packaging count must be at least 1")
	}
	maxLen(v, "pickup_number", in.PickupNumber, 500)
	maxLen(v, "dropoff_number", in.DropoffNumber, 500)
	maxLen(v, "pickup_notes", in.PickupNotes, 500)
	maxLen(v, "dropoff_notes", in.DropoffNotes, 500)
	if err := applyPatch(sh, ShipmentPatch{
		ReferenceNumber: in.ReferenceNumber,
		Weight:          in.Weight,
		Commodity:       in.Commodity,
		Packaging:       in.Packaging,
		PackagingType:   in.PackagingType,
	}); err != nil {
		pv, _ := domain.AsValidation(err)
		v.Merge("", pv)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	oldStatus := sh.Status
	if sh.Complete() {
		sh.Status = domain.StatusUpcoming
	}
	sh.UpdatedAt = now
	if err := s.shipments.UpdateShipment(ctx, sh); err != nil {
		return nil, err
	}
	if sh.Status != oldStatus {
		change := &domain.StatusChange{
			OldStatus:    oldStatus,
			NewStatus:    sh.Status,
			ChangedBy:    u.ID,
			ChangeReason: "Shipment details completed",
			CreatedAt:    now,
		}
		if err := s.shipments.ChangeStatus(ctx, sh, change); err != nil {
			return nil, err
		}
	}

	if in.PickupNumber != "" || in.PickupNotes != "" {
		if err := s.shipments.UpdateLocationDetails(ctx, sh.ID, domain.LocationPickup, in.PickupNumber, in.PickupNotes); err != nil {
			return nil, err
		}
	}
	if in.DropoffNumber != "" || in.DropoffNotes != "" {
		if err := s.shipments.UpdateLocationDetails(ctx, sh.ID, domain.LocationDropoff, in.DropoffNumber, in.DropoffNotes); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, sh)
}

// ChangeStatus moves a shipment to status, recording the change when it differs.
func (s *ShipperService) ChangeStatus(ctx context.Context, u *domain.User, id, status, reason string) (*domain.ShipmentView, error) {
	sh, err := s.owned(ctx, u, id)
	if err != nil {
		return nil, err
	}
	if !domain.Contains(domain.ShipmentStatuses, status) {
		return nil, ErrInvalidStatus
	}
	if sh.Status != status {
		now := s.now()
		change := &domain.StatusChange{
			OldStatus:    sh.Status,
			NewStatus:    status,
			ChangedBy:    u.ID,
			ChangeReason: reason,
			CreatedAt:    now,
		}
		sh.Status = status
		sh.UpdatedAt = now
		if err := s.shipments.ChangeStatus(ctx, sh, change); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, sh)
}

// StatusHistory pages through a shipment's status changes, newest first.
func (s *ShipperService) StatusHistory(ctx context.Context, u *domain.User, id string, limit, offset int) ([]*domain.StatusChange, int, error) {
	sh, err := s.owned(ctx, u, id)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.shipments.CountStatusHistory(ctx, sh.ID)
	if err != nil {
		return nil, 0, err
	}
	history, err := s.shipments.StatusHistory(ctx, sh.ID, limit, offset)
	return history, total, err
}

// Locations returns both ends of one of the user's shipments along with the shipment.
func (s *ShipperService) Locations(ctx context.Context, u *domain.User, id string) (*domain.ShipmentView, []*domain.Location, error) {
	sh, err := s.owned(ctx, u, id)
	if err != nil {
		return nil, nil, err
	}
	locs, err := s.shipments.Locations(ctx, sh.ID)
	if err != nil {
		return nil, nil, err
	}
	return &domain.ShipmentView{Shipment: sh}, locs, nil
}

// Dashboard summarises the user's shipments.
func (s *ShipperService) Dashboard(ctx context.Context, u *domain.User) (*domain.Dashboard, error) {
	d := &domain.Dashboard{StatusCounts: make(map[string]int, len(domain.ShipmentStatuses))}
	for _, st := range domain.ShipmentStatuses {
		n, err := s.shipments.CountShipments(ctx, ports.ShipmentFilter{UserID: u.ID, Statuses: []string{st}})
		if err != nil {
			return nil, err
		}
		d.StatusCounts[st] = n
	}

	total, err := s.shipments.CountShipments(ctx, ports.ShipmentFilter{UserID: u.ID})
	if err != nil {
		return nil, err
	}
	d.Total = total

	recent, err := s.shipments.ListShipments(ctx, ports.ShipmentFilter{UserID: u.ID, Limit: dashboardRecent})
	if err != nil {
		return nil, err
	}
	if d.Recent, err = s.views(ctx, recent); err != nil {
		return nil, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	horizon := today.AddDate(0, 0, upcomingWindowDays)
	upcoming, err := s.shipments.ListShipments(ctx, ports.ShipmentFilter{
		UserID:        u.ID,
		Statuses:      []string{domain.StatusUpcoming, domain.StatusInProgress},
		PickupBefore:  &horizon,
		OrderByPickup: true,
		Limit:         dashboardRecent,
	})
	if err != nil {
		return nil, err
	}
	if d.Upcoming, err = s.views(ctx, upcoming); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *ShipperService) owned(ctx context.Context, u *domain.User, id string) (*domain.Shipment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.shipments.ShipmentByID(ctx, u.ID, id)
}

func (s *ShipperService) view(ctx context.Context, sh *domain.Shipment) (*domain.ShipmentView, error) {
	locs, err := s.shipments.Locations(ctx, sh.ID)
	if err != nil {
		return nil, err
	}
	v := &domain.ShipmentView{Shipment: sh}
	for _, l := range locs {
		switch l.Type {
		case domain.LocationPickup:
			v.Pickup = l
		case domain.LocationDropoff:
			v.Dropoff = l
		}
	}
	return v, nil
}

func (s *ShipperService) views(ctx context.Context, list []*domain.Shipment) ([]*domain.ShipmentView, error) {
	out := make([]*domain.ShipmentView, 0, len(list))
	for _, sh := range list {
		v, err := s.view(ctx, sh)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseDate(v *domain.ValidationError, field, raw string) (time.Time, bool) {
	d, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		v.Add(field, "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
		return time.Time{}, false
	}
	return d, true
}

func notAChoice(v string) string {
	return fmt.Sprintf("\"%s\" is not a valid choice.", v)
}
