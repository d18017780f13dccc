package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Shipment statuses.
const (
	StatusUnfinished = "unfinished"
	StatusInProgress = "inprogress"
	StatusUpcoming   = "upcoming"
	StatusPast       = "past"
)

// ShipmentStatuses lists every valid shipment status.
var ShipmentStatuses = []string{StatusUnfinished, StatusInProgress, StatusUpcoming, StatusPast}

// Equipment types.
const (
	EquipmentDryVan = "dryVan"
	EquipmentReefer = "reefer"
)

var EquipmentChoices = []string{EquipmentDryVan, EquipmentReefer}

// Location types.
const (
	LocationPickup  = "pickup"
	LocationDropoff = "dropoff"
)

var SchedulingChoices = []string{"first_come", "already_scheduled", "to_be_scheduled"}

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// DriverAssistFee is charged when the driver helps loading and unloading.
var DriverAssistFee = decimal.RequireFromString("150.00")

// City mirrors an entry of the GeoDB catalogue; its ID is the GeoDB id.
type City struct {
	ID          int64
	Name        string
	RegionCode  string
	CountryCode string
	Latitude    *float64
	Longitude   *float64
}

func (c *City) String() string {
	return fmt.Sprintf("%s (%s, %s)", c.Name, c.RegionCode, c.CountryCode)
}

// Shipment is a single truckload booked by a user.
type Shipment struct {
	ID              string
	UserID          string
	Status          string
	Equipment       string
	PickupDate      time.Time
	DropoffDate     time.Time
	BasePrice       decimal.NullDecimal
	DriverAssist    bool
	DriverAssistFee decimal.Decimal
	Miles           *int64
	MinTransitTime  *int64
	ReferenceNumber string
	Weight          *int64
	Commodity       string
	Packaging       *int64
	PackagingType   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TotalPrice is the base price plus the driver assist fee when requested.
// A shipment without a base price costs zero.
func (s *Shipment) TotalPrice() decimal.Decimal {
	if !s.BasePrice.Valid || s.BasePrice.Decimal.IsZero() {
		return decimal.Zero
	}
	if s.DriverAssist {
		return s.BasePrice.Decimal.Add(s.DriverAssistFee)
	}
	return s.BasePrice.Decimal
}

// Complete reports whether every shipping detail required for booking is set.
func (s *Shipment) Complete() bool {
	return s.ReferenceNumber != "" &&
		s.Weight != nil && *s.Weight != 0 &&
		s.Commodity != "" &&
		s.Packaging != nil && *s.Packaging != 0 &&
		s.PackagingType != ""
}

// Location holds facility details of either end of a shipment.
type Location struct {
	ID                   int64
	ShipmentID           string
	Type                 string
	FacilityName         string
	FacilityAddress      string
	City                 *City
	State                string
	ZipCode              string
	ContactName          string
	PhoneNumber          string
	Email                string
	SchedulingPreference string
	LocationNumber       string
	AdditionalNotes      string
	CreatedAt            time.Time
}

// ShipmentView is a shipment with its pickup and dropoff locations resolved.
type ShipmentView struct {
	Shipment *Shipment
	Pickup   *Location
	Dropoff  *Location
}

// PriceCalculation caches the quote of a route for one equipment type.
type PriceCalculation struct {
	ID             int64
	PickupCityID   int64
	DropoffCityID  int64
	Equipment      string
	Miles          int64
	BasePrice      decimal.Decimal
	MinTransitTime int64
	RatePerMile    decimal.Decimal
	BaseFee        decimal.Decimal
	CreatedAt      time.Time
}

// StatusChange is one entry of a shipment's status history.
type StatusChange struct {
	ID           int64
	ShipmentID   string
	OldStatus    string
	NewStatus    string
	ChangedBy    string
	ChangeReason string
	CreatedAt    time.Time
}

// Quote is the answer to a distance/price request.
type Quote struct {
	Pickup               *City
	Dropoff              *City
	Equipment            string
	Miles                int64
	BasePrice            decimal.Decimal
	MinTransitTime       int64
	DriverAssistFee      decimal.Decimal
	TotalPriceWithAssist decimal.Decimal
}

// Dashboard summarises a user's shipments.
type Dashboard struct {
	StatusCounts map[string]int
	Total        int
	Recent       []*ShipmentView
	Upcoming     []*ShipmentView
}

// Contains reports whether v is one of choices.
func Contains(choices []string, v string) bool {
	for _, c := range choices {
		if c == v {
			return true
		}
	}
	return false
}
