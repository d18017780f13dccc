package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/services"
)

// flexString accepts a JSON string or number; GeoDB ids arrive as either.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("id must be a string or a number")
	}
	*f = flexString(n.String())
	return nil
}

// flexID is a primary key sent as a number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	n, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		return fmt.Errorf("incorrect type, expected pk value, received %s", b)
	}
	*f = flexID(n)
	return nil
}

func (f *flexID) ptr() *int64 {
	if f == nil {
		return nil
	}
	n := int64(*f)
	return &n
}

type cityRequest struct {
	ID             flexString `json:"id"`
	Name           string     `json:"name"`
	RegionCode     string     `json:"region_code"`
	RegionCodeAlt  string     `json:"regionCode"`
	CountryCode    string     `json:"country_code"`
	CountryCodeAlt string     `json:"countryCode"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
}

func (r *cityRequest) input() *services.CityInput {
	if r == nil {
		return nil
	}
	in := &services.CityInput{
		ID:          string(r.ID),
		Name:        r.Name,
		RegionCode:  r.RegionCode,
		CountryCode: r.CountryCode,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
	}
	if in.RegionCode == "" {
		in.RegionCode = r.RegionCodeAlt
	}
	if in.CountryCode == "" {
		in.CountryCode = r.CountryCodeAlt
	}
	return in
}

func (h *handlers) shippingNeeds(c *fiber.Ctx) error {
	var req struct {
		Mode            []string `json:"mode"`
		TrailerType     []string `json:"trailer_type"`
		AverageFTL      string   `json:"average_ftl"`
		CompanyLocation *string  `json:"company_location"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	err := h.svc.Shipper.SaveShippingNeeds(c.Context(), user(c), services.ShippingNeedsInput{
		Mode:            req.Mode,
		TrailerType:     req.TrailerType,
		AverageFTL:      req.AverageFTL,
		CompanyLocation: req.CompanyLocation,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":                  "Shipping needs saved successfully",
		"redirect_to_verification": true,
	})
}

// geoError reports upstream catalogue failures as 500 with the cause.
func geoError(c *fiber.Ctx, err error) error {
	if _, ok := domain.AsValidation(err); ok {
		return err
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func (h *handlers) cities(c *fiber.Ctx) error {
	data, err := h.svc.Shipper.Cities(c.Context(), c.Query("name_prefix"))
	if err != nil {
		return geoError(c, err)
	}
	return c.JSON(data)
}

func (h *handlers) regions(c *fiber.Ctx) error {
	data, err := h.svc.Shipper.Regions(c.Context(), user(c), c.Query("name"))
	if err != nil {
		return geoError(c, err)
	}
	return c.JSON(data)
}

func (h *handlers) quote(c *fiber.Ctx) error {
	var req struct {
		Pickup    *cityRequest `json:"pickup_location"`
		Dropoff   *cityRequest `json:"dropoff_location"`
		Equipment string       `json:"equipment"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	q, err := h.svc.Shipper.Quote(c.Context(), services.QuoteInput{
		Pickup:    req.Pickup.input(),
		Dropoff:   req.Dropoff.input(),
		Equipment: req.Equipment,
	})
	if _, ok := domain.AsValidation(err); ok {
		return err
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Unable to calculate distance and price: " + err.Error(),
		})
	}
	return c.JSON(newQuoteJSON(q))
}

func (h *handlers) dashboard(c *fiber.Ctx) error {
	d, err := h.svc.Shipper.Dashboard(c.Context(), user(c))
	if err != nil {
		return err
	}
	return c.JSON(newDashboardJSON(d))
}

func (h *handlers) priceCalculations(c *fiber.Ctx) error {
	list, err := h.svc.Shipper.PriceCalculations(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(priceCalculations(list))
}

func (h *handlers) listShipments(c *fiber.Ctx) error {
	p, err := pageParam(c)
	if err != nil {
		return err
	}
	views, total, err := h.svc.Shipper.Shipments(c.Context(), user(c), c.Query("status"), p.limit(), p.offset())
	if err != nil {
		return err
	}
	return p.respond(c, total, shipmentList(views))
}

type stopRequest struct {
	City *flexID `json:"city"`
	Date string  `json:"date"`
}

func (r *stopRequest) input() *services.StopInput {
	if r == nil {
		return nil
	}
	return &services.StopInput{CityID: r.City.ptr(), Date: r.Date}
}

func (h *handlers) createShipment(c *fiber.Ctx) error {
	var req struct {
		Equipment string       `json:"equipment"`
		Pickup    *stopRequest `json:"pickup"`
		Dropoff   *stopRequest `json:"dropoff"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Shipper.CreateShipment(c.Context(), user(c), services.CreateShipmentInput{
		Equipment: req.Equipment,
		Pickup:    req.Pickup.input(),
		Dropoff:   req.Dropoff.input(),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newShipmentDetailJSON(v))
}

func (h *handlers) getShipment(c *fiber.Ctx) error {
	v, err := h.svc.Shipper.Shipment(c.Context(), user(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(newShipmentDetailJSON(v))
}

type shipmentPatchRequest struct {
	Status          *string `json:"status"`
	Equipment       *string `json:"equipment"`
	PickupDate      *string `json:"pickup_date"`
	DropoffDate     *string `json:"dropoff_date"`
	DriverAssist    *bool   `json:"driver_assist"`
	ReferenceNumber *string `json:"reference_number"`
	Weight          *int64  `json:"weight"`
	Commodity       *string `json:"commodity"`
	Packaging       *int64  `json:"packaging"`
	PackagingType   *string `json:"packaging_type"`
}

func (r shipmentPatchRequest) patch() services.ShipmentPatch {
	return services.ShipmentPatch{
		Status:          r.Status,
		Equipment:       r.Equipment,
		PickupDate:      r.PickupDate,
		DropoffDate:     r.DropoffDate,
		DriverAssist:    r.DriverAssist,
		ReferenceNumber: r.ReferenceNumber,
		Weight:          r.Weight,
		Commodity:       r.Commodity,
		Packaging:       r.Packaging,
		PackagingType:   r.PackagingType,
	}
}

// updateShipment serves PUT and PATCH; both are partial.
func (h *handlers) updateShipment(c *fiber.Ctx) error {
	var req shipmentPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Shipper.UpdateShipment(c.Context(), user(c), c.Params("id"), req.patch())
	if err != nil {
		return err
	}
	return c.JSON(newShipmentDetailJSON(v))
}

func (h *handlers) saveDraft(c *fiber.Ctx) error {
	var req shipmentPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.Shipper.SaveDraft(c.Context(), user(c), c.Params("id"), req.patch()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Draft saved successfully"})
}

func (h *handlers) deleteShipment(c *fiber.Ctx) error {
	if err := h.svc.Shipper.DeleteShipment(c.Context(), user(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type locationRequest struct {
	FacilityName         *string `json:"facility_name"`
	FacilityAddress      *string `json:"facility_address"`
	City                 *flexID `json:"city"`
	State                *string `json:"state"`
	ZipCode              *string `json:"zip_code"`
	ContactName          *string `json:"contact_name"`
	PhoneNumber          *string `json:"phone_number"`
	Email                *string `json:"email"`
	SchedulingPreference *string `json:"scheduling_preference"`
	LocationNumber       *string `json:"location_number"`
	AdditionalNotes      *string `json:"additional_notes"`
}

func (r *locationRequest) input() *services.LocationInput {
	if r == nil {
		return nil
	}
	return &services.LocationInput{
		FacilityName:         r.FacilityName,
		FacilityAddress:      r.FacilityAddress,
		CityID:               r.City.ptr(),
		State:                r.State,
		ZipCode:              r.ZipCode,
		ContactName:          r.ContactName,
		PhoneNumber:          r.PhoneNumber,
		Email:                r.Email,
		SchedulingPreference: r.SchedulingPreference,
		LocationNumber:       r.LocationNumber,
		AdditionalNotes:      r.AdditionalNotes,
	}
}

func (h *handlers) appointment(c *fiber.Ctx) error {
	var req struct {
		DriverAssist *bool            `json:"driver_assist"`
		Pickup       *locationRequest `json:"pickup"`
		Dropoff      *locationRequest `json:"dropoff"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Shipper.UpdateAppointment(c.Context(), user(c), c.Params("id"), services.AppointmentInput{
		DriverAssist: req.DriverAssist,
		Pickup:       req.Pickup.input(),
		Dropoff:      req.Dropoff.input(),
	})
	if err != nil {
		return err
	}
	return c.JSON(newShipmentDetailJSON(v))
}

func (h *handlers) finalize(c *fiber.Ctx) error {
	var req struct {
		ReferenceNumber *string `json:"reference_number"`
		Weight          *int64  `json:"weight"`
		Commodity       *string `json:"commodity"`
		Packaging       *int64  `json:"packaging"`
		PackagingType   *string `json:"packaging_type"`
		PickupNumber    string  `json:"pickup_number"`
		PickupNotes     string  `json:"pickup_notes"`
		DropoffNumber   string  `json:"dropoff_number"`
		DropoffNotes    string  `json:"dropoff_notes"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Shipper.Finalize(c.Context(), user(c), c.Params("id"), services.FinalizeInput{
		ReferenceNumber: req.ReferenceNumber,
		Weight:          req.Weight,
		Commodity:       req.Commodity,
		Packaging:       req.Packaging,
		PackagingType:   req.PackagingType,
		PickupNumber:    req.PickupNumber,
		PickupNotes:     req.PickupNotes,
		DropoffNumber:   req.DropoffNumber,
		DropoffNotes:    req.DropoffNotes,
	})
	if err != nil {
		return err
	}
	return c.JSON(newShipmentDetailJSON(v))
}

func (h *handlers) changeStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Shipper.ChangeStatus(c.Context(), user(c), c.Params("id"), req.Status, req.Reason)
	if errors.Is(err, services.ErrInvalidStatus) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status"})
	}
	if err != nil {
		return err
	}
	return c.JSON(newShipmentDetailJSON(v))
}

func (h *handlers) statusHistory(c *fiber.Ctx) error {
	p, err := pageParam(c)
	if err != nil {
		return err
	}
	u := user(c)
	list, total, err := h.svc.Shipper.StatusHistory(c.Context(), u, c.Params("id"), p.limit(), p.offset())
	if err != nil {
		return err
	}
	return p.respond(c, total, statusHistory(list, u))
}

func (h *handlers) locations(c *fiber.Ctx) error {
	p, err := pageParam(c)
	if err != nil {
		return err
	}
	v, locs, err := h.svc.Shipper.Locations(c.Context(), user(c), c.Params("id"))
	if err != nil {
		return err
	}
	out := make([]*locationJSON, 0, len(locs))
	for _, l := range window(p, locs) {
		out = append(out, newLocationJSON(l, v.Shipment))
	}
	return p.respond(c, len(locs), out)
}
