package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
)

func (s *Store) CityByID(ctx context.Context, id int64) (*domain.City, error) {
	var (
		c        domain.City
		lat, lon sql.NullFloat64
	)
	err := s.queryRow(ctx, s.db, `SELECT id, name, region_code, country_code, latitude, longitude
		FROM cities WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.RegionCode, &c.CountryCode, &lat, &lon)
	if err != nil {
		return nil, notFound(err)
	}
	c.Latitude = float64Ptr(lat)
	c.Longitude = float64Ptr(lon)
	return &c, nil
}

func (s *Store) GetOrCreateCity(ctx context.Context, c *domain.City) (*domain.City, error) {
	existing, err := s.CityByID(ctx, c.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	_, err = s.exec(ctx, s.db, `INSERT INTO cities (id, name, region_code, country_code, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.RegionCode, c.CountryCode, c.Latitude, c.Longitude)
	if err = conflict(err); errors.Is(err, domain.ErrConflict) {
		return s.CityByID(ctx, c.ID)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

const priceColumns = `id, pickup_city_id, dropoff_city_id, equipment, miles, base_price,
	min_transit_time, rate_per_mile, base_fee, created_at`

func scanPrice(row interface{ Scan(...any) error }) (*domain.PriceCalculation, error) {
	var (
		p               domain.PriceCalculation
		pickup, dropoff sql.NullInt64
	)
	err := row.Scan(&p.ID, &pickup, &dropoff, &p.Equipment, &p.Miles, &p.BasePrice,
		&p.MinTransitTime, &p.RatePerMile, &p.BaseFee, scanTime(&p.CreatedAt))
	if err != nil {
		return nil, notFound(err)
	}
	p.PickupCityID = pickup.Int64
	p.DropoffCityID = dropoff.Int64
	return &p, nil
}

func (s *Store) PriceCalculationFor(ctx context.Context, pickupCityID, dropoffCityID int64, equipment string) (*domain.PriceCalculation, error) {
	return scanPrice(s.queryRow(ctx, s.db, `SELECT `+priceColumns+` FROM price_calculations
		WHERE pickup_city_id = ? AND dropoff_city_id = ? AND equipment = ?`,
		pickupCityID, dropoffCityID, equipment))
}

func (s *Store) CreatePriceCalculation(ctx context.Context, p *domain.PriceCalculation) error {
	err := s.queryRow(ctx, s.db, `INSERT INTO price_calculations
		(pickup_city_id, dropoff_city_id, equipment, miles, base_price, min_transit_time,
		rate_per_mile, base_fee, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.PickupCityID, p.DropoffCityID, p.Equipment, p.Miles, p.BasePrice, p.MinTransitTime,
		p.RatePerMile, p.BaseFee, s.ts(p.CreatedAt)).Scan(&p.ID)
	return conflict(err)
}

func (s *Store) RecentPriceCalculations(ctx context.Context, limit int) ([]*domain.PriceCalculation, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+priceColumns+` FROM price_calculations
		ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PriceCalculation
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const shipmentColumns = `id, user_id, status, equipment, pickup_date, dropoff_date, base_price,
	driver_assist, driver_assist_fee, miles, min_transit_time, reference_number, weight,
	commodity, packaging, packaging_type, created_at, updated_at`

func scanShipment(row interface{ Scan(...any) error }) (*domain.Shipment, error) {
	var (
		sh                                domain.Shipment
		miles, transit, weight, packaging sql.NullInt64
	)
	err := row.Scan(&sh.ID, &sh.UserID, &sh.Status, &sh.Equipment,
		scanTime(&sh.PickupDate), scanTime(&sh.DropoffDate), &sh.BasePrice,
		&sh.DriverAssist, &sh.DriverAssistFee, &miles, &transit, &sh.ReferenceNumber, &weight,
		&sh.Commodity, &packaging, &sh.PackagingType, scanTime(&sh.CreatedAt), scanTime(&sh.UpdatedAt))
	if err != nil {
		return nil, notFound(err)
	}
	sh.Miles = int64Ptr(miles)
	sh.MinTransitTime = int64Ptr(transit)
	sh.Weight = int64Ptr(weight)
	sh.Packaging = int64Ptr(packaging)
	return &sh, nil
}

func (s *Store) shipmentArgs(sh *domain.Shipment) []any {
	return []any{sh.Status, sh.Equipment, s.date(sh.PickupDate), s.date(sh.DropoffDate),
		sh.BasePrice, sh.DriverAssist, sh.DriverAssistFee, sh.Miles, sh.MinTransitTime,
		sh.ReferenceNumber, sh.Weight, sh.Commodity, sh.Packaging, sh.PackagingType}
}

func (s *Store) CreateShipment(ctx context.Context, sh *domain.Shipment, locations []*domain.Location) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		args := append([]any{sh.ID, sh.UserID}, s.shipmentArgs(sh)...)
		args = append(args, s.ts(sh.CreatedAt), s.ts(sh.UpdatedAt))
		if _, err := s.exec(ctx, tx, `INSERT INTO shipments (`+shipmentColumns+`)
			VALUES (`+placeholders(18)+`)`, args...); err != nil {
			return err
		}
		for _, l := range locations {
			l.ShipmentID = sh.ID
			if err := s.insertLocation(ctx, tx, l); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ShipmentByID(ctx context.Context, userID, id string) (*domain.Shipment, error) {
	return scanShipment(s.queryRow(ctx, s.db, `SELECT `+shipmentColumns+` FROM shipments
		WHERE id = ? AND user_id = ?`, id, userID))
}

func (s *Store) shipmentWhere(f ports.ShipmentFilter) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{f.UserID}
	if len(f.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.PickupBefore != nil {
		conds = append(conds, "pickup_date <= ?")
		args = append(args, s.date(*f.PickupBefore))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListShipments(ctx context.Context, f ports.ShipmentFilter) ([]*domain.Shipment, error) {
	where, args := s.shipmentWhere(f)
	query := `SELECT ` + shipmentColumns + ` FROM shipments` + where
	if f.OrderByPickup {
		query += ` ORDER BY pickup_date ASC, created_at DESC`
	} else {
		query += ` ORDER BY created_at DESC, id DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *Store) CountShipments(ctx context.Context, f ports.ShipmentFilter) (int, error) {
	where, args := s.shipmentWhere(f)
	var n int
	err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM shipments`+where, args...).Scan(&n)
	return n, err
}

func (s *Store) UpdateShipment(ctx context.Context, sh *domain.Shipment) error {
	args := append(s.shipmentArgs(sh), s.ts(sh.UpdatedAt), sh.ID, sh.UserID)
	res, err := s.exec(ctx, s.db, `UPDATE shipments SET status = ?, equipment = ?, pickup_date = ?,
		dropoff_date = ?, base_price = ?, driver_assist = ?, driver_assist_fee = ?, miles = ?,
		min_transit_time = ?, reference_number = ?, weight = ?, commodity = ?, packaging = ?,
		packaging_type = ?, updated_at = ? WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) DeleteShipment(ctx context.Context, userID, id string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM shipments WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return affected(res)
}

const locationColumns = `l.id, l.shipment_id, l.location_type, l.facility_name, l.facility_address,
	l.city_id, l.state, l.zip_code, l.contact_name, l.phone_number, l.email,
	l.scheduling_preference, l.location_number, l.additional_notes, l.created_at,
	c.name, c.region_code, c.country_code, c.latitude, c.longitude`

func scanLocation(row interface{ Scan(...any) error }) (*domain.Location, error) {
	var (
		l                     domain.Location
		cityID                sql.NullInt64
		name, region, country sql.NullString
		lat, lon              sql.NullFloat64
	)
	err := row.Scan(&l.ID, &l.ShipmentID, &l.Type, &l.FacilityName, &l.FacilityAddress,
		&cityID, &l.State, &l.ZipCode, &l.ContactName, &l.PhoneNumber, &l.Email,
		&l.SchedulingPreference, &l.LocationNumber, &l.AdditionalNotes, scanTime(&l.CreatedAt),
		&name, &region, &country, &lat, &lon)
	if err != nil {
		return nil, notFound(err)
	}
	if cityID.Valid {
		l.City = &domain.City{
			ID:          cityID.Int64,
			Name:        name.String,
			RegionCode:  region.String,
			CountryCode: country.String,
			Latitude:    float64Ptr(lat),
			Longitude:   float64Ptr(lon),
		}
	}
	return &l, nil
}

func cityIDArg(l *domain.Location) any {
	if l.City == nil {
		return nil
	}
	return l.City.ID
}

func (s *Store) insertLocation(ctx context.Context, q querier, l *domain.Location) error {
	if l.SchedulingPreference == "" {
		l.SchedulingPreference = "first_come"
	}
	return s.queryRow(ctx, q, `INSERT INTO locations (shipment_id, location_type, facility_name,
		facility_address, city_id, state, zip_code, contact_name, phone_number, email,
		scheduling_preference, location_number, additional_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		l.ShipmentID, l.Type, l.FacilityName, l.FacilityAddress, cityIDArg(l), l.State, l.ZipCode,
		l.ContactName, l.PhoneNumber, l.Email, l.SchedulingPreference, l.LocationNumber,
		l.AdditionalNotes, s.ts(l.CreatedAt)).Scan(&l.ID)
}

func (s *Store) Locations(ctx context.Context, shipmentID string) ([]*domain.Location, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+locationColumns+` FROM locations l
		LEFT JOIN cities c ON c.id = l.city_id WHERE l.shipment_id = ? ORDER BY l.id`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) CountLocations(ctx context.Context, shipmentID string) (int, error) {
	var n int
	err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM locations WHERE shipment_id = ?`, shipmentID).Scan(&n)
	return n, err
}

func (s *Store) UpsertLocation(ctx context.Context, l *domain.Location) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := s.queryRow(ctx, tx, `SELECT id FROM locations WHERE shipment_id = ? AND location_type = ?`,
			l.ShipmentID, l.Type).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return s.insertLocation(ctx, tx, l)
		}
		if err != nil {
			return err
		}
		l.ID = id
		if l.SchedulingPreference == "" {
			l.SchedulingPreference = "first_come"
		}
		_, err = s.exec(ctx, tx, `UPDATE locations SET facility_name = ?, facility_address = ?,
			city_id = ?, state = ?, zip_code = ?, contact_name = ?, phone_number = ?, email = ?,
			scheduling_preference = ?, location_number = ?, additional_notes = ? WHERE id = ?`,
			l.FacilityName, l.FacilityAddress, cityIDArg(l), l.State, l.ZipCode, l.ContactName,
			l.PhoneNumber, l.Email, l.SchedulingPreference, l.LocationNumber, l.AdditionalNotes, id)
		return err
	})
}

func (s *Store) UpdateLocationDetails(ctx context.Context, shipmentID, locationType, number, notes string) error {
	_, err := s.exec(ctx, s.db, `UPDATE locations SET location_number = ?, additional_notes = ?
		WHERE shipment_id = ? AND location_type = ?`, number, notes, shipmentID, locationType)
	return err
}

func (s *Store) ChangeStatus(ctx context.Context, sh *domain.Shipment, change *domain.StatusChange) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `UPDATE shipments SET status = ?, updated_at = ? WHERE id = ?`,
			sh.Status, s.ts(sh.UpdatedAt), sh.ID)
		if err != nil {
			return err
		}
		if err := affected(res); err != nil {
			return err
		}
		change.ShipmentID = sh.ID
		return s.queryRow(ctx, tx, `INSERT INTO status_history
			(shipment_id, old_status, new_status, changed_by, change_reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
			change.ShipmentID, change.OldStatus, change.NewStatus, change.ChangedBy,
			change.ChangeReason, s.ts(change.CreatedAt)).Scan(&change.ID)
	})
}

func (s *Store) StatusHistory(ctx context.Context, shipmentID string, limit, offset int) ([]*domain.StatusChange, error) {
	rows, err := s.query(ctx, s.db, `SELECT h.id, h.shipment_id, h.old_status, h.new_status,
		u.email, h.change_reason, h.created_at
		FROM status_history h JOIN users u ON u.id = h.changed_by
		WHERE h.shipment_id = ? ORDER BY h.created_at DESC, h.id DESC LIMIT ? OFFSET ?`,
		shipmentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.ID, &c.ShipmentID, &c.OldStatus, &c.NewStatus, &c.ChangedBy,
			&c.ChangeReason, scanTime(&c.CreatedAt)); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) CountStatusHistory(ctx context.Context, shipmentID string) (int, error) {
	var n int
	err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM status_history WHERE shipment_id = ?`, shipmentID).Scan(&n)
	return n, err
}
