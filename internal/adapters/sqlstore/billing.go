package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

const invoiceColumns = `i.id, i.shipment_id, i.invoice_number, i.status, i.amount,
	i.driver_assist_fee, i.total_amount, i.created_at, i.paid_at`

func scanInvoice(row interface{ Scan(...any) error }) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(&inv.ID, &inv.ShipmentID, &inv.InvoiceNumber, &inv.Status, &inv.Amount,
		&inv.DriverAssistFee, &inv.TotalAmount, scanTime(&inv.CreatedAt), nullTime{&inv.PaidAt})
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	err := s.queryRow(ctx, s.db, `INSERT INTO invoices (shipment_id, invoice_number, status, amount,
		driver_assist_fee, total_amount, created_at, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		inv.ShipmentID, inv.InvoiceNumber, inv.Status, inv.Amount, inv.DriverAssistFee,
		inv.TotalAmount, s.ts(inv.CreatedAt), s.tsPtr(inv.PaidAt)).Scan(&inv.ID)
	return conflict(err)
}

func (s *Store) InvoiceByShipment(ctx context.Context, shipmentID string) (*domain.Invoice, error) {
	return scanInvoice(s.queryRow(ctx, s.db, `SELECT `+invoiceColumns+` FROM invoices i
		WHERE i.shipment_id = ?`, shipmentID))
}

func (s *Store) InvoiceForUser(ctx context.Context, userID string, id int64) (*domain.Invoice, error) {
	return scanInvoice(s.queryRow(ctx, s.db, `SELECT `+invoiceColumns+` FROM invoices i
		JOIN shipments sh ON sh.id = i.shipment_id WHERE i.id = ? AND sh.user_id = ?`, id, userID))
}

func (s *Store) ListInvoices(ctx context.Context, userID string, limit, offset int) ([]*domain.Invoice, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+invoiceColumns+` FROM invoices i
		JOIN shipments sh ON sh.id = i.shipment_id WHERE sh.user_id = ?
		ORDER BY i.created_at DESC, i.id DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) CountInvoices(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM invoices i
		JOIN shipments sh ON sh.id = i.shipment_id WHERE sh.user_id = ?`, userID).Scan(&n)
	return n, err
}

func (s *Store) DeleteInvoice(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

const paymentColumns = `p.id, p.invoice_id, p.stripe_payment_intent_id, p.stripe_payment_method_id,
	p.amount, p.status, p.failure_reason, p.client_secret, p.created_at, p.updated_at,
	i.invoice_number, i.shipment_id`

func scanPayment(row interface{ Scan(...any) error }) (*domain.Payment, error) {
	var (
		p              domain.Payment
		intent, method sql.NullString
	)
	err := row.Scan(&p.ID, &p.InvoiceID, &intent, &method, &p.Amount, &p.Status, &p.FailureReason,
		&p.ClientSecret, scanTime(&p.CreatedAt), scanTime(&p.UpdatedAt), &p.InvoiceNumber, &p.ShipmentID)
	if err != nil {
		return nil, notFound(err)
	}
	p.IntentID = intent.String
	p.PaymentMethodID = method.String
	return &p, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	err := s.queryRow(ctx, s.db, `INSERT INTO payments (invoice_id, stripe_payment_intent_id,
		stripe_payment_method_id, amount, status, failure_reason, client_secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.InvoiceID, nullString(p.IntentID), nullString(p.PaymentMethodID), p.Amount, p.Status,
		p.FailureReason, p.ClientSecret, s.ts(p.CreatedAt), s.ts(p.UpdatedAt)).Scan(&p.ID)
	return conflict(err)
}

func (s *Store) updatePayment(ctx context.Context, q querier, p *domain.Payment) error {
	res, err := s.exec(ctx, q, `UPDATE payments SET stripe_payment_intent_id = ?,
		stripe_payment_method_id = ?, status = ?, failure_reason = ?, client_secret = ?,
		updated_at = ? WHERE id = ?`,
		nullString(p.IntentID), nullString(p.PaymentMethodID), p.Status, p.FailureReason,
		p.ClientSecret, s.ts(p.UpdatedAt), p.ID)
	if err != nil {
		return conflict(err)
	}
	return affected(res)
}

func (s *Store) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	return s.updatePayment(ctx, s.db, p)
}

func (s *Store) PaymentByIntent(ctx context.Context, intentID string) (*domain.Payment, error) {
	return scanPayment(s.queryRow(ctx, s.db, `SELECT `+paymentColumns+` FROM payments p
		JOIN invoices i ON i.id = p.invoice_id WHERE p.stripe_payment_intent_id = ?`, intentID))
}

func (s *Store) PaymentByIntentForUser(ctx context.Context, userID, intentID string) (*domain.Payment, error) {
	return scanPayment(s.queryRow(ctx, s.db, `SELECT `+paymentColumns+` FROM payments p
		JOIN invoices i ON i.id = p.invoice_id JOIN shipments sh ON sh.id = i.shipment_id
		WHERE p.stripe_payment_intent_id = ? AND sh.user_id = ?`, intentID, userID))
}

func (s *Store) PaymentsForUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+paymentColumns+` FROM payments p
		JOIN invoices i ON i.id = p.invoice_id JOIN shipments sh ON sh.id = i.shipment_id
		WHERE sh.user_id = ? ORDER BY p.created_at DESC, p.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) settleInvoice(ctx context.Context, tx *sql.Tx, invoiceID int64, paidAt time.Time) error {
	res, err := s.exec(ctx, tx, `UPDATE invoices SET status = ?, paid_at = ? WHERE id = ?`,
		domain.InvoicePaid, s.ts(paidAt), invoiceID)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}
	_, err = s.exec(ctx, tx, `UPDATE shipments SET status = ?, updated_at = ?
		WHERE id = (SELECT shipment_id FROM invoices WHERE id = ?)`,
		domain.StatusInProgress, s.ts(paidAt), invoiceID)
	return err
}

func (s *Store) MarkPaid(ctx context.Context, p *domain.Payment, paidAt time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		p.Status = domain.PaymentSucceeded
		p.UpdatedAt = paidAt
		if err := s.updatePayment(ctx, tx, p); err != nil {
			return err
		}
		return s.settleInvoice(ctx, tx, p.InvoiceID, paidAt)
	})
}

func (s *Store) MarkInvoicePaid(ctx context.Context, p *domain.Payment, paidAt time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.settleInvoice(ctx, tx, p.InvoiceID, paidAt)
	})
}
