package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

const userColumns = `id, email, first_name, last_name, phone_number, password_hash, is_active,
	is_email_verified, email_verification_token, password_reset_token, stripe_customer_id,
	created_at, updated_at`

func (s *Store) CreateAccount(ctx context.Context, u *domain.User, c *domain.Company) error {
	return conflict(s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.exec(ctx, tx, `INSERT INTO users (`+userColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Email, u.FirstName, u.LastName, u.PhoneNumber, u.PasswordHash, u.IsActive,
			u.IsEmailVerified, nullString(u.EmailVerificationToken), nullString(u.PasswordResetToken),
			nullString(u.StripeCustomerID), s.ts(u.CreatedAt), s.ts(u.UpdatedAt))
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}
		_, err = s.exec(ctx, tx, `INSERT INTO companies
			(id, user_id, name, location, primary_ships_country, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.UserID, c.Name, nullString(c.Location), c.PrimaryShipsCountry,
			s.ts(c.CreatedAt), s.ts(c.UpdatedAt))
		return err
	}))
}

func (s *Store) scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u                           domain.User
		verify, reset, stripeCustID sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PhoneNumber, &u.PasswordHash,
		&u.IsActive, &u.IsEmailVerified, &verify, &reset, &stripeCustID,
		scanTime(&u.CreatedAt), scanTime(&u.UpdatedAt))
	if err != nil {
		return nil, notFound(err)
	}
	u.EmailVerificationToken = verify.String
	u.PasswordResetToken = reset.String
	u.StripeCustomerID = stripeCustID.String
	return &u, nil
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (*domain.User, error) {
	return s.scanUser(s.queryRow(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE `+cond, arg))
}

func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.userWhere(ctx, "id = ?", id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.userWhere(ctx, "LOWER(email) = LOWER(?)", email)
}

func (s *Store) UserByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return s.userWhere(ctx, "email_verification_token = ?", token)
}

func (s *Store) UserByResetToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return s.userWhere(ctx, "password_reset_token = ?", token)
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	res, err := s.exec(ctx, s.db, `UPDATE users SET email = ?, first_name = ?, last_name = ?,
		phone_number = ?, password_hash = ?, is_active = ?, is_email_verified = ?,
		email_verification_token = ?, password_reset_token = ?, stripe_customer_id = ?,
		updated_at = ? WHERE id = ?`,
		u.Email, u.FirstName, u.LastName, u.PhoneNumber, u.PasswordHash, u.IsActive,
		u.IsEmailVerified, nullString(u.EmailVerificationToken), nullString(u.PasswordResetToken),
		nullString(u.StripeCustomerID), s.ts(u.UpdatedAt), u.ID)
	if err != nil {
		return conflict(err)
	}
	return affected(res)
}

func (s *Store) CompanyByUser(ctx context.Context, userID string) (*domain.Company, error) {
	var (
		c        domain.Company
		location sql.NullString
	)
	err := s.queryRow(ctx, s.db, `SELECT id, user_id, name, location, primary_ships_country,
		created_at, updated_at FROM companies WHERE user_id = ?`, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &location, &c.PrimaryShipsCountry,
			scanTime(&c.CreatedAt), scanTime(&c.UpdatedAt))
	if err != nil {
		return nil, notFound(err)
	}
	c.Location = location.String
	return &c, nil
}

func (s *Store) UpdateCompany(ctx context.Context, c *domain.Company) error {
	res, err := s.exec(ctx, s.db, `UPDATE companies SET name = ?, location = ?,
		primary_ships_country = ?, updated_at = ? WHERE id = ?`,
		c.Name, nullString(c.Location), c.PrimaryShipsCountry, s.ts(c.UpdatedAt), c.ID)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) ShippingNeedsByUser(ctx context.Context, userID string) (*domain.ShippingNeeds, error) {
	var (
		n                domain.ShippingNeeds
		mode, trailerTyp string
	)
	err := s.queryRow(ctx, s.db, `SELECT id, user_id, mode, average_ftl, trailer_type,
		created_at, updated_at FROM shipping_needs WHERE user_id = ?`, userID).
		Scan(&n.ID, &n.UserID, &mode, &n.AverageFTL, &trailerTyp,
			scanTime(&n.CreatedAt), scanTime(&n.UpdatedAt))
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal([]byte(mode), &n.Mode); err != nil {
		return nil, fmt.Errorf("failed to decode shipping mode: %w", err)
	}
	if err := json.Unmarshal([]byte(trailerTyp), &n.TrailerType); err != nil {
		return nil, fmt.Errorf("failed to decode trailer types: %w", err)
	}
	return &n, nil
}

func (s *Store) CreateShippingNeeds(ctx context.Context, n *domain.ShippingNeeds) error {
	mode, err := json.Marshal(nonNil(n.Mode))
	if err != nil {
		return err
	}
	trailer, err := json.Marshal(nonNil(n.TrailerType))
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, s.db, `INSERT INTO shipping_needs
		(id, user_id, mode, average_ftl, trailer_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(mode), n.AverageFTL, string(trailer), s.ts(n.CreatedAt), s.ts(n.UpdatedAt))
	return conflict(err)
}

func (s *Store) TokenForUser(ctx context.Context, userID, candidate string) (string, error) {
	var key string
	err := s.queryRow(ctx, s.db, `SELECT key FROM auth_tokens WHERE user_id = ?`, userID).Scan(&key)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	_, err = s.exec(ctx, s.db, `INSERT INTO auth_tokens (key, user_id, created_at) VALUES (?, ?, ?)`,
		candidate, userID, s.ts(time.Now()))
	if err = conflict(err); errors.Is(err, domain.ErrConflict) {
		// Lost a race against a concurrent login of the same user.
		err = s.queryRow(ctx, s.db, `SELECT key FROM auth_tokens WHERE user_id = ?`, userID).Scan(&key)
		return key, err
	}
	if err != nil {
		return "", err
	}
	return candidate, nil
}

func (s *Store) UserByToken(ctx context.Context, key string) (*domain.User, error) {
	return s.scanUser(s.queryRow(ctx, s.db, `SELECT `+prefixed("u", userColumns)+`
		FROM auth_tokens t JOIN users u ON u.id = t.user_id WHERE t.key = ?`, key))
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
