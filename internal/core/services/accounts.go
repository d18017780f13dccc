// Package services holds the application logic behind the HTTP handlers and
// the release pipeline. Services only talk to the outside world through ports.
package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ErrMailUnavailable is returned when a mail the caller waits for could not be sent.
var ErrMailUnavailable = errors.New("mail delivery failed")

// ErrInvalidToken is returned when an API token does not match any user.
var ErrInvalidToken = errors.New("invalid token")

const (
	msgRequired      = "This field is required."
	msgInvalidEmail  = "Enter a valid email address."
	msgEmailTaken    = "user with this email already exists."
	msgInvalidPhone  = "Phone number must be entered in the format: '+999999999'. Up to 15 digits allowed."
	msgBadLogin      = "Invalid email or password."
	msgDisabled      = "User account is disabled."
	msgUnknownEmail  = "User with this email does not exist."
	msgInvalidReset  = "Invalid token."
	msgInvalidVerify = "Invalid verification token or email is already verified."
)

var (
	verificationMail = template.Must(template.New("verify").Parse(`<html><body>
<p>Hi {{.FirstName}},</p>
<p>Thanks for signing up for ShipOrbit. Please confirm your email address to activate your account.</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>If you did not create an account you can ignore this message.</p>
</body></html>`))

	resetMail = template.Must(template.New("reset").Parse(`<html><body>
<p>Hi {{.FirstName}},</p>
<p>Click the link to reset your password: <a href="{{.Link}}">{{.Link}}</a></p>
</body></html>`))
)

// RegisterInput is the first registration step.
type RegisterInput struct {
	Email               string
	FirstName           string
	LastName            string
	PhoneNumber         string
	Password            string
	CompanyName         string
	PrimaryShipsCountry string
}

// AccountService handles registration, login, tokens and email flows.
type AccountService struct {
	users       ports.UserRepository
	mailer      ports.Mailer
	frontendURL string
	now         func() time.Time
}

func NewAccountService(users ports.UserRepository, mailer ports.Mailer, frontendURL string) *AccountService {
	return &AccountService{
		users:       users,
		mailer:      mailer,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
		now:         time.Now,
	}
}

func (s *AccountService) validateRegistration(ctx context.Context, in RegisterInput) error {
	v := &domain.ValidationError{}

	required := map[string]string{
		"email":                 in.Email,
		"first_name":            in.FirstName,
		"last_name":             in.LastName,
		"phone_number":          in.PhoneNumber,
		"password":              in.Password,
		"company_name":          in.CompanyName,
		"primary_ships_country": in.PrimaryShipsCountry,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			v.Add(field, msgRequired)
		}
	}

	if in.Email != "" {
		if !validEmail(in.Email) {
			v.Add("email", msgInvalidEmail)
		} else if _, err := s.users.UserByEmail(ctx, in.Email); err == nil {
			v.Add("email", msgEmailTaken)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	maxLen(v, "first_name", in.FirstName, 15)
	maxLen(v, "last_name", in.LastName, 255)
	maxLen(v, "company_name", in.CompanyName, 255)
	maxLen(v, "primary_ships_country", in.PrimaryShipsCountry, 2)
	if in.PhoneNumber != "" {
		if !phonePattern.MatchString(in.PhoneNumber) {
			v.Add("phone_number", msgInvalidPhone)
		}
		maxLen(v, "phone_number", in.PhoneNumber, 20)
	}
	if in.Password != "" {
		for _, p := range validatePassword(in.Password) {
			v.Add("password", p)
		}
	}
	return v.OrNil()
}

// Register creates the user and its company, returns the profile and API token.
// A failing verification mail is logged and otherwise ignored.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.Profile, string, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validateRegistration(ctx, in); err != nil {
		return nil, "", err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}
	now := s.now()
	u := &domain.User{
		ID:                     uuid.NewString(),
		Email:                  in.Email,
		FirstName:              in.FirstName,
		LastName:               in.LastName,
		PhoneNumber:            in.PhoneNumber,
		PasswordHash:           hash,
		IsActive:               true,
		EmailVerificationToken: uuid.NewString(),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	c := &domain.Company{
		ID:                  uuid.NewString(),
		UserID:              u.ID,
		Name:                in.CompanyName,
		PrimaryShipsCountry: in.PrimaryShipsCountry,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.users.CreateAccount(ctx, u, c); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, "", domain.NewValidationError("email", msgEmailTaken)
		}
		return nil, "", fmt.Errorf("failed to create account: %w", err)
	}

	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}

	if err := s.sendVerification(ctx, u); err != nil {
		log.WithFields(log.Fields{"user": u.ID, "error": err}).Warn("verification email not sent")
	}

	return &domain.Profile{User: u, Company: c}, token, nil
}

// Login checks credentials and returns the profile with the user's token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Profile, string, error) {
	v := &domain.ValidationError{}
	if strings.TrimSpace(email) == "" {
		v.Add("email", msgRequired)
	} else if !validEmail(email) {
		v.Add("email", msgInvalidEmail)
	}
	if password == "" {
		v.Add("password", msgRequired)
	}
	if err := v.OrNil(); err != nil {
		return nil, "", err
	}

	u, err := s.users.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", domain.NewValidationError(domain.NonFieldErrors, msgBadLogin)
	}
	if err != nil {
		return nil, "", err
	}
	if !checkPassword(u.PasswordHash, password) {
		return nil, "", domain.NewValidationError(domain.NonFieldErrors, msgBadLogin)
	}
	if !u.IsActive {
		return nil, "", domain.NewValidationError(domain.NonFieldErrors, msgDisabled)
	}

	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	profile, err := s.Profile(ctx, u)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

// Authenticate resolves an API token to its active user.
func (s *AccountService) Authenticate(ctx context.Context, key string) (*domain.User, error) {
	u, err := s.users.UserByToken(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidToken
	}
	return u, nil
}

// Profile loads the company and shipping needs of u, either may be missing.
func (s *AccountService) Profile(ctx context.Context, u *domain.User) (*domain.Profile, error) {
	p := &domain.Profile{User: u}

	c, err := s.users.CompanyByUser(ctx, u.ID)
	switch {
	case err == nil:
		p.Company = c
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	n, err := s.users.ShippingNeedsByUser(ctx, u.ID)
	switch {
	case err == nil:
		p.ShippingNeeds = n
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return p, nil
}

// RequestPasswordReset stores a new reset token and mails the reset link.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return domain.NewValidationError("email", msgRequired)
	}
	if !validEmail(email) {
		return domain.NewValidationError("email", msgInvalidEmail)
	}
	u, err := s.users.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewValidationError("email", msgUnknownEmail)
	}
	if err != nil {
		return err
	}

	u.PasswordResetToken = uuid.NewString()
	u.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	err = s.send(ctx, u, "Reset your ShipOrbit password", resetMail, s.frontendURL+"/reset-password/"+u.PasswordResetToken)
	if err != nil {
		log.WithFields(log.Fields{"user": u.ID, "error": err}).Warn("password reset email not sent")
	}
	return nil
}

// ConfirmPasswordReset sets a new password for the holder of token.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	v := &domain.ValidationError{}
	if token == "" {
		v.Add("token", msgRequired)
	}
	if password == "" {
		v.Add("password", msgRequired)
	} else {
		for _, p := range validatePassword(password) {
			v.Add("password", p)
		}
	}

	var u *domain.User
	if token != "" {
		var err error
		u, err = s.users.UserByResetToken(ctx, token)
		if errors.Is(err, domain.ErrNotFound) {
			v.Add("token", msgInvalidReset)
		} else if err != nil {
			return err
		}
	}
	if err := v.OrNil(); err != nil {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.PasswordResetToken = ""
	u.UpdatedAt = s.now()
	return s.users.UpdateUser(ctx, u)
}

// VerifyEmail marks the owner of token verified. It reports whether the
// address had already been verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, domain.NewValidationError("token", msgRequired)
	}
	u, err := s.users.UserByVerificationToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return false, domain.NewValidationError("token", msgInvalidVerify)
	}
	if err != nil {
		return false, err
	}
	if u.IsEmailVerified {
		return true, nil
	}

	u.IsEmailVerified = true
	u.EmailVerificationToken = ""
	u.UpdatedAt = s.now()
	return false, s.users.UpdateUser(ctx, u)
}

// ResendVerification issues a fresh verification token and mails it.
// It reports whether the address was already verified; a mail failure yields ErrMailUnavailable.
func (s *AccountService) ResendVerification(ctx context.Context, u *domain.User) (bool, error) {
	if u.IsEmailVerified {
		return true, nil
	}
	u.EmailVerificationToken = uuid.NewString()
	u.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return false, err
	}
	if err := s.sendVerification(ctx, u); err != nil {
		log.WithFields(log.Fields{"user": u.ID, "error": err}).Error("verification email not sent")
		return false, ErrMailUnavailable
	}
	return false, nil
}

func (s *AccountService) sendVerification(ctx context.Context, u *domain.User) error {
	return s.send(ctx, u, "Verify your ShipOrbit account", verificationMail,
		s.frontendURL+"/verify-email/"+u.EmailVerificationToken)
}

func (s *AccountService) send(ctx context.Context, u *domain.User, subject string, tmpl *template.Template, link string) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, map[string]string{"FirstName": u.FirstName, "Link": link}); err != nil {
		return fmt.Errorf("failed to render %s mail: %w", tmpl.Name(), err)
	}
	return s.mailer.Send(ctx, ports.Email{
		To:      []string{u.Email},
		Subject: subject,
		HTML:    body.String(),
	})
}

// issueToken returns the user's API token, creating it on first use.
func (s *AccountService) issueToken(ctx context.Context, userID string) (string, error) {
	candidate, err := newTokenKey()
	if err != nil {
		return "", err
	}
	key, err := s.users.TokenForUser(ctx, userID, candidate)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return key, nil
}

func newTokenKey() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == strings.TrimSpace(s) && strings.Contains(addr.Address, ".")
}

func maxLen(v *domain.ValidationError, field, value string, n int) {
	if len([]rune(value)) > n {
		v.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", n))
	}
}
