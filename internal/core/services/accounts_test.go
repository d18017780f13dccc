package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

func newAccounts(t *testing.T) (*AccountService, *fakeMailer) {
	t.Helper()
	mailer := &fakeMailer{}
	s := NewAccountService(openStore(t), mailer, "http://127.0.0.1:5173/")
	s.now = clock
	return s, mailer
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:               "grace@example.com",
		FirstName:           "Grace",
		LastName:            "Hopper",
		PhoneNumber:         "+15551234567",
		Password:            "c0bol-Rules!",
		CompanyName:         "Navy Freight",
		PrimaryShipsCountry: "US",
	}
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	v, ok := domain.AsValidation(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	return v.Fields
}

func TestRegisterSendsVerificationLink(t *testing.T) {
	s, mailer := newAccounts(t)

	profile, token, err := s.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.Len(t, token, 40)
	assert.Equal(t, "Navy Freight", profile.Company.Name)
	assert.False(t, profile.User.IsEmailVerified)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"grace@example.com"}, mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].HTML,
		"http://127.0.0.1:5173/verify-email/"+profile.User.EmailVerificationToken)
}

func TestRegisterIgnoresMailFailure(t *testing.T) {
	s, mailer := newAccounts(t)
	mailer.err = errors.New("smtp down")

	_, _, err := s.Register(context.Background(), validRegistration())
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newAccounts(t)
	ctx := context.Background()

	in := validRegistration()
	in.Email = "not-an-email"
	in.PhoneNumber = "0123"
	in.FirstName = "Bartholomew-Maximilian"
	in.Password = "12345678"
	fields := fieldErrors(t, func() error { _, _, err := s.Register(ctx, in); return err }())

	assert.Equal(t, []string{msgInvalidEmail}, fields["email"])
	assert.Equal(t, []string{msgInvalidPhone}, fields["phone_number"])
	assert.Equal(t, []string{"Ensure this field has no more than 15 characters."}, fields["first_name"])
	assert.Contains(t, fields["password"], "This password is too common.")
	assert.Contains(t, fields["password"], "This password is entirely numeric.")

	_, _, err := s.Register(ctx, validRegistration())
	require.NoError(t, err)
	_, _, err = s.Register(ctx, validRegistration())
	assert.Equal(t, []string{msgEmailTaken}, fieldErrors(t, err)["email"])
}

func TestPasswordRules(t *testing.T) {
	assert.Empty(t, validatePassword("grace2024!"), "names and email are not compared at registration")
	assert.Empty(t, validatePassword("s3a-L0ng-walk"))
	assert.Equal(t, []string{"This password is too short. It must contain at least 8 characters."}, validatePassword("s3a-L0n"))
	assert.Equal(t, []string{"This password is too common."}, validatePassword("Password123"))
	assert.Equal(t, []string{"This password is entirely numeric."}, validatePassword("20241987"))
}

func TestLongPassword(t *testing.T) {
	s, _ := newAccounts(t)
	ctx := context.Background()

	in := validRegistration()
	in.Password = strings.Repeat("harbor-pilot-", 6) + "c0b0l!"
	require.Greater(t, len(in.Password), 72)
	_, _, err := s.Register(ctx, in)
	require.NoError(t, err)

	_, _, err = s.Login(ctx, in.Email, in.Password)
	assert.NoError(t, err)

	// Same first 72 bytes, different tail.
	_, _, err = s.Login(ctx, in.Email, in.Password[:72]+"x")
	assert.Equal(t, []string{msgBadLogin}, fieldErrors(t, err)[domain.NonFieldErrors])
}

func TestLogin(t *testing.T) {
	s, _ := newAccounts(t)
	ctx := context.Background()
	_, regToken, err := s.Register(ctx, validRegistration())
	require.NoError(t, err)

	profile, token, err := s.Login(ctx, "grace@example.com", "c0bol-Rules!")
	require.NoError(t, err)
	assert.Equal(t, regToken, token, "the token is created once and reused")
	assert.NotNil(t, profile.Company)
	assert.Nil(t, profile.ShippingNeeds)

	_, _, err = s.Login(ctx, "grace@example.com", "wrong-password")
	assert.Equal(t, []string{msgBadLogin}, fieldErrors(t, err)[domain.NonFieldErrors])

	_, _, err = s.Login(ctx, "nobody@example.com", "whatever-pass")
	assert.Equal(t, []string{msgBadLogin}, fieldErrors(t, err)[domain.NonFieldErrors])

	u, err := s.Authenticate(ctx, token)
	require.NoError(t, err)
	u.IsActive = false
	require.NoError(t, s.users.UpdateUser(ctx, u))

	_, _, err = s.Login(ctx, "grace@example.com", "c0bol-Rules!")
	assert.Equal(t, []string{msgDisabled}, fieldErrors(t, err)[domain.NonFieldErrors])

	_, err = s.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordResetFlow(t *testing.T) {
	s, mailer := newAccounts(t)
	ctx := context.Background()
	_, _, err := s.Register(ctx, validRegistration())
	require.NoError(t, err)

	err = s.RequestPasswordReset(ctx, "missing@example.com")
	assert.Equal(t, []string{msgUnknownEmail}, fieldErrors(t, err)["email"])

	require.NoError(t, s.RequestPasswordReset(ctx, "grace@example.com"))
	require.Len(t, mailer.sent, 2)
	reset := mailer.sent[1].HTML
	i := strings.Index(reset, "/reset-password/")
	require.Positive(t, i)
	token := reset[i+len("/reset-password/") : i+len("/reset-password/")+36]

	err = s.ConfirmPasswordReset(ctx, "bogus", "n3w-Secret-pass")
	assert.Equal(t, []string{msgInvalidReset}, fieldErrors(t, err)["token"])

	require.NoError(t, s.ConfirmPasswordReset(ctx, token, "n3w-Secret-pass"))
	_, _, err = s.Login(ctx, "grace@example.com", "n3w-Secret-pass")
	assert.NoError(t, err)

	err = s.ConfirmPasswordReset(ctx, token, "an0ther-Secret")
	assert.Equal(t, []string{msgInvalidReset}, fieldErrors(t, err)["token"], "reset tokens are single use")
}

func TestVerifyEmail(t *testing.T) {
	s, _ := newAccounts(t)
	ctx := context.Background()
	profile, _, err := s.Register(ctx, validRegistration())
	require.NoError(t, err)

	already, err := s.VerifyEmail(ctx, profile.User.EmailVerificationToken)
	require.NoError(t, err)
	assert.False(t, already)

	_, err = s.VerifyEmail(ctx, profile.User.EmailVerificationToken)
	assert.Equal(t, []string{msgInvalidVerify}, fieldErrors(t, err)["token"])

	u, err := s.users.UserByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsEmailVerified)

	already, err = s.ResendVerification(ctx, u)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestResendVerificationMailFailure(t *testing.T) {
	s, mailer := newAccounts(t)
	ctx := context.Background()
	profile, _, err := s.Register(ctx, validRegistration())
	require.NoError(t, err)
	oldToken := profile.User.EmailVerificationToken

	mailer.err = errors.New("rate limited")
	_, err = s.ResendVerification(ctx, profile.User)
	assert.ErrorIs(t, err, ErrMailUnavailable)

	u, err := s.users.UserByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, u.EmailVerificationToken)
}
