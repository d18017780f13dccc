package domain

import "time"

// User is an account holder. Email is the login identifier.
type User struct {
	ID                     string
	Email                  string
	FirstName              string
	LastName               string
	PhoneNumber            string
	PasswordHash           string
	IsActive               bool
	IsEmailVerified        bool
	EmailVerificationToken string
	PasswordResetToken     string
	StripeCustomerID       string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// FullName is used as the display name towards the payment gateway.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

// Company belongs to exactly one user.
type Company struct {
	ID                  string
	UserID              string
	Name                string
	Location            string
	PrimaryShipsCountry string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ShippingNeeds is the second registration step of a shipper.
type ShippingNeeds struct {
	ID          string
	UserID      string
	Mode        []string
	AverageFTL  string
	TrailerType []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AverageFTLChoices are the accepted monthly full-truckload buckets.
var AverageFTLChoices = []string{"1-5", "5-10", "15-25", "30-45", "50-70", "80-100"}

// Profile is a user together with its optional company and shipping needs.
type Profile struct {
	User          *User
	Company       *Company
	ShippingNeeds *ShippingNeeds
}
