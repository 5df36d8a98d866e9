package domain

import "time"

const (
	// GuestUserID is the fixed owner id of data created in guest mode.
	GuestUserID = "00000000-0000-0000-0000-000000000000"
	// GuestEmail is the display email of the guest identity.
	GuestEmail = "visitante@propostafacil.com"
)

// Identity is the resolved "current user" of a request. It is either an
// AuthenticatedUser or a GuestUser; no other implementations exist.
type Identity interface {
	UserID() string
	Email() string
	IsGuest() bool
	identity()
}

// AuthenticatedUser is a user with a verified session at the identity provider.
type AuthenticatedUser struct {
	ID   string `json:"id"`
	Mail string `json:"email"`
}

func (u AuthenticatedUser) UserID() string { return u.ID }
func (u AuthenticatedUser) Email() string  { return u.Mail }
func (u AuthenticatedUser) IsGuest() bool  { return false }
func (AuthenticatedUser) identity()        {}

// GuestUser is the anonymous demo identity.
type GuestUser struct{}

func (GuestUser) UserID() string { return GuestUserID }
func (GuestUser) Email() string  { return GuestEmail }
func (GuestUser) IsGuest() bool  { return true }
func (GuestUser) identity()      {}

// Session is returned by sign-in and guest start.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	Guest        bool   `json:"guest"`
}

// Credentials is the body of login and register.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// UserAccount is a locally managed login used when the identity provider is
// this service itself (SQL store backends).
type UserAccount struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
