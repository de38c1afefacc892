package model

import "time"

type Role string

const (
	RoleUser    Role = "USER"
	RoleStaff   Role = "STAFF"
	RolePartner Role = "PARTNER"
	RoleAdmin   Role = "ADMIN"
)

type User struct {
	ID          int64  `json:"id"`
	Role        Role   `json:"role"`
	FullName    string `json:"fullName,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	IsActive    bool   `json:"isActive"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

type AuthState int

const (
	Unauthenticated AuthState = iota
	Authenticating
	Authenticated
	Refreshing
)

func (s AuthState) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// Session is an immutable snapshot of the authenticated identity.
type Session struct {
	AccessToken  string
	RefreshToken string
	// Expiry is derived from the access token and is zero for opaque tokens.
	Expiry time.Time
	User   *User
	State  AuthState
}

func (s Session) Authenticated() bool {
	return s.AccessToken != "" && (s.State == Authenticated || s.State == Refreshing)
}

func (s Session) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// LoginResult is returned by phone and e-mail OTP logins. New users get a
// TempToken instead of usable tokens and must complete registration.
type LoginResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
	NewUser      bool   `json:"newUser"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	TempToken    string `json:"tempToken,omitempty"`
}

func (r LoginResult) Tokens() Tokens {
	return Tokens{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

type CompleteRegistrationRequest struct {
	IDToken   string `json:"idToken,omitempty"`
	TempToken string `json:"tempToken,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Birthday  string `json:"birthday"`
}
