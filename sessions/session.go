package sessions

import (
	"github.com/jrsteele09/go-waste-portal/apiclient"
)

// Role is the portal role a session was issued for.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RolePengelola     Role = "pengelola"
)

// TokenType is the trust level of the session's access token.
// A partial token has passed the primary check (OTP or password) but not the
// secondary gate (PIN or admin OTP).
type TokenType string

const (
	TokenPartial TokenType = "partial"
	TokenFull    TokenType = "full"
)

// RegistrationStatus tracks a pengelola account through onboarding:
// uncomplete -> awaiting_approval -> approved -> complete.
type RegistrationStatus string

const (
	StatusUncomplete       RegistrationStatus = "uncomplete"
	StatusAwaitingApproval RegistrationStatus = "awaiting_approval"
	StatusApproved         RegistrationStatus = "approved"
	StatusComplete         RegistrationStatus = "complete"
)

// Data is everything the portal keeps about a signed-in user.
type Data struct {
	AccessToken        string             `json:"access_token,omitempty"`
	RefreshToken       string             `json:"refresh_token,omitempty"`
	SessionID          string             `json:"session_id,omitempty"`
	Role               Role               `json:"role,omitempty"`
	DeviceID           string             `json:"device_id,omitempty"`
	Email              string             `json:"email,omitempty"`
	Phone              string             `json:"phone,omitempty"`
	TokenType          TokenType          `json:"token_type,omitempty"`
	RegistrationStatus RegistrationStatus `json:"registration_status,omitempty"`
	NextStep           string             `json:"next_step,omitempty"`
}

// IsAnonymous reports whether d carries no access token. Other fields are
// irrelevant in that case.
func (d *Data) IsAnonymous() bool {
	return d == nil || d.AccessToken == ""
}

// IsFull reports whether the secondary gate has been passed.
func (d *Data) IsFull() bool {
	return d != nil && d.TokenType == TokenFull
}

// Credentials returns a token holder for the session's token pair.
func (d *Data) Credentials() *apiclient.Credentials {
	return apiclient.NewCredentials(d.AccessToken, d.RefreshToken)
}

// Merge copies every non-empty field of other into d.
func (d *Data) Merge(other Data) {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&d.AccessToken, other.AccessToken)
	set(&d.RefreshToken, other.RefreshToken)
	set(&d.SessionID, other.SessionID)
	set(&d.DeviceID, other.DeviceID)
	set(&d.Email, other.Email)
	set(&d.Phone, other.Phone)
	set(&d.NextStep, other.NextStep)
	if other.Role != "" {
		d.Role = other.Role
	}
	if other.TokenType != "" {
		d.TokenType = other.TokenType
	}
	if other.RegistrationStatus != "" {
		d.RegistrationStatus = other.RegistrationStatus
	}
}
