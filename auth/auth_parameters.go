package auth

import (
	"github.com/jrsteele09/go-waste-portal/sessions"
	"github.com/jrsteele09/go-waste-portal/token"
)

// OTPRequest asks the remote API to send a sign-in code to a phone number.
type OTPRequest struct {
	Phone string `json:"phone" form:"phone" validate:"required,phone62"`
}

// OTPVerification completes the pengelola primary check.
type OTPVerification struct {
	Phone    string `json:"phone" form:"phone" validate:"required,phone62"`
	OTP      string `json:"otp" form:"otp" validate:"required,otp"`
	DeviceID string `json:"device_id,omitempty" form:"-"`
}

// PINVerification upgrades a partial pengelola token to a full one.
type PINVerification struct {
	PIN      string `json:"pin" form:"pin" validate:"required,pin"`
	DeviceID string `json:"device_id,omitempty" form:"-"`
}

// PINCreation sets the PIN once an account is approved.
type PINCreation struct {
	PIN        string `json:"pin" form:"pin" validate:"required,pin"`
	ConfirmPIN string `json:"confirm_pin" form:"confirm_pin" validate:"required,eqfield=PIN"`
}

// AdminCredentials is the administrator primary check.
type AdminCredentials struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
	DeviceID string `json:"device_id,omitempty" form:"-"`
}

// AdminOTPVerification is the administrator second factor.
type AdminOTPVerification struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	OTP      string `json:"otp" form:"otp" validate:"required,otp"`
	DeviceID string `json:"device_id,omitempty" form:"-"`
}

// ProfileForm is the pengelola business profile submitted during onboarding.
type ProfileForm struct {
	CompanyName    string `json:"company_name" form:"company_name" validate:"required,min=3,max=100"`
	CompanyAddress string `json:"company_address" form:"company_address" validate:"required,max=255"`
	PICName        string `json:"pic_name" form:"pic_name" validate:"required,max=100"`
	PICPhone       string `json:"pic_phone" form:"pic_phone" validate:"required,phone62"`
	NIB            string `json:"nib,omitempty" form:"nib" validate:"omitempty,numeric,len=13"`
}

// Fields renders the form as multipart fields.
func (p ProfileForm) Fields() map[string]string {
	fields := map[string]string{
		"company_name":    p.CompanyName,
		"company_address": p.CompanyAddress,
		"pic_name":        p.PICName,
		"pic_phone":       p.PICPhone,
	}
	if p.NIB != "" {
		fields["nib"] = p.NIB
	}
	return fields
}

// AuthUser is the identity block of an auth response.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// AuthResult is the data member of every login/verification response.
type AuthResult struct {
	AccessToken        string                      `json:"access_token"`
	RefreshToken       string                      `json:"refresh_token"`
	SessionID          string                      `json:"session_id"`
	TokenType          sessions.TokenType          `json:"token_type"`
	Role               sessions.Role               `json:"role"`
	RegistrationStatus sessions.RegistrationStatus `json:"registration_status"`
	NextStep           string                      `json:"next_step"`
	DeviceID           string                      `json:"device_id"`
	User               *AuthUser                   `json:"user,omitempty"`
}

// withClaims fills fields the response left empty from the access token's
// claims. Opaque tokens carry none and leave the result unchanged.
func (a *AuthResult) withClaims() {
	claims, err := token.Inspect(a.AccessToken)
	if err != nil {
		return
	}
	if a.TokenType == "" {
		a.TokenType = sessions.TokenType(claims.TokenType)
	}
	if a.Role == "" {
		a.Role = sessions.Role(claims.Role)
	}
	if a.SessionID == "" {
		a.SessionID = claims.SessionID
	}
	if a.DeviceID == "" {
		a.DeviceID = claims.DeviceID
	}
}

// SessionData maps the result onto session fields. Empty values are left
// empty so the result can be merged into an existing session.
func (a AuthResult) SessionData() sessions.Data {
	d := sessions.Data{
		AccessToken:        a.AccessToken,
		RefreshToken:       a.RefreshToken,
		SessionID:          a.SessionID,
		Role:               a.Role,
		DeviceID:           a.DeviceID,
		TokenType:          a.TokenType,
		RegistrationStatus: a.RegistrationStatus,
		NextStep:           a.NextStep,
	}
	if a.User != nil {
		d.Email = a.User.Email
		d.Phone = a.User.Phone
	}
	return d
}

// StatusInfo describes onboarding progress.
type StatusInfo struct {
	RegistrationStatus sessions.RegistrationStatus `json:"registration_status"`
	NextStep           string                      `json:"next_step"`
	Progress           int                         `json:"progress"`
	Message            string                      `json:"message,omitempty"`
}
