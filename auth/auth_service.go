package auth

import (
	"context"

	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/internal/errors"
)

// Remote auth endpoints.
const (
	PathRequestOTP         = "/auth/request-otp"
	PathVerifyOTP          = "/auth/verify-otp"
	PathVerifyPIN          = "/auth/verify-pin"
	PathCreatePIN          = "/auth/create-pin"
	PathAdminLogin         = "/auth/admin/login"
	PathAdminVerifyOTP     = "/auth/admin/verify-otp"
	PathRegistrationStatus = "/auth/registration-status"
	PathCompleteProfile    = "/pengelola/profile"
	PathLogout             = "/auth/logout"
)

// Service wraps the remote API's authentication and onboarding endpoints.
// Calls authenticate with the credentials bound to ctx.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

// Client returns the API client the service calls through.
func (s *Service) Client() *apiclient.Client {
	return s.client
}

func (s *Service) RequestOTP(ctx context.Context, req OTPRequest) error {
	_, err := s.client.Post(ctx, PathRequestOTP, req)
	return err
}

func (s *Service) VerifyOTP(ctx context.Context, req OTPVerification) (AuthResult, error) {
	res, err := s.authCall(ctx, PathVerifyOTP, req)
	if err == nil && res.User == nil {
		res.User = &AuthUser{Phone: req.Phone}
	}
	return res, err
}

func (s *Service) VerifyPIN(ctx context.Context, req PINVerification) (AuthResult, error) {
	return s.authCall(ctx, PathVerifyPIN, req)
}

// CreatePIN sets the account PIN. The remote API may or may not issue a new
// token pair; an empty AccessToken in the result means the current one stays.
func (s *Service) CreatePIN(ctx context.Context, req PINCreation) (AuthResult, error) {
	resp, err := s.client.Post(ctx, PathCreatePIN, req)
	if err != nil {
		return AuthResult{}, err
	}
	res, err := apiclient.DecodeData[AuthResult](resp)
	if err != nil {
		return AuthResult{}, err
	}
	res.withClaims()
	return res, nil
}

// AdminLogin checks administrator credentials. The remote API then sends an
// OTP; the result may carry a partial token.
func (s *Service) AdminLogin(ctx context.Context, req AdminCredentials) (AuthResult, error) {
	resp, err := s.client.Post(ctx, PathAdminLogin, req)
	if err != nil {
		return AuthResult{}, err
	}
	res, err := apiclient.DecodeData[AuthResult](resp)
	if err != nil {
		return AuthResult{}, err
	}
	res.withClaims()
	if res.User == nil {
		res.User = &AuthUser{Email: req.Email}
	}
	return res, nil
}

func (s *Service) AdminVerifyOTP(ctx context.Context, req AdminOTPVerification) (AuthResult, error) {
	res, err := s.authCall(ctx, PathAdminVerifyOTP, req)
	if err == nil && res.User == nil {
		res.User = &AuthUser{Email: req.Email}
	}
	return res, err
}

func (s *Service) RegistrationStatus(ctx context.Context) (StatusInfo, error) {
	resp, err := s.client.Get(ctx, PathRegistrationStatus, nil)
	if err != nil {
		return StatusInfo{}, err
	}
	return apiclient.DecodeData[StatusInfo](resp)
}

// CompleteProfile uploads the business profile and its supporting documents.
func (s *Service) CompleteProfile(ctx context.Context, form ProfileForm, documents []apiclient.File) (StatusInfo, error) {
	resp, err := s.client.PostMultipart(ctx, PathCompleteProfile, &apiclient.Multipart{
		Fields: form.Fields(),
		Files:  documents,
	})
	if err != nil {
		return StatusInfo{}, err
	}
	return apiclient.DecodeData[StatusInfo](resp)
}

func (s *Service) Logout(ctx context.Context) error {
	_, err := s.client.Post(ctx, PathLogout, nil)
	return err
}

// authCall posts body and requires an access token in the response.
func (s *Service) authCall(ctx context.Context, path string, body any) (AuthResult, error) {
	resp, err := s.client.Post(ctx, path, body)
	if err != nil {
		return AuthResult{}, err
	}
	res, err := apiclient.DecodeData[AuthResult](resp)
	if err != nil {
		return AuthResult{}, err
	}
	if res.AccessToken == "" {
		return AuthResult{}, errors.Wrapf(ErrMissingAuthToken, "[auth %s]", path)
	}
	res.withClaims()
	return res, nil
}
