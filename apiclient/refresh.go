package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// RefreshPath is the remote endpoint that exchanges a refresh token.
const RefreshPath = "/auth/refresh-token"

// recentRefreshTTL bounds how long a completed refresh is reused by requests
// that were already in flight with the superseded token.
const recentRefreshTTL = 30 * time.Second

// RefreshPayload is the decoded refresh response plus its raw body.
type RefreshPayload struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// RefreshHandlers are registered once by the hosting application.
type RefreshHandlers struct {
	// RefreshToken returns the refresh token for the credentials in ctx.
	RefreshToken func(ctx context.Context) (string, error)
	// OnSuccess receives the payload of every successful refresh.
	OnSuccess func(ctx context.Context, payload RefreshPayload)
	// OnError is called when a refresh cannot be completed. Hosts clear
	// local credentials and send the user back to sign in.
	OnError func(ctx context.Context, err error)
}

func (h *RefreshHandlers) success(ctx context.Context, p RefreshPayload) {
	if h.OnSuccess != nil {
		h.OnSuccess(ctx, p)
	}
}

func (h *RefreshHandlers) failure(ctx context.Context, err error) {
	if h.OnError != nil {
		h.OnError(ctx, err)
	}
}

// RefreshCoordinator guarantees at most one in-flight refresh call per
// refresh token. Requests failing with 401 while a refresh runs wait for it
// and resume with the same new access token, or fail with the same error.
type RefreshCoordinator struct {
	group    singleflight.Group
	recent   *cache.Cache
	exchange func(ctx context.Context, refreshToken string) (RefreshPayload, error)
}

// NewRefreshCoordinator creates a coordinator that performs refreshes with exchange.
func NewRefreshCoordinator(exchange func(ctx context.Context, refreshToken string) (RefreshPayload, error)) *RefreshCoordinator {
	return &RefreshCoordinator{
		recent:   cache.New(recentRefreshTTL, 2*recentRefreshTTL),
		exchange: exchange,
	}
}

// Refresh renews creds. staleAccess is the access token the failing request
// was sent with; if creds already moved past it no remote call is made.
func (rc *RefreshCoordinator) Refresh(ctx context.Context, creds *Credentials, staleAccess string, handlers *RefreshHandlers) (string, error) {
	if current := creds.AccessToken(); current != "" && current != staleAccess {
		return current, nil
	}

	refreshToken, err := handlers.RefreshToken(ctx)
	if err == nil && refreshToken == "" {
		err = errors.ErrNoRefreshToken
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", errors.ErrRefreshFailed, err)
		handlers.failure(ctx, err)
		return "", err
	}

	v, err, _ := rc.group.Do(refreshToken, func() (interface{}, error) {
		if current := creds.AccessToken(); current != "" && current != staleAccess {
			return RefreshPayload{AccessToken: current}, nil
		}
		// A memo holding the very token that was just rejected is stale.
		if cached, ok := rc.recent.Get(refreshToken); ok && cached.(RefreshPayload).AccessToken != staleAccess {
			return cached.(RefreshPayload), nil
		}

		// Waiters share this call, so one caller's cancellation must not fail
		// the others. The client timeout still bounds it.
		payload, err := rc.exchange(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			err = fmt.Errorf("%w: %w", errors.ErrRefreshFailed, err)
			handlers.failure(ctx, err)
			return nil, err
		}
		creds.rotate(payload)
		rc.recent.SetDefault(refreshToken, payload)
		handlers.success(ctx, payload)
		return payload, nil
	})
	if err != nil {
		return "", err
	}

	payload := v.(RefreshPayload)
	if creds.AccessToken() != payload.AccessToken {
		creds.rotate(payload)
	}
	return payload.AccessToken, nil
}

// exchangeRefreshToken posts the refresh token to the remote API. It bypasses
// interception so a failing refresh never triggers another refresh.
func (c *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) (RefreshPayload, error) {
	req := &Request{
		Method: http.MethodPost,
		Path:   RefreshPath,
		Body:   map[string]string{"refresh_token": refreshToken},
	}
	resp, err := c.send(ctx, req, nil)
	if err != nil {
		c.metrics.observeRefresh("failure")
		log.Warn().Err(err).Msg("access token refresh failed")
		return RefreshPayload{}, err
	}

	payload, err := DecodeData[RefreshPayload](resp)
	if err == nil && payload.AccessToken == "" {
		err = fmt.Errorf("%w: missing access_token", errors.ErrInvalidPayload)
	}
	if err != nil {
		c.metrics.observeRefresh("failure")
		return RefreshPayload{}, err
	}
	payload.Raw = resp.Body

	c.metrics.observeRefresh("success")
	log.Debug().Bool("rotated_refresh_token", payload.RefreshToken != "").Msg("access token refreshed")
	return payload, nil
}
