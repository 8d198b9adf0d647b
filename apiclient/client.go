package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const (
	// APIKeyHeader carries the static API key when one is configured.
	APIKeyHeader = "X-API-Key"

	tracerName      = "github.com/jrsteele09/go-waste-portal/apiclient"
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 10 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client issues requests against a single remote API base URL and recovers
// from expired access tokens by refreshing them once and replaying.
type Client struct {
	baseURL      *url.URL
	apiKey       string
	bypassTunnel bool
	httpClient   *http.Client
	defaults     *Credentials
	refresher    *RefreshCoordinator
	metrics      *Metrics
	tracer       trace.Tracer

	handlersMu sync.RWMutex
	handlers   *RefreshHandlers
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics records request and refresh metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracerProvider traces outbound calls with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config, options ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("[apiclient New] base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[apiclient New] invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:      base,
		apiKey:       cfg.APIKey,
		bypassTunnel: needsTunnelBypass(base),
		httpClient:   &http.Client{Timeout: timeout},
		defaults:     &Credentials{},
		tracer:       otel.Tracer(tracerName),
	}
	c.refresher = NewRefreshCoordinator(c.exchangeRefreshToken)

	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// SetToken sets the process-wide default access token used by requests whose
// context carries no credentials of its own.
func (c *Client) SetToken(accessToken string) {
	c.defaults.Set(accessToken, "")
}

// SetTokens sets the process-wide default token pair.
func (c *Client) SetTokens(accessToken, refreshToken string) {
	c.defaults.Set(accessToken, refreshToken)
}

// ClearToken removes the process-wide default credentials.
func (c *Client) ClearToken() {
	c.defaults.Clear()
}

// DefaultCredentials returns the process-wide credentials holder.
func (c *Client) DefaultCredentials() *Credentials {
	return c.defaults
}

// RegisterRefreshHandlers enables 401 recovery. Until called, 401 responses
// are returned to the caller unchanged.
func (c *Client) RegisterRefreshHandlers(h RefreshHandlers) error {
	if h.RefreshToken == nil {
		return fmt.Errorf("[apiclient RegisterRefreshHandlers] RefreshToken accessor is required")
	}
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = &h
	return nil
}

func (c *Client) refreshHandlers() *RefreshHandlers {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return c.handlers
}

func (c *Client) credentialsFor(ctx context.Context) *Credentials {
	if creds, ok := CredentialsFrom(ctx); ok {
		return creds
	}
	return c.defaults
}

// Do sends req. A 401 response is retried at most once, after the access
// token has been refreshed; every other failure is returned unchanged.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	creds := c.credentialsFor(ctx)
	tok, _ := creds.Token()

	resp, err := c.send(ctx, req, tok)
	if err == nil || !errors.Is(err, errors.ErrUnauthorized) {
		return resp, err
	}

	// A 401 on a request sent without a token is a business answer, such as
	// a wrong OTP, not an expired session.
	handlers := c.refreshHandlers()
	if handlers == nil || tok == nil {
		return nil, err
	}

	accessToken, rerr := c.refresher.Refresh(ctx, creds, tok.AccessToken, handlers)
	if rerr != nil {
		return nil, rerr
	}

	// The replay is final: a second 401 is returned as is.
	return c.send(ctx, req, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// PostMultipart uploads form fields and files.
func (c *Client) PostMultipart(ctx context.Context, path string, form *Multipart) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Multipart: form})
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// decorate attaches the headers every outbound request carries.
func (c *Client) decorate(r *http.Request, tok *oauth2.Token, contentType string) {
	r.Header.Set("Accept", contentTypeJSON)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		r.Header.Set(APIKeyHeader, c.apiKey)
	}
	if c.bypassTunnel {
		r.Header.Set(TunnelBypassHeader, "true")
	}
	if tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(r)
	}
}

// send performs a single attempt without any retry logic.
func (c *Client) send(ctx context.Context, req *Request, tok *oauth2.Token) (*Response, error) {
	op := fmt.Sprintf("[apiclient %s %s]", req.Method, req.Path)
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "apiclient."+req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	body, contentType, err := req.encode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req.Path, req.Query), body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s creating HTTP request: %w", op, err)
	}
	c.decorate(httpReq, tok, contentType)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observeRequest(req.Method, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("api request failed")
		return nil, fmt.Errorf("%s HTTP request failed: %w", op, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	elapsed := time.Since(start)
	c.metrics.observeRequest(req.Method, httpResp.StatusCode, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", httpResp.StatusCode))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s reading response: %w", op, err)
	}

	log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("api request")

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		apiErr := newAPIError(req.Method, req.Path, httpResp.StatusCode, raw)
		span.SetStatus(codes.Error, apiErr.Message())
		return nil, apiErr
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: raw}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &resp.Envelope); err != nil {
			return nil, fmt.Errorf("%s %w: %v", op, errors.ErrInvalidPayload, err)
		}
	}
	return resp, nil
}
