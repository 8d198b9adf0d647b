package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-waste-portal/internal/errors"
)

// Meta is the status block every remote API response carries.
type Meta struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Envelope is the remote API response shape: { meta, data? }.
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is a successful (2xx) remote API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Envelope   Envelope
}

// DecodeData unmarshals the envelope's data member into T.
// A missing data member yields the zero value of T.
func DecodeData[T any](resp *Response) (T, error) {
	var result T
	if resp == nil || len(resp.Envelope.Data) == 0 || string(resp.Envelope.Data) == "null" {
		return result, nil
	}
	if err := json.Unmarshal(resp.Envelope.Data, &result); err != nil {
		return result, fmt.Errorf("%w: unmarshaling data: %v", errors.ErrInvalidPayload, err)
	}
	return result, nil
}

// APIError is returned for every non-2xx response. Business and validation
// failures reach callers unchanged; only 401s are recovered by the client.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Meta       Meta
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message())
}

// Message returns the remote API's message, falling back to the HTTP status text.
func (e *APIError) Message() string {
	if e.Meta.Message != "" {
		return e.Meta.Message
	}
	return http.StatusText(e.StatusCode)
}

// Is lets callers match 401 responses with errors.Is(err, errors.ErrUnauthorized).
func (e *APIError) Is(target error) bool {
	return target == errors.ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: status, Body: body}
	var env Envelope
	if json.Unmarshal(body, &env) == nil {
		apiErr.Meta = env.Meta
	}
	return apiErr
}

// StatusCode extracts the HTTP status of an *APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ErrorMessage returns the remote message of an *APIError in err's chain,
// or fallback when err carries none.
func ErrorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Meta.Message != "" {
		return apiErr.Meta.Message
	}
	return fallback
}
