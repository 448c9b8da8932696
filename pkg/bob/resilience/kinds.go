// Package resilience provides error handling for the agent's failure-prone
// boundaries, principally the model call.
//
// The package implements a layered approach:
//   - Classification: sort errors into coarse kinds for appropriate handling
//   - Retry: bounded exponential backoff for transient kinds
//   - Degradation: a coarse circuit breaker that narrows the agent's
//     feature surface under repeated failure
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is the coarse classification of an error.
type Kind string

// Error kinds. Classification is best-effort pattern matching, not an
// exhaustive taxonomy.
const (
	KindAPI        Kind = "api_error"
	KindRateLimit  Kind = "rate_limit"
	KindValidation Kind = "validation_error"
	KindNetwork    Kind = "network_error"
	KindTimeout    Kind = "timeout_error"
	KindUnknown    Kind = "unknown_error"
)

// APIError represents a provider API failure with an HTTP status code.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("API %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API %d: %s", e.StatusCode, e.Message)
}

// ValidationError indicates malformed input or state.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Classify determines the kind of an error.
//
// Typed errors are checked first (APIError status codes, validation and
// JSON errors, context deadline). Everything else falls back to substring
// matching on the error text, mirroring how provider SDK errors describe
// themselves.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return KindRateLimit
		}
		return KindAPI
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}

	var jsonErr *json.SyntaxError
	if errors.As(err, &jsonErr) {
		return KindValidation
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	text := strings.ToLower(err.Error())

	switch {
	case strings.Contains(text, "rate") && strings.Contains(text, "limit"),
		strings.Contains(text, "429"),
		strings.Contains(text, "too many requests"):
		return KindRateLimit
	case strings.Contains(text, "api"), strings.Contains(text, "anthropic"):
		return KindAPI
	case strings.Contains(text, "timeout"), strings.Contains(text, "timed out"),
		strings.Contains(text, "deadline"):
		return KindTimeout
	case strings.Contains(text, "connection"), strings.Contains(text, "network"),
		strings.Contains(text, "unreachable"), strings.Contains(text, "refused"):
		return KindNetwork
	case strings.Contains(text, "validation"), strings.Contains(text, "invalid"):
		return KindValidation
	}

	return KindUnknown
}
