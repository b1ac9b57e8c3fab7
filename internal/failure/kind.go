// Package failure classifies provider and pipeline errors and decides which of
// them count against a model's health.
package failure

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Kind is the classified shape of a failed prediction attempt.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindRateLimited       Kind = "rate_limited"
	KindServerError       Kind = "server_error"
	KindAuthError         Kind = "auth_error"
	KindParseFailure      Kind = "parse_failure"
	KindEmptyResponse     Kind = "empty_response"
	KindSchemaViolation   Kind = "schema_violation"
	KindFallbackExhausted Kind = "fallback_exhausted"
	KindConfiguration     Kind = "configuration_error"
	KindPersistence       Kind = "persistence_error"
	KindUnknown           Kind = "unknown"
)

// ParseKind converts a stored string back into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindTimeout, KindRateLimited, KindServerError, KindAuthError,
		KindParseFailure, KindEmptyResponse, KindSchemaViolation,
		KindFallbackExhausted, KindConfiguration, KindPersistence, KindUnknown:
		return Kind(s), true
	default:
		return "", false
	}
}

// IsModelSpecific reports whether a failure of this kind says something about the
// model itself and should count towards auto-disable. Timeouts and rate limits are
// infrastructure noise already absorbed by the provider's retry budget. A server
// error only gets here after that budget is spent, so it counts as repeated.
func IsModelSpecific(k Kind) bool {
	switch k {
	case KindParseFailure, KindEmptyResponse, KindAuthError, KindSchemaViolation,
		KindServerError, KindFallbackExhausted:
		return true
	default:
		return false
	}
}

// Classify maps an error to its Kind. Typed errors are inspected first; untyped
// errors fall back to message heuristics.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var fe *FallbackExhaustedError
	if errors.As(err, &fe) {
		return KindFallbackExhausted
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return KindConfiguration
	}
	var se *SchemaError
	if errors.As(err, &se) {
		return KindSchemaViolation
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return KindParseFailure
	}
	if errors.Is(err, ErrEmptyResponse) {
		return KindEmptyResponse
	}
	var st *StatusError
	if errors.As(err, &st) {
		return classifyStatus(st.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}

	return classifyMessage(err.Error())
}

func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusPaymentRequired:
		return KindAuthError
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}

// classifyMessage is the last resort for errors that reach us as plain strings,
// e.g. from a vendor SDK or a wrapped transport error.
func classifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "rate limit", "rate_limit", "too many requests", "429"):
		return KindRateLimited
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return KindTimeout
	case containsAny(lower, "unauthorized", "invalid api key", "authentication", "forbidden"):
		return KindAuthError
	case containsAny(lower, "internal server error", "bad gateway", "service unavailable", "overloaded"):
		return KindServerError
	case containsAny(lower, "empty response", "no content"):
		return KindEmptyResponse
	default:
		return KindUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
