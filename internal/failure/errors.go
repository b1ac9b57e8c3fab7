package failure

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when a provider answers 2xx with no usable content.
var ErrEmptyResponse = errors.New("provider returned empty response")

// StatusError is a non-2xx HTTP response from a provider endpoint.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, Truncate(e.Body, 200))
}

// Transient reports whether the status is worth retrying against the same endpoint.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// ParseError is returned when no strategy could extract JSON from model output.
type ParseError struct {
	Reason string
	Sample string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failure: %s (sample: %q)", e.Reason, e.Sample)
}

// SchemaError lists every issue found while validating a candidate prediction.
type SchemaError struct {
	Issues []string
}

func (e *SchemaError) Error() string {
	return "schema_validation_failed: " + strings.Join(e.Issues, "; ")
}

// FallbackExhaustedError is returned when both the primary and its fallback failed.
type FallbackExhaustedError struct {
	PrimaryID   string
	FallbackID  string
	PrimaryErr  error
	FallbackErr error
}

func (e *FallbackExhaustedError) Error() string {
	return fmt.Sprintf("fallback also failed: primary %s: %v; fallback %s: %v",
		e.PrimaryID, e.PrimaryErr, e.FallbackID, e.FallbackErr)
}

// Unwrap exposes both underlying errors to errors.Is / errors.As.
func (e *FallbackExhaustedError) Unwrap() []error {
	return []error{e.PrimaryErr, e.FallbackErr}
}

// ConfigError describes an invalid provider or fallback configuration.
// It is fatal at startup.
type ConfigError struct {
	Problems []string
	ValidIDs []string
}

func (e *ConfigError) Error() string {
	ids := append([]string(nil), e.ValidIDs...)
	sort.Strings(ids)
	return fmt.Sprintf("invalid fallback configuration: %s (valid model ids: %s)",
		strings.Join(e.Problems, "; "), strings.Join(ids, ", "))
}

// Truncate shortens s to at most n runes, marking the cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
