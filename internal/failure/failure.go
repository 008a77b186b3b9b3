// Package failure holds the error taxonomy shared by every stage of a run.
//
// NetworkError and RateLimitError are transient and retried by the retry
// policy. ParseError skips the page or record. ConfigError aborts before
// any request is made.
package failure

import (
	"fmt"

	"github.com/pkg/errors"
)

type NetworkError struct {
	URL   string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for %s: %v", e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// StatusError is a NetworkError flavour for unexpected HTTP statuses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP %d from %s", e.StatusCode, e.URL)
}

type ParseError struct {
	URL     string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error for %s: %s", e.URL, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }

type RateLimitError struct {
	URL    string
	Reason string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: %s", e.URL, e.Reason)
}

type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %v", msg, e.Cause)
	}
	return "config error: " + msg
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	var rl *RateLimitError
	if errors.As(err, &ne) || errors.As(err, &rl) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == 408
	}
	return false
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
