package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a plan sync failure. Kinds, not exception types:
// the UI decides retry affordances off the kind, never off message text.
type ErrorKind string

const (
	ErrKindNotFound             ErrorKind = "not_found"
	ErrKindOnboardingIncomplete ErrorKind = "onboarding_incomplete"
	ErrKindInvalidInput         ErrorKind = "invalid_input"
	ErrKindNoConnection         ErrorKind = "no_connection"
	ErrKindTimeout              ErrorKind = "timeout"
	ErrKindServerError          ErrorKind = "server_error"
	ErrKindRateLimited          ErrorKind = "rate_limited"
	ErrKindMaintenance          ErrorKind = "maintenance"
	ErrKindInvalidResponse      ErrorKind = "invalid_response"
	ErrKindStaleData            ErrorKind = "stale_data"
)

// IsValid checks if the error kind is a known value
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrKindNotFound, ErrKindOnboardingIncomplete, ErrKindInvalidInput,
		ErrKindNoConnection, ErrKindTimeout, ErrKindServerError,
		ErrKindRateLimited, ErrKindMaintenance, ErrKindInvalidResponse,
		ErrKindStaleData:
		return true
	}
	return false
}

// PlanError is the domain error surfaced by the sync layer.
type PlanError struct {
	Kind       ErrorKind
	StatusCode int            // HTTP status when the failure came off the wire, else 0
	RetryAfter *time.Duration // populated from Retry-After on 429 when the server sent one
	Message    string
	Cause      error
}

func (e *PlanError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	return msg
}

func (e *PlanError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether retrying the same call without any external
// state change could plausibly succeed.
func (e *PlanError) Retryable() bool {
	switch e.Kind {
	case ErrKindNoConnection, ErrKindTimeout, ErrKindServerError,
		ErrKindRateLimited, ErrKindMaintenance:
		return true
	}
	return false
}

// Guidance returns user-facing hint text for non-retryable failures,
// where a bare retry button would fail identically.
func (e *PlanError) Guidance() string {
	switch e.Kind {
	case ErrKindOnboardingIncomplete:
		return "Finish onboarding before generating a plan."
	case ErrKindInvalidInput:
		return "Your profile has invalid values. Review your inputs and try again."
	case ErrKindNotFound:
		return "No plan exists for this account yet."
	case ErrKindInvalidResponse:
		return "The service returned an unusable plan. This is a service bug; report it."
	}
	return ""
}

// NewPlanError constructs a PlanError with a formatted message.
func NewPlanError(kind ErrorKind, format string, args ...interface{}) *PlanError {
	return &PlanError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapPlanError wraps an underlying cause with a kind.
func WrapPlanError(kind ErrorKind, cause error, format string, args ...interface{}) *PlanError {
	return &PlanError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AsPlanError extracts a *PlanError from err, walking the wrap chain.
// Unclassified errors are wrapped as ErrKindServerError so callers always
// get a tagged kind.
func AsPlanError(err error) *PlanError {
	if err == nil {
		return nil
	}
	var pe *PlanError
	if errors.As(err, &pe) {
		return pe
	}
	return &PlanError{Kind: ErrKindServerError, Message: err.Error(), Cause: err}
}
