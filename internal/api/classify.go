package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kcalhq/plansync/internal/types"
)

// classifyStatus maps a non-200 HTTP outcome to a PlanError kind.
//
// The 400 split is the ugly part: the service distinguishes "profile not
// onboarded yet" from "bad input" only by message text, so the substring
// sniff lives here and nowhere else. If the service ever grows a
// structured error code, delete the sniff and switch on apiError.Code.
func classifyStatus(status int, message, retryAfter string) *types.PlanError {
	pe := &types.PlanError{StatusCode: status, Message: message}

	switch {
	case status == http.StatusBadRequest:
		if strings.Contains(strings.ToLower(message), "onboarding") {
			pe.Kind = types.ErrKindOnboardingIncomplete
		} else {
			pe.Kind = types.ErrKindInvalidInput
		}
	case status == http.StatusNotFound:
		pe.Kind = types.ErrKindNotFound
	case status == http.StatusTooManyRequests:
		pe.Kind = types.ErrKindRateLimited
		pe.RetryAfter = parseRetryAfter(retryAfter)
	case status == http.StatusServiceUnavailable:
		pe.Kind = types.ErrKindMaintenance
	case status >= 500 && status <= 599:
		pe.Kind = types.ErrKindServerError
	default:
		// Unexpected status. Treat as a server bug rather than inventing
		// a new kind.
		pe.Kind = types.ErrKindServerError
	}

	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}

// parseRetryAfter handles the delta-seconds form of Retry-After. The
// HTTP-date form is not parsed: no observed deployment sends it, and a
// nil RetryAfter is an explicitly supported outcome.
func parseRetryAfter(header string) *time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}

// classifyTransportError maps errors from http.Client.Do: timeouts become
// Timeout, everything else that never reached the server becomes
// NoConnection.
func classifyTransportError(err error) *types.PlanError {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapPlanError(types.ErrKindTimeout, err, "request deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return types.WrapPlanError(types.ErrKindTimeout, err, "request cancelled")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.WrapPlanError(types.ErrKindTimeout, err, "request timed out")
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return types.WrapPlanError(types.ErrKindNoConnection, err, "compute service unreachable")
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return types.WrapPlanError(types.ErrKindNoConnection, err, "compute service hostname not resolvable")
	}
	return types.WrapPlanError(types.ErrKindNoConnection, err, "network error")
}
