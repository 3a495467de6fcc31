package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeValidation indicates a malformed or out-of-range request
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates a missing raffle, entry or payout
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeUnauthorized indicates a missing, stale or invalid request signature
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeForbidden indicates a valid signer without the required role
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// ErrCodeConflict indicates a state conflict (wrong status, sold out, replay)
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeDatabase indicates database operation errors
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeRPC indicates Solana RPC errors
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeNetwork indicates network-related errors
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeTransfer indicates a failed or unconfirmed on-chain transfer
	ErrCodeTransfer ErrorCode = "TRANSFER"

	// ErrCodeTimeout indicates timeout errors
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeRateLimited indicates a caller exceeded its request budget
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// RaffleError is the classified error returned across component boundaries.
// The API layer maps Code to an HTTP status and Message to the response body.
type RaffleError struct {
	Code     ErrorCode      `json:"code"`
	Message  string         `json:"message"`
	RaffleID string         `json:"raffle_id,omitempty"`
	Severity Severity       `json:"severity"`
	Cause    error          `json:"-"`
	Context  map[string]any `json:"context,omitempty"`
}

// New creates a RaffleError without a raffle reference.
func New(code ErrorCode, message string, cause error) *RaffleError {
	return &RaffleError{
		Code:     code,
		Message:  message,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]any),
	}
}

// Newf creates a RaffleError with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...any) *RaffleError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// ForRaffle creates a RaffleError bound to a raffle id.
func ForRaffle(code ErrorCode, raffleID, message string, cause error) *RaffleError {
	e := New(code, message, cause)
	e.RaffleID = raffleID
	return e
}

// Error implements the error interface
func (e *RaffleError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.RaffleID != "" {
		return fmt.Sprintf("[%s:%s] %s", e.RaffleID, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *RaffleError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *RaffleError) WithContext(key string, value any) *RaffleError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is retryable
func (e *RaffleError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout:
		return true
	case ErrCodeDatabase:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

// HTTPStatus maps the error code onto the status code the API responds with.
func (e *RaffleError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeRPC, ErrCodeNetwork, ErrCodeTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal, ErrCodeTransfer:
		return SeverityCritical
	case ErrCodeDatabase, ErrCodeConfig:
		return SeverityHigh
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeConflict, ErrCodeUnauthorized, ErrCodeForbidden, ErrCodeRateLimited:
		return SeverityLow
	default:
		return SeverityInfo
	}
}
