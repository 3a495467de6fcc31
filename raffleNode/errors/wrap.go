package errors

import (
	"errors"
	"net/http"
	"strings"
)

// WrapRaffleError wraps an error as a RaffleError if it isn't already one.
// An existing RaffleError keeps its code and gains the message as context.
func WrapRaffleError(err error, code ErrorCode, message string) *RaffleError {
	if err == nil {
		return nil
	}

	var re *RaffleError
	if errors.As(err, &re) {
		re.WithContext("wrapped_message", message)
		return re
	}
	return New(code, message, err)
}

// IsCode reports whether err is a RaffleError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var re *RaffleError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// HTTPStatus returns the response status for err. Unclassified errors are 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var re *RaffleError
	if errors.As(err, &re) {
		return re.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text safe to return to API callers.
// Internal causes are never exposed.
func PublicMessage(err error) string {
	var re *RaffleError
	if errors.As(err, &re) {
		if re.Code == ErrCodeInternal || re.Code == ErrCodeDatabase {
			return "internal server error"
		}
		return re.Message
	}
	return "internal server error"
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var re *RaffleError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"rate limit",
		"eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// GetSeverity returns the severity of an error
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	var re *RaffleError
	if errors.As(err, &re) {
		return re.Severity
	}
	return SeverityHigh
}
