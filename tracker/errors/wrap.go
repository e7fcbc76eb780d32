package errors

import (
	"errors"
	"strings"
)

// WrapTrackerError wraps an error as a TrackerError if it isn't already one
func WrapTrackerError(err error, code ErrorCode, domain, message string) *TrackerError {
	if err == nil {
		return nil
	}

	var trackerErr *TrackerError
	if errors.As(err, &trackerErr) {
		trackerErr.WithContext("wrapped_message", message)
		if domain != "" && trackerErr.Domain == "" {
			trackerErr.Domain = domain
		}
		return trackerErr
	}

	return NewTrackerError(code, domain, message, err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsTrackerError checks if an error is a TrackerError with specific code
func IsTrackerError(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first TrackerError in the chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var trackerErr *TrackerError
	if errors.As(err, &trackerErr) {
		return trackerErr.Code
	}
	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var trackerErr *TrackerError
	if errors.As(err, &trackerErr) {
		return trackerErr.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"rate limit",
		"database is locked",
	}

	for _, pattern := range retryablePatterns {
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

	var trackerErr *TrackerError
	if errors.As(err, &trackerErr) {
		return trackerErr.Severity
	}
	return SeverityLow
}
