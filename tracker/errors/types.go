package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeDecode indicates a malformed or incomplete event payload.
	// The event is dropped and logged; processing continues.
	ErrCodeDecode ErrorCode = "DECODE"

	// ErrCodeCorrelationMiss indicates an event that does not belong to the instance it was offered to
	ErrCodeCorrelationMiss ErrorCode = "CORRELATION_MISS"

	// ErrCodeNotFound indicates that an expected predecessor record is missing
	ErrCodeNotFound ErrorCode = "PERSISTENCE_NOT_FOUND"

	// ErrCodeTimeoutExhausted indicates recovery searches found nothing before the retry cap
	ErrCodeTimeoutExhausted ErrorCode = "TIMEOUT_EXHAUSTED"

	// ErrCodeAckFailure indicates the destination chain rejected a packet
	ErrCodeAckFailure ErrorCode = "ACK_FAILURE"

	// ErrCodeStorageUnavailable indicates the embedded store could not be reached
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeValidation indicates input validation errors
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNetwork indicates network-related errors
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeRPC indicates RPC-related errors
	ErrCodeRPC ErrorCode = "RPC"

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

// TrackerError is an error raised while tracking a transfer, tagged with the
// domain (evm, relay, primary, cosmos) it was raised for.
type TrackerError struct {
	Code     ErrorCode      `json:"code"`
	Message  string         `json:"message"`
	Domain   string         `json:"domain,omitempty"`
	Severity Severity       `json:"severity"`
	Cause    error          `json:"-"`
	Context  map[string]any `json:"context,omitempty"`
}

// NewTrackerError creates a new TrackerError
func NewTrackerError(code ErrorCode, domain, message string, cause error) *TrackerError {
	return &TrackerError{
		Code:     code,
		Message:  message,
		Domain:   domain,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]any),
	}
}

// Error implements the error interface
func (e *TrackerError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Domain != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Domain, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *TrackerError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *TrackerError) WithContext(key string, value any) *TrackerError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithSeverity overrides the default severity
func (e *TrackerError) WithSeverity(severity Severity) *TrackerError {
	e.Severity = severity
	return e
}

// IsRetryable returns true if the error is retryable
func (e *TrackerError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeStorageUnavailable:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the error must move the owning interpreter to failed.
func (e *TrackerError) IsFatal() bool {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeTimeoutExhausted, ErrCodeAckFailure, ErrCodeInternal:
		return true
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal, ErrCodeStorageUnavailable:
		return SeverityCritical
	case ErrCodeNotFound, ErrCodeTimeoutExhausted:
		return SeverityHigh
	case ErrCodeAckFailure, ErrCodeNetwork, ErrCodeRPC:
		return SeverityMedium
	case ErrCodeDecode, ErrCodeValidation, ErrCodeConfig:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Common error constructors

// NewDecodeError creates a decode error
func NewDecodeError(domain, message string, cause error) *TrackerError {
	return NewTrackerError(ErrCodeDecode, domain, message, cause)
}

// NewCorrelationMiss creates a correlation miss
func NewCorrelationMiss(domain, message string) *TrackerError {
	return NewTrackerError(ErrCodeCorrelationMiss, domain, message, nil)
}

// NewNotFoundError creates a persistence-not-found error
func NewNotFoundError(domain, message string) *TrackerError {
	return NewTrackerError(ErrCodeNotFound, domain, message, nil)
}

// NewTimeoutExhaustedError creates a timeout-exhausted error
func NewTimeoutExhaustedError(domain, message string) *TrackerError {
	return NewTrackerError(ErrCodeTimeoutExhausted, domain, message, nil)
}

// NewAckFailureError creates an acknowledgement failure
func NewAckFailureError(domain, message string) *TrackerError {
	return NewTrackerError(ErrCodeAckFailure, domain, message, nil)
}

// NewStorageUnavailableError creates a storage error
func NewStorageUnavailableError(message string, cause error) *TrackerError {
	return NewTrackerError(ErrCodeStorageUnavailable, "", message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(domain, message string) *TrackerError {
	return NewTrackerError(ErrCodeValidation, domain, message, nil)
}

// NewRPCError creates an RPC error
func NewRPCError(domain, message string, cause error) *TrackerError {
	return NewTrackerError(ErrCodeRPC, domain, message, cause)
}

// NewNetworkError creates a network error
func NewNetworkError(domain, message string, cause error) *TrackerError {
	return NewTrackerError(ErrCodeNetwork, domain, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string) *TrackerError {
	return NewTrackerError(ErrCodeConfig, "", message, nil)
}

// NewInternalError creates an internal error
func NewInternalError(domain, message string, cause error) *TrackerError {
	return NewTrackerError(ErrCodeInternal, domain, message, cause)
}
