// internal/common/errors/errors.go
// Package errors provides standardized error values for the supervisor core.
// Nothing here is ever fatal to a query: every failure mode degrades into a
// stub specialist result or a low-confidence synthesized response.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors: recovered locally via stub fallback.
	ErrCodeAgentServiceUnconfigured ErrorCode = "AGENT_SERVICE_UNCONFIGURED"

	// Transport errors: recovered locally via stub fallback.
	ErrCodeAgentTimeout          ErrorCode = "AGENT_TIMEOUT"
	ErrCodeAgentInvocationFailed ErrorCode = "AGENT_INVOCATION_FAILED"

	// Protocol errors: non-2xx status or malformed/unsuccessful body.
	ErrCodeAgentResponseInvalid ErrorCode = "AGENT_RESPONSE_INVALID"

	// Synthesis-service errors: recovered by joining outputs locally.
	ErrCodeSynthesisFailed  ErrorCode = "SYNTHESIS_FAILED"
	ErrCodeSynthesisTimeout ErrorCode = "SYNTHESIS_TIMEOUT"

	// Not an error: all specialists stubbed or zero routed.
	ErrCodeNoResults ErrorCode = "NO_RESULTS"
)

// StandardError is a structured application error carried inside stub
// results for diagnostics.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Error includes Details verbatim so that a stub result's error field
// preserves the original transport failure text for diagnostics.
func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewAgentServiceUnconfiguredError signals a missing agent base URL. The
// caller skips the network call entirely and goes straight to stub fallback.
func NewAgentServiceUnconfiguredError(agentName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentServiceUnconfigured,
		Message:   fmt.Sprintf("Agent '%s' service URL not configured", agentName),
		Details:   "AGENT_SERVICE_URL is empty; skipping invocation",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentTimeoutError creates a timeout error for one agent call.
func NewAgentTimeoutError(agentName string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentTimeout,
		Message:   fmt.Sprintf("Agent '%s' call exceeded %s timeout", agentName, timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentInvocationFailedError wraps a transport-level failure. The
// underlying error text is preserved verbatim in Details for diagnostics.
func NewAgentInvocationFailedError(agentName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentInvocationFailed,
		Message:   fmt.Sprintf("Agent '%s' invocation failed", agentName),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentResponseInvalidError wraps a protocol-level failure: non-2xx
// status, success=false, or missing required result fields.
func NewAgentResponseInvalidError(agentName, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentResponseInvalid,
		Message:   fmt.Sprintf("Agent '%s' returned an invalid response", agentName),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSynthesisFailedError wraps a text-synthesis service failure.
func NewSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSynthesisFailed,
		Message:   "Text synthesis service error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// GetErrorCategory returns the coarse category of an error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "UNCONFIGURED"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "INVOCATION"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "RESPONSE"):
		return "PROTOCOL"
	case strings.Contains(codeStr, "SYNTHESIS"):
		return "SYNTHESIS"
	default:
		return "OTHER"
	}
}
