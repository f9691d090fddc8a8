// Package swaperrors is the error taxonomy every public swap-core
// operation returns through, in the teacher's style of small typed error
// structs with an Error() method and exported fields for programmatic
// inspection (src/chainadapter/rpc/client.go's RPCError;
// src/chainadapter/provider/interface.go's ProviderError).
package swaperrors

import "fmt"

// UserError signals caller-side misuse: an invalid address, an amount
// outside an advertised range, a swap in the wrong state for the call
// requested. It is never retried and is always surfaced to the caller
// unchanged.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

func NewUserError(format string, args ...any) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// Bounds carries the {min, max} pair the protocol returns alongside an
// out-of-bounds response code (20003/20004).
type Bounds struct {
	Min string
	Max string
}

// RequestError wraps a non-2xx HTTP response or an unparseable body.
// HTTPCode is the transport status code; Bounds is populated only for
// out-of-bounds responses.
type RequestError struct {
	HTTPCode int
	Message  string
	Bounds   *Bounds
}

func (e *RequestError) Error() string {
	if e.Bounds != nil {
		return fmt.Sprintf("request error (http %d): %s [min=%s max=%s]", e.HTTPCode, e.Message, e.Bounds.Min, e.Bounds.Max)
	}
	return fmt.Sprintf("request error (http %d): %s", e.HTTPCode, e.Message)
}

// IsOutOfBounds reports whether this RequestError carries a {min, max} pair.
func (e *RequestError) IsOutOfBounds() bool { return e.Bounds != nil }

func NewRequestError(httpCode int, message string) *RequestError {
	return &RequestError{HTTPCode: httpCode, Message: message}
}

func NewOutOfBoundsError(httpCode int, message, min, max string) *RequestError {
	return &RequestError{HTTPCode: httpCode, Message: message, Bounds: &Bounds{Min: min, Max: max}}
}

// IntermediaryError signals that an LP's response violated a validation
// rule. The LP that produced it should be treated as untrusted for the
// remainder of the session by the caller.
type IntermediaryError struct {
	IntermediaryURL string
	Message         string
	Cause           error
}

func (e *IntermediaryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("intermediary %s: %s: %v", e.IntermediaryURL, e.Message, e.Cause)
	}
	return fmt.Sprintf("intermediary %s: %s", e.IntermediaryURL, e.Message)
}

func (e *IntermediaryError) Unwrap() error { return e.Cause }

func NewIntermediaryError(intermediaryURL, message string, cause error) *IntermediaryError {
	return &IntermediaryError{IntermediaryURL: intermediaryURL, Message: message, Cause: cause}
}

// NetworkError signals a transport failure. It is always retryable by
// the caller's retry policy.
type NetworkError struct {
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("network error: %s", e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

func NewNetworkError(message string, cause error) *NetworkError {
	return &NetworkError{Message: message, Cause: cause}
}

// AbortError signals that an operation was cancelled via an abort
// controller. Reason is the cause recorded on the controller, if any.
type AbortError struct {
	Reason error
}

func (e *AbortError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("aborted: %v", e.Reason)
	}
	return "aborted"
}

func (e *AbortError) Unwrap() error { return e.Reason }

func NewAbortError(reason error) *AbortError {
	return &AbortError{Reason: reason}
}

// SignatureVerificationError signals a cryptographic signature check
// failed. When raised on an LP-data path, the caller wraps it in an
// IntermediaryError before surfacing it.
type SignatureVerificationError struct {
	Message string
}

func (e *SignatureVerificationError) Error() string { return "signature verification failed: " + e.Message }

func NewSignatureVerificationError(format string, args ...any) *SignatureVerificationError {
	return &SignatureVerificationError{Message: fmt.Sprintf(format, args...)}
}

// PaymentAuthError signals an LP-reported terminal failure of a
// Lightning payment receive (FromBTCLN), carrying the protocol code and
// raw response data for diagnostics.
type PaymentAuthError struct {
	Code int
	Data map[string]any
}

func (e *PaymentAuthError) Error() string {
	return fmt.Sprintf("payment authorization failed: code=%d", e.Code)
}

func NewPaymentAuthError(code int, data map[string]any) *PaymentAuthError {
	return &PaymentAuthError{Code: code, Data: data}
}
