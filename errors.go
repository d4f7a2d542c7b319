package imagepipe

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrInvalidAPIKey indicates the API key is missing, malformed, or unauthorized.
	ErrInvalidAPIKey = errors.New("imagepipe: invalid API key")

	// ErrRateLimited indicates the upstream's rate limit has been exceeded.
	ErrRateLimited = errors.New("imagepipe: rate limit exceeded")

	// ErrUpstreamUnavailable indicates the upstream generation API is down or unreachable.
	ErrUpstreamUnavailable = errors.New("imagepipe: upstream unavailable")

	// ErrNotImage indicates a payload decoded cleanly but carries no recognizable
	// image signature.
	ErrNotImage = errors.New("imagepipe: payload is not image data")

	// ErrStreamClosed indicates the stream assembler has reached its terminal
	// state and accepts no further input.
	ErrStreamClosed = errors.New("imagepipe: stream assembler is terminal")
)

// DecodeError indicates a candidate field could not be decoded into an image.
// The pipeline recovers from this locally by forwarding the original text
// unchanged; content is never dropped.
type DecodeError struct {
	Path   string // Field path of the candidate
	Reason string // Human-readable explanation
	Err    error  // Wrapped error (base64 error or ErrNotImage)
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode failed for field '%s': %s (%v)", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode failed for field '%s': %s", e.Path, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SchemaMismatchError indicates a substitution targeted a path that does not
// exist in the original response unit. This is an internal consistency fault
// between scan and merge, not bad input, and is surfaced as a hard failure.
type SchemaMismatchError struct {
	Path string // The substitution target path
	Err  error  // Wrapped error from the merge layer, if any
}

func (e *SchemaMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("substitution target '%s' does not match response structure (%v)", e.Path, e.Err)
	}
	return fmt.Sprintf("substitution target '%s' does not exist in response unit", e.Path)
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Err
}

// IncompleteStreamError indicates a field never reached a decodable state
// before stream termination. The partial content is discarded and a visible
// placeholder is forwarded in its place rather than corrupt binary data.
type IncompleteStreamError struct {
	Path     string // Field path that never completed
	Buffered int    // Bytes of partial content discarded
}

func (e *IncompleteStreamError) Error() string {
	return fmt.Sprintf("field '%s' terminated with %d bytes of incomplete data", e.Path, e.Buffered)
}

// ProviderError represents an error from the upstream generation API.
// Upstream network/auth failures are not handled by the pipeline; they
// propagate unchanged to the caller.
type ProviderError struct {
	Provider   string // The upstream provider name
	StatusCode int    // HTTP status code (if applicable)
	Message    string // Error message from the upstream
	Retryable  bool   // Whether this error is potentially retryable by the caller
	Err        error  // Wrapped sentinel error (ErrRateLimited, ErrUpstreamUnavailable, etc.)
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream '%s' error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream '%s' error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsDecodeError checks if an error is a recoverable payload decode failure.
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// IsSchemaMismatch checks if an error is an internal scan/merge consistency fault.
func IsSchemaMismatch(err error) bool {
	var mismatchErr *SchemaMismatchError
	return errors.As(err, &mismatchErr)
}

// IsIncompleteStream checks if an error indicates a field that never completed
// before stream termination.
func IsIncompleteStream(err error) bool {
	var incompleteErr *IncompleteStreamError
	return errors.As(err, &incompleteErr)
}

// IsRetryable checks if an upstream error is potentially retryable by the
// caller. Pipeline errors are never retryable: decode is deterministic, so
// retrying it cannot change the outcome.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	if errors.Is(err, ErrUpstreamUnavailable) {
		return true
	}

	return false
}

// IsAuthError checks if an error is related to upstream authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidAPIKey) {
		return true
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		// HTTP 401/403 indicate auth issues
		return providerErr.StatusCode == 401 || providerErr.StatusCode == 403
	}

	return false
}
