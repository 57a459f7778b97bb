// Package errors provides standardized error handling patterns for CallStreams components.
//
// # Overview
//
// The errors package implements a three-class error classification system for the
// manager gateway: Transient (temporary, retryable), Invalid (bad input,
// non-retryable), and Fatal (unrecoverable, stop processing).
//
// This classification lets components make informed decisions about retries,
// reconnects, and failure reporting without hardcoded error string matching.
//
// # Error Classification
//
// Errors are classified based on their type or content:
//
//   - Transient: network timeouts, lost connections, action response timeouts (retry recommended)
//   - Invalid: malformed frames, rejected actions, validation failures (do not retry)
//   - Fatal: authentication failures, bad configuration, resource exhaustion (stop processing)
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for common conditions:
//
//	if !loggedIn {
//	    return errors.ErrNoConnection
//	}
//
// Wrap errors with context for debugging:
//
//	if err := client.SendAction(ctx, action); err != nil {
//	    return errors.Wrap(err, "Client", "SendAction", "write frame")
//	}
//
// Check classification for retry logic:
//
//	if err := client.Connect(ctx); err != nil {
//	    if errors.IsFatal(err) {
//	        // Bad credentials - reconnecting will not help
//	        return err
//	    }
//	    // Transient - schedule reconnect with backoff
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The generic Wrap() function preserves the original error's classification.
//
// # Standard Error Variables
//
// Pre-defined error variables cover the common gateway conditions:
//
//   - Component lifecycle: ErrAlreadyStarted, ErrNotStarted, ErrAlreadyStopped
//   - Manager connection: ErrNetworkUnreachable, ErrAuthenticationFailed, ErrConnectionLost
//   - Actions: ErrActionTimeout, ErrActionRejected
//   - Frames and data: ErrMalformedFrame, ErrInvalidData, ErrParsingFailed
//   - Configuration: ErrInvalidConfig, ErrMissingConfig
//
// Use these variables instead of creating custom error messages for consistency.
//
// # Retry Configuration
//
// The package includes a retry configuration that converts to the pkg/retry
// framework's Config via ToRetryConfig():
//
//	config := errors.DefaultRetryConfig()
//	result := retry.Do(ctx, config.ToRetryConfig(), operation)
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
