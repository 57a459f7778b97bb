// Package errors provides error classification and wrapping shared by the
// gateway's components. Errors are classified as transient, invalid or
// fatal so callers can decide between retrying, rejecting the request and
// shutting down.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360/callstreams/pkg/retry"
)

// ErrorClass drives how a caller reacts to a failure
type ErrorClass int

const (
	// ErrorTransient errors may succeed on retry (network drops, timeouts)
	ErrorTransient ErrorClass = iota
	// ErrorInvalid errors come from bad input and will fail the same way
	// every time
	ErrorInvalid
	// ErrorFatal errors mean the component cannot continue
	ErrorFatal
)

func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors for conditions components test with errors.Is
var (
	// Component lifecycle
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrAlreadyStopped = errors.New("component already stopped")
	ErrShuttingDown   = errors.New("component is shutting down")

	// Manager connection
	ErrNetworkUnreachable   = errors.New("manager socket unreachable")
	ErrAuthenticationFailed = errors.New("manager authentication failed")
	ErrConnectionLost       = errors.New("connection lost")
	ErrConnectionTimeout    = errors.New("connection timeout")
	ErrNoConnection         = errors.New("no connection available")

	// Actions
	ErrActionTimeout  = errors.New("action response timeout")
	ErrActionRejected = errors.New("action rejected by manager")

	// Frames and data
	ErrMalformedFrame = errors.New("malformed manager frame")
	ErrInvalidData    = errors.New("invalid data format")
	ErrParsingFailed  = errors.New("parsing failed")

	// Configuration
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingConfig  = errors.New("missing required configuration")
	ErrConfigNotFound = errors.New("configuration not found")

	// Resources
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrRateLimited       = errors.New("rate limited")

	// Circuit breaker and retry
	ErrCircuitOpen        = errors.New("circuit breaker open")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// Sentinels with a known class; classification checks these before
// falling back to message inspection
var (
	transientSentinels = []error{
		ErrConnectionTimeout, ErrConnectionLost, ErrNetworkUnreachable,
		ErrActionTimeout, ErrRateLimited, ErrCircuitOpen,
		context.DeadlineExceeded, context.Canceled,
	}
	fatalSentinels = []error{
		ErrAuthenticationFailed, ErrInvalidConfig, ErrMissingConfig,
		ErrResourceExhausted,
	}
	invalidSentinels = []error{
		ErrInvalidData, ErrMalformedFrame, ErrActionRejected, ErrParsingFailed,
	}
)

// Message substrings used when neither an explicit class nor a sentinel
// matches. Coarse on purpose: an unrecognized error that mentions a
// timeout is worth one retry.
var (
	transientPatterns = []string{
		"timeout", "connection", "network", "temporary",
		"unavailable", "busy", "retry",
	}
	fatalPatterns = []string{
		"fatal", "panic", "authentication",
		"invalid config", "missing config", "out of memory",
	}
)

// ClassifiedError carries an explicit class plus the component and
// operation that produced the error
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// explicitClass reports the class a ClassifiedError in the chain assigned
func explicitClass(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

func matchesSentinel(err error, sentinels []error) bool {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func matchesPattern(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorTransient
	}
	return matchesSentinel(err, transientSentinels) || matchesPattern(err, transientPatterns)
}

// IsFatal reports whether err should stop the component
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorFatal
	}
	return matchesSentinel(err, fatalSentinels) || matchesPattern(err, fatalPatterns)
}

// IsInvalid reports whether err came from bad input. There is no message
// fallback here; only an explicit class or a known sentinel marks input
// as invalid.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorInvalid
	}
	return matchesSentinel(err, invalidSentinels)
}

// Classify returns the class of err. Unrecognized errors classify as
// transient so they get a retry before anyone gives up on them.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	switch {
	case IsTransient(err):
		return ErrorTransient
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}

// newClassified is the constructor behind the Wrap* helpers
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap adds component context in the form
// "component.method: action failed: <cause>"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapClassified(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(class, wrapped, component, method, wrapped.Error())
}

// WrapTransient wraps err with context and marks it transient
func WrapTransient(err error, component, method, action string) error {
	return wrapClassified(ErrorTransient, err, component, method, action)
}

// WrapFatal wraps err with context and marks it fatal
func WrapFatal(err error, component, method, action string) error {
	return wrapClassified(ErrorFatal, err, component, method, action)
}

// WrapInvalid wraps err with context and marks it invalid
func WrapInvalid(err error, component, method, action string) error {
	return wrapClassified(ErrorInvalid, err, component, method, action)
}

// RetryConfig describes a retry policy in terms of additional attempts
// beyond the first
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []error // nil means any transient error retries
}

// DefaultRetryConfig returns the policy most components start from
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ShouldRetry reports whether attempt (zero-based) should be retried
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries {
		return false
	}

	if !IsTransient(err) {
		return false
	}

	if len(rc.RetryableErrors) > 0 {
		return matchesSentinel(err, rc.RetryableErrors)
	}

	return true
}

// ToRetryConfig converts to the retry package's Config. MaxRetries counts
// additional attempts, Config.MaxAttempts counts the first try too.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
	}
}

// BackoffDelay returns the delay before the given retry attempt,
// multiplying from InitialDelay and capping at MaxDelay
func (rc RetryConfig) BackoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}

	delay := rc.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * rc.BackoffFactor)
		if delay > rc.MaxDelay {
			return rc.MaxDelay
		}
	}

	return delay
}
