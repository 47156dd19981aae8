package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when the consumer aborts a run.
	ErrCancelled = errors.New("research cancelled")
	// ErrStalled is returned by the consumer watchdog when it finalized a run.
	ErrStalled = errors.New("research stalled")
)

// ValidationError rejects a request before orchestration starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// ProviderErrorKind classifies search backend failures.
type ProviderErrorKind string

const (
	ProviderRateLimited ProviderErrorKind = "rate-limited"
	ProviderInvalidKey  ProviderErrorKind = "invalid-key"
	ProviderNetwork     ProviderErrorKind = "network"
	ProviderUnknown     ProviderErrorKind = "unknown"
)

// ProviderError is a typed search backend failure.
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("search provider %s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (http %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth one quick retry.
func (e *ProviderError) Transient() bool {
	return e.Kind == ProviderNetwork
}

// ProcessingError records an isolated per-source failure.
type ProcessingError struct {
	URL   string
	Stage ProcessingStage
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("process %s (%s): %v", e.URL, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// SynthesisError wraps a language-model failure.
type SynthesisError struct {
	// Partial is true when some content was streamed before the failure.
	Partial bool
	Err     error
}

func (e *SynthesisError) Error() string {
	if e.Partial {
		return fmt.Sprintf("synthesis interrupted: %v", e.Err)
	}
	return fmt.Sprintf("synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ProviderErrorKindOf extracts the provider error kind, or "" when err is not
// a provider failure.
func ProviderErrorKindOf(err error) ProviderErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
