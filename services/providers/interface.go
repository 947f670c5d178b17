// Package providers contains the LLM provider clients. Every provider exposes
// the same minimal chat contract to the pipeline; the router decides which one
// a tenant gets.
package providers

import (
	"context"
	"fmt"
)

// ChatClient is the invocation target the pipeline uses for completions.
type ChatClient interface {
	// Name returns the provider name (e.g. "ollama", "openai", "anthropic").
	Name() string

	// Complete runs one system+user exchange and returns the answer text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// ProviderError represents an error from a provider call.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is a retryable provider error.
func IsRetryable(err error) bool {
	if provErr, ok := err.(*ProviderError); ok {
		return provErr.Retryable
	}
	return false
}
