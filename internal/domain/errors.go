// Package domain provides the shared error taxonomy for the AI
// orchestration pipeline.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration and policy errors. These short-circuit before any
// external call is made.
var (
	// ErrProviderNotConfigured indicates the requested provider is unknown.
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrModelNotSupported indicates the provider does not serve the model.
	ErrModelNotSupported = errors.New("model not supported by provider")

	// ErrPricingUnavailable indicates no pricing entry exists for the model.
	// Non-fatal: callers may proceed without an estimate.
	ErrPricingUnavailable = errors.New("pricing unavailable")

	// ErrBudgetExceeded indicates the estimated cost would exceed a hard
	// budget. Rejected before dispatch; no provider call is made.
	ErrBudgetExceeded = errors.New("budget exceeded")
)

// Provider failure kinds. Surfaced without internal retry.
var (
	ErrProviderAuth        = errors.New("provider authentication failed")
	ErrProviderRateLimited = errors.New("provider rate limited")
	ErrProviderProtocol    = errors.New("provider returned malformed payload")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ValidationError batches all request violations into a single error
// instead of failing on the first.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Violations, "; ")
}

// ProviderError wraps a provider failure with its origin and an opaque
// diagnostic payload. The diagnostic never contains credentials.
type ProviderError struct {
	Provider   string
	Kind       error // one of the ErrProvider* sentinels
	Diagnostic string
}

func (e *ProviderError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Provider, e.Kind, e.Diagnostic)
}

// Unwrap exposes the sentinel kind so errors.Is works across layers.
func (e *ProviderError) Unwrap() error { return e.Kind }

// ToolExecutionError reports a failed tool invocation. Non-fatal: the
// tool middleware folds it into a tool-result message instead of
// aborting the call.
type ToolExecutionError struct {
	Tool   string
	Reason string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %s", e.Tool, e.Reason)
}

// RetrievalFailure reports a failed RAG retrieval. Non-fatal: the RAG
// middleware logs it and forwards the request unmodified.
type RetrievalFailure struct {
	Reason string
	Err    error
}

func (e *RetrievalFailure) Error() string {
	return "retrieval failed: " + e.Reason
}

func (e *RetrievalFailure) Unwrap() error { return e.Err }
