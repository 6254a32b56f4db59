package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidationErrorJoinsViolations(t *testing.T) {
	err := &ValidationError{Violations: []string{"messages must not be empty", "model is required"}}
	msg := err.Error()
	if !strings.Contains(msg, "messages must not be empty") || !strings.Contains(msg, "model is required") {
		t.Errorf("message = %q", msg)
	}
}

func TestProviderErrorUnwrapsToKind(t *testing.T) {
	err := &ProviderError{Provider: "alpha", Kind: ErrProviderRateLimited, Diagnostic: "retry later"}

	if !errors.Is(err, ErrProviderRateLimited) {
		t.Error("expected errors.Is to match the sentinel kind")
	}
	if errors.Is(err, ErrProviderAuth) {
		t.Error("must not match other sentinels")
	}
	if !strings.Contains(err.Error(), "alpha") || !strings.Contains(err.Error(), "retry later") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestRetrievalFailureWrapsCause(t *testing.T) {
	cause := errors.New("index offline")
	err := &RetrievalFailure{Reason: "search failed", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to match")
	}
}
