package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/domain/chat"
)

func testDefaults() config.Defaults {
	return config.Defaults{
		Provider:    "alpha",
		Model:       "gpt-test",
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

func userInput(content string) Input {
	return Input{Messages: []chat.Message{{Role: chat.RoleUser, Content: content}}}
}

func TestBuildAppliesDefaults(t *testing.T) {
	b := NewRequestBuilder(testDefaults())

	req, err := b.Build(userInput("hi"))
	if err != nil {
		t.Fatal(err)
	}

	if req.ID == "" {
		t.Error("expected a generated request id")
	}
	if req.Model != "gpt-test" || req.Provider != "alpha" {
		t.Errorf("model/provider = %s/%s", req.Model, req.Provider)
	}
	if req.Params.Temperature == nil || *req.Params.Temperature != 0.7 {
		t.Errorf("temperature = %v", req.Params.Temperature)
	}
	if req.Params.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d", req.Params.MaxTokens)
	}
}

func TestBuildKeepsExplicitValues(t *testing.T) {
	b := NewRequestBuilder(testDefaults())
	temp := 0.2
	topP := 0.9

	in := userInput("hi")
	in.Model = "other-model"
	in.Provider = "zeta"
	in.Temperature = &temp
	in.TopP = &topP
	in.MaxTokens = 64

	req, err := b.Build(in)
	if err != nil {
		t.Fatal(err)
	}
	if req.Model != "other-model" || req.Provider != "zeta" {
		t.Errorf("model/provider = %s/%s", req.Model, req.Provider)
	}
	if *req.Params.Temperature != 0.2 || *req.Params.TopP != 0.9 || req.Params.MaxTokens != 64 {
		t.Errorf("params = %+v", req.Params)
	}
}

func TestBuildBatchesAllViolations(t *testing.T) {
	b := NewRequestBuilder(config.Defaults{}) // no default model
	badTemp := 3.0
	badTopP := 0.0

	in := Input{
		Messages:    []chat.Message{{Role: "narrator", Content: "hi"}},
		Temperature: &badTemp,
		TopP:        &badTopP,
		MaxTokens:   -1,
	}

	_, err := b.Build(in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Violations) != 5 {
		t.Fatalf("expected 5 violations, got %d: %v", len(verr.Violations), verr.Violations)
	}
}

func TestBuildEmptyMessages(t *testing.T) {
	b := NewRequestBuilder(testDefaults())

	_, err := b.Build(Input{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, v := range verr.Violations {
		if strings.Contains(v, "messages") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a messages violation, got %v", verr.Violations)
	}
}

func TestBuildCopiesMessages(t *testing.T) {
	b := NewRequestBuilder(testDefaults())
	in := userInput("original")

	req, err := b.Build(in)
	if err != nil {
		t.Fatal(err)
	}

	in.Messages[0].Content = "mutated"
	if req.Messages[0].Content != "original" {
		t.Error("request must not alias caller message slice")
	}
}
