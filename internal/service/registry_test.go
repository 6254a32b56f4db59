package service

import (
	"errors"
	"testing"

	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
)

func testDescriptors() []provider.Descriptor {
	return []provider.Descriptor{
		{
			Name:    "zeta",
			Enabled: true,
			Models: map[string]provider.ModelPricing{
				"gpt-test": {InputPerMTok: 1.0, OutputPerMTok: 2.0},
			},
			Handle: &fakeHandle{script: []provider.Result{{Content: "from zeta"}}},
		},
		{
			Name:    "alpha",
			Enabled: true,
			Models: map[string]provider.ModelPricing{
				"gpt-test": {InputPerMTok: 3.0, OutputPerMTok: 6.0},
				"embed-sm": {},
			},
			Handle: &fakeHandle{script: []provider.Result{{Content: "from alpha"}}},
		},
		{
			Name:    "disabled",
			Enabled: false,
			Models: map[string]provider.ModelPricing{
				"gpt-test": {InputPerMTok: 0.1, OutputPerMTok: 0.1},
			},
			Handle: &fakeHandle{},
		},
	}
}

func TestResolveExplicitProvider(t *testing.T) {
	r := NewProviderRegistry(testDescriptors()...)

	_, name, err := r.Resolve("zeta", "gpt-test")
	if err != nil {
		t.Fatal(err)
	}
	if name != "zeta" {
		t.Errorf("resolved %q, want zeta", name)
	}
}

func TestResolveDefaultsToFirstEnabledLexically(t *testing.T) {
	r := NewProviderRegistry(testDescriptors()...)

	_, name, err := r.Resolve("", "gpt-test")
	if err != nil {
		t.Fatal(err)
	}
	if name != "alpha" {
		t.Errorf("resolved %q, want alpha (lexically first enabled)", name)
	}
}

func TestResolveErrors(t *testing.T) {
	r := NewProviderRegistry(testDescriptors()...)

	tests := []struct {
		name     string
		provider string
		model    string
		want     error
	}{
		{"unknown provider", "nope", "gpt-test", domain.ErrProviderNotConfigured},
		{"disabled provider", "disabled", "gpt-test", domain.ErrProviderNotConfigured},
		{"unknown model", "alpha", "nope", domain.ErrModelNotSupported},
		{"no provider serves model", "", "nope", domain.ErrProviderNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.Resolve(tt.provider, tt.model)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEstimateCostIsPure(t *testing.T) {
	r := NewProviderRegistry(testDescriptors()...)

	first, err := r.EstimateCost("alpha", "gpt-test", 1000, 500)
	if err != nil {
		t.Fatal(err)
	}
	want := 1000*3.0/1e6 + 500*6.0/1e6
	if first != want {
		t.Errorf("estimate = %v, want %v", first, want)
	}
	for i := 0; i < 10; i++ {
		if got, _ := r.EstimateCost("alpha", "gpt-test", 1000, 500); got != first {
			t.Fatalf("estimate changed between calls: %v != %v", got, first)
		}
	}
}

func TestEstimateCostUnpriced(t *testing.T) {
	r := NewProviderRegistry(testDescriptors()...)

	_, err := r.EstimateCost("alpha", "embed-sm", 100, 0)
	if !errors.Is(err, domain.ErrPricingUnavailable) {
		t.Errorf("err = %v, want ErrPricingUnavailable", err)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewProviderRegistry()
	d := testDescriptors()[0]

	r.Register(d)
	r.Register(d)

	status := r.Status()
	if len(status) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(status))
	}
	if !status["zeta"].Enabled || status["zeta"].ModelCount != 1 {
		t.Errorf("unexpected status: %+v", status["zeta"])
	}
}

func TestRefreshSwapsDescriptorSet(t *testing.T) {
	r := NewProviderRegistry(testDescriptors()...)

	r.Refresh([]provider.Descriptor{{
		Name:    "only",
		Enabled: true,
		Models:  map[string]provider.ModelPricing{"m": {InputPerMTok: 1}},
	}})

	status := r.Status()
	if len(status) != 1 {
		t.Fatalf("expected 1 provider after refresh, got %d", len(status))
	}
	if _, _, err := r.Resolve("alpha", "gpt-test"); !errors.Is(err, domain.ErrProviderNotConfigured) {
		t.Errorf("old provider should be gone, err = %v", err)
	}
}
