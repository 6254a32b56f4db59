package service

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
)

// ProviderStatus is the last-known state of one configured provider.
// Reported without live probing.
type ProviderStatus struct {
	Enabled      bool                  `json:"enabled"`
	ModelCount   int                   `json:"model_count"`
	Capabilities provider.Capabilities `json:"capabilities"`
}

// ProviderRegistry owns the configured provider descriptors, resolves
// (provider, model) pairs to handles, and serves cost estimates from
// the pricing tables. Descriptors are immutable until Refresh.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]provider.Descriptor
}

// NewProviderRegistry creates a registry holding the given descriptors.
func NewProviderRegistry(descs ...provider.Descriptor) *ProviderRegistry {
	r := &ProviderRegistry{providers: make(map[string]provider.Descriptor)}
	for _, d := range descs {
		r.providers[d.Name] = d
	}
	return r
}

// Register adds or replaces a descriptor by provider name. Idempotent.
func (r *ProviderRegistry) Register(d provider.Descriptor) {
	r.mu.Lock()
	r.providers[d.Name] = d
	r.mu.Unlock()
}

// Refresh atomically swaps the full descriptor set.
func (r *ProviderRegistry) Refresh(descs []provider.Descriptor) {
	next := make(map[string]provider.Descriptor, len(descs))
	for _, d := range descs {
		next[d.Name] = d
	}
	r.mu.Lock()
	r.providers = next
	r.mu.Unlock()
}

// Resolve returns the handle serving (providerName, model). When
// providerName is empty the first enabled provider supporting the
// model wins, in lexical name order for determinism.
func (r *ProviderRegistry) Resolve(providerName, model string) (provider.Handle, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if providerName == "" {
		names := make([]string, 0, len(r.providers))
		for name := range r.providers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			d := r.providers[name]
			if !d.Enabled {
				continue
			}
			if _, ok := d.Models[model]; ok {
				return d.Handle, name, nil
			}
		}
		return nil, "", fmt.Errorf("no enabled provider serves model %q: %w", model, domain.ErrProviderNotConfigured)
	}

	d, ok := r.providers[providerName]
	if !ok || !d.Enabled {
		return nil, "", fmt.Errorf("provider %q: %w", providerName, domain.ErrProviderNotConfigured)
	}
	if _, ok := d.Models[model]; !ok {
		return nil, "", fmt.Errorf("provider %q, model %q: %w", providerName, model, domain.ErrModelNotSupported)
	}
	return d.Handle, providerName, nil
}

// EstimateCost computes the expected cost of a call from the pricing
// table. Pure: identical inputs yield identical outputs. Returns
// ErrPricingUnavailable (non-fatal) when no pricing entry exists.
func (r *ProviderRegistry) EstimateCost(providerName, model string, inTokens, expectedOutTokens int) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.providers[providerName]
	if !ok {
		return 0, fmt.Errorf("provider %q: %w", providerName, domain.ErrProviderNotConfigured)
	}
	pricing, ok := d.Models[model]
	if !ok || (pricing.InputPerMTok == 0 && pricing.OutputPerMTok == 0) {
		return 0, fmt.Errorf("provider %q, model %q: %w", providerName, model, domain.ErrPricingUnavailable)
	}

	return costFor(pricing, inTokens, expectedOutTokens), nil
}

// Status returns last-known enabled/model-count info per provider.
func (r *ProviderRegistry) Status() map[string]ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ProviderStatus, len(r.providers))
	for name, d := range r.providers {
		out[name] = ProviderStatus{
			Enabled:      d.Enabled,
			ModelCount:   len(d.Models),
			Capabilities: d.Capabilities,
		}
	}
	return out
}

// costFor prices a token count pair against a pricing entry.
func costFor(p provider.ModelPricing, inTokens, outTokens int) float64 {
	return float64(inTokens)*p.InputPerMTok/1e6 + float64(outTokens)*p.OutputPerMTok/1e6
}
