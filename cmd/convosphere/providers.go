package main

import (
	"time"

	"github.com/ConvoSphere/convosphere/internal/adapter/openaicompat"
	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
	"github.com/ConvoSphere/convosphere/internal/resilience"
)

// buildProviders turns the provider config into registry descriptors,
// one OpenAI-compatible client per provider, each behind its own
// circuit breaker.
func buildProviders(cfg *config.Config) []provider.Descriptor {
	descs := make([]provider.Descriptor, 0, len(cfg.Providers))

	for name, pc := range cfg.Providers {
		timeout := pc.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}

		client := openaicompat.NewClient(name, pc.BaseURL, pc.APIKey, timeout)
		client.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

		models := make(map[string]provider.ModelPricing, len(pc.Models))
		for model, m := range pc.Models {
			models[model] = provider.ModelPricing{
				InputPerMTok:  m.InputPerMTok,
				OutputPerMTok: m.OutputPerMTok,
			}
		}

		descs = append(descs, provider.Descriptor{
			Name:    name,
			Enabled: pc.Enabled,
			Capabilities: provider.Capabilities{
				Streaming:   pc.Streaming,
				ToolCalling: pc.ToolCalling,
				Embeddings:  pc.Embeddings,
			},
			Models: models,
			Handle: client,
		})
	}

	return descs
}
