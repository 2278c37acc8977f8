package provider

import (
	"fmt"
	"log/slog"
	"sync"

	"dealbot/internal/config"
	"dealbot/internal/domain"
)

// GeneratorConstructor is a function that creates a generator from a config entry.
type GeneratorConstructor func(pc config.ProviderConfig, logger *slog.Logger) domain.Generator

// Factory creates and caches generative-text providers from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	constructors map[string]GeneratorConstructor
	cache        map[string]domain.Generator
	mu           sync.RWMutex
}

// NewFactory creates a provider factory with the built-in constructors registered.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	f := &Factory{
		cfg:          cfg,
		logger:       logger,
		constructors: make(map[string]GeneratorConstructor),
		cache:        make(map[string]domain.Generator),
	}
	f.registerDefaults()
	return f
}

func (f *Factory) registerDefaults() {
	f.constructors["gemini"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Generator {
		return NewGemini(GeminiConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Logger: logger})
	}
	f.constructors["openai"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Generator {
		return NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Logger: logger})
	}
}

// Get returns the generator with the given name, or the default if name is empty.
// Created generators are cached so the same instance is reused across calls.
func (f *Factory) Get(name string) (domain.Generator, error) {
	if name == "" {
		name = f.cfg.General.DefaultProvider
	}

	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Re-check under write lock (another goroutine may have created it).
	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}

	ctor, found := f.constructors[name]

	var g domain.Generator
	if found {
		g = ctor(pc, f.logger)
	} else if pc.APIBase != "" {
		// Fallback: treat unknown providers as OpenAI-compatible.
		g = NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Logger: f.logger})
	} else {
		return nil, fmt.Errorf("provider %s: no constructor registered and no API base configured", name)
	}

	f.cache[name] = g
	return g, nil
}

// DefaultGenerator returns the configured default provider.
func (f *Factory) DefaultGenerator() (domain.Generator, error) {
	return f.Get("")
}
