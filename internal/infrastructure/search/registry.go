package search

import (
	"fmt"
	"sort"

	"WebResearcher/internal/config"
	"WebResearcher/internal/ports"
)

// Provider names used in configuration and credentials.
const (
	ProviderTavily     = "tavily"
	ProviderExa        = "exa"
	ProviderBrave      = "brave"
	ProviderDuckDuckGo = "duckduckgo"
)

// Constructor builds a provider bound to one API key.
type Constructor func(apiKey string) ports.SearchProvider

type entry struct {
	keyless bool
	build   Constructor
}

// Registry keeps a mapping from provider names to their constructors.
type Registry struct {
	entries map[string]entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds or replaces a provider constructor. Keyless providers are
// built even when no credential is known for them.
func (r *Registry) Register(name string, keyless bool, build Constructor) {
	if r.entries == nil {
		r.entries = map[string]entry{}
	}
	r.entries[name] = entry{keyless: keyless, build: build}
}

// Resolve builds the named provider for apiKey or returns an error if it is
// absent or lacks a required key.
func (r *Registry) Resolve(name, apiKey string) (ports.SearchProvider, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("search provider %s is not registered", name)
	}
	if !e.keyless && apiKey == "" {
		return nil, fmt.Errorf("search provider %s has no api key", name)
	}
	return e.build(apiKey), nil
}

// Names lists registered providers in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterDefaults registers the bundled adapters configured by cfg.
func RegisterDefaults(r *Registry, cfg config.SearchConfig, opts Options) {
	r.Register(ProviderTavily, false, func(key string) ports.SearchProvider {
		return NewTavily(key, cfg.Tavily, opts)
	})
	r.Register(ProviderExa, false, func(key string) ports.SearchProvider {
		return NewExa(key, cfg.Exa, opts)
	})
	r.Register(ProviderBrave, false, func(key string) ports.SearchProvider {
		return NewBrave(key, cfg.Brave, opts)
	})
	if cfg.DuckDuckGo.Enabled == nil || *cfg.DuckDuckGo.Enabled {
		r.Register(ProviderDuckDuckGo, true, func(string) ports.SearchProvider {
			return NewDuckDuckGo(cfg.DuckDuckGo, opts)
		})
	}
}

// KeysFromConfig collects the configured provider keys.
func KeysFromConfig(cfg config.SearchConfig) map[string]string {
	return map[string]string{
		ProviderTavily: cfg.Tavily.APIKey,
		ProviderExa:    cfg.Exa.APIKey,
		ProviderBrave:  cfg.Brave.APIKey,
	}
}
