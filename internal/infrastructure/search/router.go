package search

import (
	"log/slog"
	"slices"
	"strings"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

// DefaultOrder is used when neither a primary nor fallbacks are configured.
var DefaultOrder = []string{ProviderTavily, ProviderExa, ProviderBrave, ProviderDuckDuckGo}

// Router builds the per-request provider chain from the registry: the primary
// provider followed by the fallbacks, with providers lacking keys skipped.
type Router struct {
	registry *Registry
	order    []string
	keys     domain.Credentials
	logger   *slog.Logger
}

var _ ports.ProviderChain = (*Router)(nil)

// NewRouter wires the registry with the configured order and keys.
func NewRouter(reg *Registry, primary string, fallbacks []string, keys map[string]string, log *slog.Logger) *Router {
	return &Router{
		registry: reg,
		order:    providerOrder(primary, fallbacks),
		keys:     domain.Credentials(keys).Merge(nil),
		logger:   log,
	}
}

// Order returns the configured provider order.
func (r *Router) Order() []string {
	return slices.Clone(r.order)
}

// Chain resolves the providers to try, with creds overriding configured keys.
func (r *Router) Chain(creds domain.Credentials) []ports.SearchProvider {
	if r.registry == nil {
		return nil
	}
	keys := r.keys.Merge(creds)

	chain := make([]ports.SearchProvider, 0, len(r.order))
	for _, name := range r.order {
		provider, err := r.registry.Resolve(name, keys.Key(name))
		if err != nil {
			r.debug("skip provider", "provider", name, "reason", err)
			continue
		}
		chain = append(chain, provider)
	}
	r.debug("provider chain", "providers", len(chain))
	return chain
}

// providerOrder lists the primary first, then the fallbacks, lowercased and
// without repeats. "auto" defers to the fallbacks alone.
func providerOrder(primary string, fallbacks []string) []string {
	var order []string
	for _, name := range append([]string{primary}, fallbacks...) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || name == "auto" || slices.Contains(order, name) {
			continue
		}
		order = append(order, name)
	}
	if order == nil {
		return slices.Clone(DefaultOrder)
	}
	return order
}

func (r *Router) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
