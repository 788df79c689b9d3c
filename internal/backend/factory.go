package backend

import (
	"fmt"
	"sort"
	"sync"

	"examsolver/internal/config"
	"examsolver/internal/port"
)

// ProviderFactory is a function that creates a ReasoningBackend from a provider config.
type ProviderFactory func(cfg *config.BackendProviderConfig) (port.ReasoningBackend, error)

// registry of backend provider factories, populated by init() in each provider package
// or explicitly via RegisterProvider.
var (
	providersMu sync.RWMutex
	providers   = map[string]ProviderFactory{}
)

// RegisterProvider registers a backend provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewBackend creates a ReasoningBackend from a provider config using the registered factory.
func NewBackend(cfg *config.BackendProviderConfig) (port.ReasoningBackend, error) {
	providersMu.RLock()
	factory, ok := providers[cfg.Provider]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// Build creates the configured backend chain: every configured provider,
// rate limited, behind a FallbackBackend when more than one is set.
func Build(cfg *config.BackendConfig) (port.ReasoningBackend, error) {
	provCfgs := cfg.Providers()
	if len(provCfgs) == 0 {
		return nil, fmt.Errorf("no reasoning backend configured")
	}

	limiter := NewLimiter(cfg.RatePerSec, cfg.Burst)
	var (
		backends []port.ReasoningBackend
		names    []string
	)
	for _, pc := range provCfgs {
		b, err := NewBackend(pc)
		if err != nil {
			return nil, fmt.Errorf("creating %s backend: %w", pc.Provider, err)
		}
		backends = append(backends, NewLimitedBackend(limiter, b))
		names = append(names, pc.Provider)
	}
	if len(backends) == 1 {
		return backends[0], nil
	}
	return NewFallbackBackend(backends, names), nil
}
