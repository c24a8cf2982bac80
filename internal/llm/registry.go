package llm

import (
	"fmt"
	"sort"
	"sync"

	"hirevoice/interview/internal/config"
)

// defines a function that creates a new provider instance from explicit config
type ProviderFactory func(cfg config.LLMConfig) (Provider, error)

var (
	mu        sync.RWMutex
	providers = make(map[string]ProviderFactory)
)

// registers a provider factory with the given name
func RegisterProvider(name string, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()
	providers[name] = factory
}

// creates a new provider instance based on cfg.Provider
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	mu.RLock()
	factory, exists := providers[cfg.Provider]
	mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// RegisteredProviders lists registered provider names, sorted.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
