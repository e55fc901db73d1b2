package gen

import (
	"sort"
	"strings"
)

// modelEntry lists the adapters able to serve one model and which of them
// is used when the caller does not ask for a specific provider.
type modelEntry struct {
	defaultName string
	providers   map[string]Adapter
}

// Registry maps (capability, model) pairs to provider adapters. It is
// populated once at startup and read-only afterwards, so lookups take no
// locks and resolution is fully deterministic.
type Registry struct {
	caps map[Capability]map[string]*modelEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[Capability]map[string]*modelEntry)}
}

// Register adds a model under a capability. The default provider must be
// one of the listed providers. Registration order does not matter; the
// tables are fixed before the registry is handed to an Engine.
func (r *Registry) Register(cap Capability, model, defaultProvider string, providers map[string]Adapter) *Registry {
	models := r.caps[cap]
	if models == nil {
		models = make(map[string]*modelEntry)
		r.caps[cap] = models
	}
	models[model] = &modelEntry{defaultName: defaultProvider, providers: providers}
	return r
}

// Resolve returns the adapter for a model, honoring an optional provider
// override. Unknown models and unavailable overrides fail with
// configuration errors naming what is available.
func (r *Registry) Resolve(cap Capability, model, override string) (Adapter, string, error) {
	entry, ok := r.caps[cap][model]
	if !ok {
		return nil, "", Errorf(ErrConfiguration, "unknown %s model %q (available: %s)",
			cap, model, strings.Join(r.Models(cap), ", "))
	}

	name := override
	if name == "" {
		name = entry.defaultName
	}
	adapter, ok := entry.providers[name]
	if !ok {
		return nil, "", Errorf(ErrConfiguration, "provider %q not available for %q (available: %s)",
			name, model, strings.Join(sortedKeys(entry.providers), ", "))
	}
	return adapter, name, nil
}

// DefaultProvider returns the provider used for a model when no override
// is given, or "" for an unknown model.
func (r *Registry) DefaultProvider(cap Capability, model string) string {
	if entry, ok := r.caps[cap][model]; ok {
		return entry.defaultName
	}
	return ""
}

// Models returns the sorted model names registered under a capability.
func (r *Registry) Models(cap Capability) []string {
	models := r.caps[cap]
	out := make([]string, 0, len(models))
	for m := range models {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Providers returns the sorted provider names able to serve a model.
func (r *Registry) Providers(cap Capability, model string) []string {
	entry, ok := r.caps[cap][model]
	if !ok {
		return nil
	}
	return sortedKeys(entry.providers)
}

// Adapter looks an adapter up by provider name across all capabilities.
func (r *Registry) Adapter(name string) (Adapter, bool) {
	for _, models := range r.caps {
		for _, entry := range models {
			if a, ok := entry.providers[name]; ok {
				return a, true
			}
		}
	}
	return nil, false
}

func sortedKeys(m map[string]Adapter) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
