/**
 * @description
 * The gateway registry: a process-wide, read-only lookup from a provider name
 * to its adapter instance. Registration happens once at construction; there is
 * no runtime mutation, so concurrent lookups need no locking.
 *
 * @dependencies
 * - sort, strings: Standard Go libraries.
 */
package gateway

import (
	"sort"
	"strings"
)

// Registry maps provider names to adapters. Closed after construction.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry over the given adapters, keyed by each
// adapter's name. A later adapter with the same name wins, which only matters
// in tests that override a real adapter with a stub.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[strings.ToLower(a.Name())] = a
	}
	return &Registry{adapters: m}
}

// Get looks up an adapter by provider name, case-insensitively. The second
// return value reports whether the gateway is registered.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// Names returns the registered provider names in sorted order, for
// "unsupported gateway" error messages and the gateway listing endpoint.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
