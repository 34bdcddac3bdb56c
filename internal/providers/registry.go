// Package providers holds the static registry of external sign-in providers
// as presented to end users (display name, logo). The registry is built once
// from config and never mutated, so concurrent reads need no locking.
package providers

import "strings"

// Provider is the presentation config for one external provider.
type Provider struct {
	AuthenticationType string
	DisplayName        string
	LogoURL            string
}

// Registry is an immutable lookup table keyed by authentication type.
type Registry struct {
	byType map[string]Provider
}

// NewRegistry builds a registry. Later duplicates win, matching YAML override
// semantics in config files.
func NewRegistry(list []Provider) *Registry {
	byType := make(map[string]Provider, len(list))
	for _, p := range list {
		byType[strings.ToLower(p.AuthenticationType)] = p
	}
	return &Registry{byType: byType}
}

// Lookup finds a provider by authentication type, case-insensitively.
func (r *Registry) Lookup(authenticationType string) (Provider, bool) {
	p, ok := r.byType[strings.ToLower(authenticationType)]
	return p, ok
}
