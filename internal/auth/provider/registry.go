package provider

import (
	"fmt"
	"sort"
)

// Registry holds all configured OAuth services and allows
// lookup by service name. It performs no auth logic itself.
type Registry struct {
	clients map[string]OAuthClient
}

// NewRegistry registers the given OAuth clients by name.
// Names must be unique; a later client replaces an earlier one.
func NewRegistry(list ...OAuthClient) *Registry {
	m := make(map[string]OAuthClient)
	for _, c := range list {
		m[c.Name()] = c
	}
	return &Registry{clients: m}
}

// Get returns the OAuth client by name or an error if not registered.
func (r *Registry) Get(name string) (OAuthClient, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: oauth service %q", ErrUnknown, name)
	}
	return c, nil
}

// Names lists registered services in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
