package provider

import (
	"fmt"
	"sort"
	"strings"
)

type providerBinder interface {
	ForProvider(name string) Handler
}

// Registry maps provider names to handlers. It is immutable once built.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry registers handlers by name. Duplicate names are rejected.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	reg := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		name := strings.ToLower(handler.Name())
		if _, exists := reg.handlers[name]; exists {
			return nil, fmt.Errorf("provider: duplicate handler %q", name)
		}
		reg.handlers[name] = handler
	}
	return reg, nil
}

// Resolve returns the handler for name. Generic providers without a
// dedicated handler are served by the generic handler.
func (r *Registry) Resolve(name string) (Handler, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if r == nil {
		return nil, notSupported(name)
	}
	if handler, ok := r.handlers[name]; ok {
		return handler, nil
	}
	info, ok := Lookup(name)
	if !ok || info.Type != Generic {
		return nil, notSupported(name)
	}
	generic, ok := r.handlers[Generic].(providerBinder)
	if !ok {
		return nil, notSupported(name)
	}
	return generic.ForProvider(name), nil
}

// ResolveAddress resolves the handler for an e-mail address.
func (r *Registry) ResolveAddress(email string) (Handler, error) {
	return r.Resolve(ProviderFromAddress(email))
}

// Names lists the registered handler names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
