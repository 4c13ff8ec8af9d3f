// Package registry keeps the catalog of node types available for
// resolution by name: built-in types registered by node packages at
// startup and external types loaded from plugin modules.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
)

// Registry is a named catalog of node types. Safe for concurrent
// registration during startup; lookups after that are read-only.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]flow.NodeType
	plugins map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]flow.NodeType)}
}

// Register adds a node type under a unique name.
func (r *Registry) Register(name string, typ flow.NodeType) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Registry", "Register",
			"empty type name")
	}
	if err := flow.CheckTypeAPI(typ); err != nil {
		return errors.Wrapf(err, "Registry", "Register", "type %q check", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		return errors.WrapInvalid(errors.ErrAlreadyExists, "Registry", "Register",
			fmt.Sprintf("type %q registered twice", name))
	}
	r.types[name] = typ
	return nil
}

// Get returns the node type registered under name.
func (r *Registry) Get(name string) (flow.NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.types[name]
	return typ, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForEach visits every registered type in name order. Returning false from
// the callback stops the iteration.
func (r *Registry) ForEach(cb func(name string, typ flow.NodeType) bool) {
	for _, name := range r.Names() {
		typ, ok := r.Get(name)
		if !ok {
			continue
		}
		if !cb(name, typ) {
			return
		}
	}
}

// builtins is the process-wide catalog node packages register into from
// their init functions.
var builtins = NewRegistry()

// Builtins returns the process-wide built-in type catalog.
func Builtins() *Registry {
	return builtins
}

// Register adds a built-in node type to the process-wide catalog.
func Register(name string, typ flow.NodeType) error {
	return builtins.Register(name, typ)
}

// ForEachBuiltinType visits the built-in catalog in name order.
func ForEachBuiltinType(cb func(name string, typ flow.NodeType) bool) {
	builtins.ForEach(cb)
}
