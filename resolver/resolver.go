// Package resolver turns textual type identifiers into node types plus the
// option values they should be instantiated with. The built-in resolver
// serves the process-wide type catalog; the conffile resolver layers
// declarative aliases from a configuration file on top of it.
package resolver

import (
	"fmt"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/registry"
)

// Resolver maps a type identifier to a node type and the "name=value"
// option vector the identifier carries. A failed lookup reports not-found
// so chained resolvers can fall through.
type Resolver interface {
	Name() string
	Resolve(id string) (flow.NodeType, []string, error)
}

type registryResolver struct {
	name string
	reg  *registry.Registry
}

// Builtins resolves identifiers against the process-wide built-in catalog.
func Builtins() Resolver {
	return &registryResolver{name: "builtins", reg: registry.Builtins()}
}

// FromRegistry resolves identifiers against a specific catalog.
func FromRegistry(name string, reg *registry.Registry) Resolver {
	return &registryResolver{name: name, reg: reg}
}

func (r *registryResolver) Name() string { return r.name }

func (r *registryResolver) Resolve(id string) (flow.NodeType, []string, error) {
	typ, ok := r.reg.Get(id)
	if !ok {
		return nil, nil, errors.WrapInvalid(errors.ErrNotFound, "Resolver", "Resolve",
			fmt.Sprintf("type %q in %s catalog", id, r.name))
	}
	return typ, nil, nil
}

type chainResolver struct {
	resolvers []Resolver
}

// Chain tries each resolver in order, falling through on not-found.
func Chain(resolvers ...Resolver) Resolver {
	return &chainResolver{resolvers: resolvers}
}

func (c *chainResolver) Name() string { return "chain" }

func (c *chainResolver) Resolve(id string) (flow.NodeType, []string, error) {
	for _, r := range c.resolvers {
		typ, strv, err := r.Resolve(id)
		if err == nil {
			return typ, strv, nil
		}
		if !errors.IsNotFound(err) {
			return nil, nil, err
		}
	}
	return nil, nil, errors.WrapInvalid(errors.ErrNotFound, "Resolver", "Resolve",
		fmt.Sprintf("type %q in any chained resolver", id))
}

// defaultResolver is consulted by the builder when none is configured.
var defaultResolver = Builtins()

// Default returns the process-wide resolver.
func Default() Resolver {
	return defaultResolver
}

// SetDefault replaces the process-wide resolver. Passing nil restores the
// built-in one.
func SetDefault(r Resolver) {
	if r == nil {
		r = Builtins()
	}
	defaultResolver = r
}
