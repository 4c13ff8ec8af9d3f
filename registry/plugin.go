package registry

import (
	"fmt"
	"plugin"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
)

// NodeTypesSymbol is the variable a plugin module must export: a
// map[string]flow.NodeType from resolvable names to their types.
const NodeTypesSymbol = "NodeTypes"

// LoadPlugin opens a compiled plugin module and registers every node type
// it exports. Loading a path that was already loaded into this registry is
// a no-op, matching the one-shot semantics of module initialization.
func (r *Registry) LoadPlugin(path string) error {
	r.mu.Lock()
	if _, done := r.plugins[path]; done {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	mod, err := plugin.Open(path)
	if err != nil {
		return errors.Wrapf(err, "Registry", "LoadPlugin", "open module %q", path)
	}

	sym, err := mod.Lookup(NodeTypesSymbol)
	if err != nil {
		return errors.WrapInvalid(err, "Registry", "LoadPlugin",
			fmt.Sprintf("module %q has no %s symbol", path, NodeTypesSymbol))
	}

	types, ok := sym.(*map[string]flow.NodeType)
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Registry", "LoadPlugin",
			fmt.Sprintf("module %q exports %s with the wrong type", path, NodeTypesSymbol))
	}

	for name, typ := range *types {
		if err := r.Register(name, typ); err != nil {
			return errors.Wrapf(err, "Registry", "LoadPlugin", "module %q type %q", path, name)
		}
	}

	r.mu.Lock()
	if r.plugins == nil {
		r.plugins = make(map[string]struct{})
	}
	r.plugins[path] = struct{}{}
	r.mu.Unlock()
	return nil
}
