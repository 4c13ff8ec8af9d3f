package resolver

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/options"
)

// conffileDoc is the on-disk shape of a type alias file:
//
//	nodetypes:
//	  - name: heartbeat
//	    type: timer
//	    options:
//	      interval: 500
type conffileDoc struct {
	NodeTypes []conffileEntry `yaml:"nodetypes"`
}

type conffileEntry struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options"`
}

// Conffile resolves identifiers declared in a configuration file to a base
// type plus preset options. The base type identifier is resolved through
// the next resolver, so aliases may stack.
type Conffile struct {
	source  string
	next    Resolver
	entries map[string]conffileEntry
}

// NewConffile loads a YAML alias file. A nil next resolver falls back to
// the built-in catalog.
func NewConffile(path string, next Resolver) (*Conffile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "Resolver", "NewConffile", "alias file read")
	}
	return NewConffileFromBytes(path, data, next)
}

// NewConffileFromBytes parses alias declarations from memory.
func NewConffileFromBytes(source string, data []byte, next Resolver) (*Conffile, error) {
	if next == nil {
		next = Builtins()
	}

	var doc conffileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(err, "Resolver", "NewConffile", "alias file parse")
	}

	entries := make(map[string]conffileEntry, len(doc.NodeTypes))
	for _, entry := range doc.NodeTypes {
		if entry.Name == "" || entry.Type == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Resolver", "NewConffile",
				fmt.Sprintf("alias in %q needs both name and type", source))
		}
		if _, dup := entries[entry.Name]; dup {
			return nil, errors.WrapInvalid(errors.ErrAlreadyExists, "Resolver", "NewConffile",
				fmt.Sprintf("alias %q declared twice", entry.Name))
		}
		entries[entry.Name] = entry
	}

	return &Conffile{source: source, next: next, entries: entries}, nil
}

// Name implements Resolver.
func (c *Conffile) Name() string { return "conffile:" + c.source }

// Resolve implements Resolver. Alias options are validated against the base
// type's option schema and serialized on top of whatever option vector the
// base resolution produced.
func (c *Conffile) Resolve(id string) (flow.NodeType, []string, error) {
	entry, ok := c.entries[id]
	if !ok {
		return nil, nil, errors.WrapInvalid(errors.ErrNotFound, "Resolver", "Resolve",
			fmt.Sprintf("alias %q in %s", id, c.source))
	}

	typ, strv, err := c.next.Resolve(entry.Type)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Resolver", "Resolve", "alias %q base type %q",
			id, entry.Type)
	}

	if len(entry.Options) == 0 {
		return typ, strv, nil
	}

	desc := typ.Description()
	if desc == nil || desc.Options == nil {
		return nil, nil, errors.WrapInvalid(errors.ErrInvalidOption, "Resolver", "Resolve",
			fmt.Sprintf("alias %q sets options but type %q has none", id, entry.Type))
	}

	raw, err := json.Marshal(entry.Options)
	if err != nil {
		return nil, nil, errors.WrapInvalid(err, "Resolver", "Resolve", "alias option encoding")
	}
	preset, err := options.StrvFromJSON(desc.Options, raw)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Resolver", "Resolve", "alias %q options", id)
	}

	return typ, append(strv, preset...), nil
}
