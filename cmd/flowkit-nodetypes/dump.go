package main

import (
	"encoding/json"
	"log/slog"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/options"
	"github.com/c360/flowkit/registry"
)

// typeEntry is one element of the dumped array. Types without a
// description still appear, identified by their registered id.
type typeEntry struct {
	ID          string               `json:"id"`
	Description *flow.Description    `json:"description,omitempty"`
	Options     *options.Description `json:"options,omitempty"`
}

// loadCatalog returns the built-in catalog with the given plugin modules
// loaded into it.
func loadCatalog(plugins []string) (*registry.Registry, error) {
	catalog := registry.Builtins()
	for _, path := range plugins {
		if err := catalog.LoadPlugin(path); err != nil {
			return nil, errors.Wrapf(err, "NodeTypes", "loadCatalog", "plugin %q", path)
		}
		slog.Info("plugin loaded", "path", path)
	}
	return catalog, nil
}

// dumpTypes renders every type in the catalog as JSON, in name order.
func dumpTypes(catalog *registry.Registry, pretty bool) ([]byte, error) {
	entries := make([]typeEntry, 0)
	catalog.ForEach(func(name string, typ flow.NodeType) bool {
		entry := typeEntry{ID: name, Description: typ.Description()}
		if entry.Description != nil {
			entry.Options = entry.Description.Options
		}
		entries = append(entries, entry)
		return true
	})

	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return nil, errors.Wrap(err, "NodeTypes", "dumpTypes", "description encoding")
	}
	return data, nil
}
