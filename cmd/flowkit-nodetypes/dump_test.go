package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/options"
	"github.com/c360/flowkit/registry"
)

type describedType struct {
	flow.TypeBase
}

func newDescribedType() *describedType {
	t := &describedType{}
	t.Desc = &flow.Description{
		Name:     "pulse",
		Category: "timer",
		PortsOut: []*flow.PortDescription{
			{Name: "OUT", DataType: "empty"},
		},
		Options: &options.Description{
			SubAPI: 1,
			Members: []options.MemberDescription{
				{Name: "interval", DataType: options.DataTypeInt, Default: 1000},
			},
		},
	}
	return t
}

type bareType struct {
	flow.TypeBase
}

func TestDumpTypes(t *testing.T) {
	catalog := registry.NewRegistry()
	require.NoError(t, catalog.Register("pulse", newDescribedType()))
	require.NoError(t, catalog.Register("bare", &bareType{}))

	data, err := dumpTypes(catalog, false)
	require.NoError(t, err)

	var entries []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)

	// Name order.
	var first, second string
	require.NoError(t, json.Unmarshal(entries[0]["id"], &first))
	require.NoError(t, json.Unmarshal(entries[1]["id"], &second))
	assert.Equal(t, "bare", first)
	assert.Equal(t, "pulse", second)

	_, hasDesc := entries[0]["description"]
	assert.False(t, hasDesc, "undescribed types dump id only")

	var desc struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		PortsOut []struct {
			Name     string `json:"name"`
			DataType string `json:"data_type"`
		} `json:"out_ports"`
	}
	require.NoError(t, json.Unmarshal(entries[1]["description"], &desc))
	assert.Equal(t, "pulse", desc.Name)
	assert.Equal(t, "timer", desc.Category)
	require.Len(t, desc.PortsOut, 1)
	assert.Equal(t, "OUT", desc.PortsOut[0].Name)

	var opts struct {
		Members []struct {
			Name     string  `json:"name"`
			DataType string  `json:"data_type"`
			Default  float64 `json:"default"`
		} `json:"members"`
	}
	require.NoError(t, json.Unmarshal(entries[1]["options"], &opts))
	require.Len(t, opts.Members, 1)
	assert.Equal(t, "interval", opts.Members[0].Name)
	assert.Equal(t, 1000.0, opts.Members[0].Default)
}

func TestDumpTypesPretty(t *testing.T) {
	catalog := registry.NewRegistry()
	require.NoError(t, catalog.Register("bare", &bareType{}))

	data, err := dumpTypes(catalog, true)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  ")
}
