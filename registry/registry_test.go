package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/registry"
)

type catalogType struct {
	flow.TypeBase
}

type wrongAPIType struct {
	flow.TypeBase
}

func (t *wrongAPIType) APIVersion() uint16 { return 0 }

func TestRegisterValidation(t *testing.T) {
	reg := registry.NewRegistry()

	err := reg.Register("", &catalogType{})
	assert.True(t, pkgerrors.IsInvalidArgument(err))

	err = reg.Register("bad", nil)
	assert.True(t, pkgerrors.IsInvalidArgument(err))

	err = reg.Register("bad", &wrongAPIType{})
	assert.True(t, pkgerrors.IsInvalidAPIVersion(err))

	require.NoError(t, reg.Register("good", &catalogType{}))
	err = reg.Register("good", &catalogType{})
	assert.True(t, pkgerrors.IsAlreadyExists(err))
}

func TestGetAndNames(t *testing.T) {
	reg := registry.NewRegistry()
	ta := &catalogType{}
	tb := &catalogType{}
	require.NoError(t, reg.Register("zeta", ta))
	require.NoError(t, reg.Register("alpha", tb))

	got, ok := reg.Get("zeta")
	require.True(t, ok)
	assert.Same(t, flow.NodeType(ta), got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
}

func TestForEachStops(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register("a", &catalogType{}))
	require.NoError(t, reg.Register("b", &catalogType{}))
	require.NoError(t, reg.Register("c", &catalogType{}))

	var visited []string
	reg.ForEach(func(name string, typ flow.NodeType) bool {
		visited = append(visited, name)
		return name != "b"
	})
	assert.Equal(t, []string{"a", "b"}, visited)
}

func TestBuiltinsCatalog(t *testing.T) {
	name := "registry-test-builtin"
	require.NoError(t, registry.Register(name, &catalogType{}))

	got, ok := registry.Builtins().Get(name)
	require.True(t, ok)
	assert.NotNil(t, got)

	found := false
	registry.ForEachBuiltinType(func(n string, typ flow.NodeType) bool {
		if n == name {
			found = true
			return false
		}
		return true
	})
	assert.True(t, found)
}

func TestLoadPluginMissingFile(t *testing.T) {
	reg := registry.NewRegistry()
	err := reg.LoadPlugin("/nonexistent/plugin.so")
	require.Error(t, err)
}
