package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadOnlyModeFiltersToAllowList(t *testing.T) {
	mode := NewReadOnlyMode([]string{"mcp/market_data/get_quote"})
	got := mode.FilterTools([]string{"mcp/market_data/get_quote", "mcp/news/search", "run_pipeline"})
	assert.Equal(t, []string{"mcp/market_data/get_quote"}, got)
}

func TestReadOnlyModeAllowsChecksMembership(t *testing.T) {
	mode := NewReadOnlyMode([]string{"mcp/market_data/get_quote"})
	assert.True(t, mode.Allows("mcp/market_data/get_quote"))
	assert.False(t, mode.Allows("run_pipeline"))
}

func TestReadOnlyModeNilIsPassthrough(t *testing.T) {
	var mode *ReadOnlyMode
	names := []string{"a", "b"}
	assert.Equal(t, names, mode.FilterTools(names))
	assert.True(t, mode.Allows("anything"))
	assert.NoError(t, mode.CheckMutation("manage_config", true))
}

func TestReadOnlyModeBlocksMutatingAction(t *testing.T) {
	mode := NewReadOnlyMode(nil)
	err := mode.CheckMutation("manage_config", true)
	assert.ErrorContains(t, err, "read-only mode")
}

func TestReadOnlyModeAllowsNonMutatingAction(t *testing.T) {
	mode := NewReadOnlyMode(nil)
	assert.NoError(t, mode.CheckMutation("manage_config", false))
}
