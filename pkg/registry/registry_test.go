package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `{
  "version": "1.0.0",
  "activities": [
    {"id": "upsell.cart.resolve", "taskType": "resolve-cart-upsells", "inputSchema": {"type": "object"}},
    {"id": "upsell.metadata.get", "taskType": "get-upsell-metadata"}
  ]
}`

func TestParseAndLookup(t *testing.T) {
	reg, err := Parse([]byte(sampleRegistry))
	require.NoError(t, err)

	act, ok := reg.ByTaskType("resolve-cart-upsells")
	require.True(t, ok)
	assert.Equal(t, "upsell.cart.resolve", act.ID)
	assert.Equal(t, "object", act.InputSchema["type"])

	_, ok = reg.ByID("upsell.metadata.get")
	assert.True(t, ok)
	_, ok = reg.ByTaskType("unknown")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`{"activities": [`))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()

	reg, err := LoadOrDefault(filepath.Join(dir, "missing.json"), []byte(sampleRegistry))
	require.NoError(t, err)
	assert.Len(t, reg.Activities, 2)

	path := filepath.Join(dir, "registry.json")
	reg.Version = "2.0.0"
	require.NoError(t, Save(reg, path))

	loaded, err := LoadOrDefault(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", loaded.Version)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = LoadOrDefault(path, []byte(sampleRegistry))
	assert.Error(t, err, "a corrupt file is not silently replaced")
}
