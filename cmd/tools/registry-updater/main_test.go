package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upsell-workers/configs"
	"upsell-workers/pkg/registry"
)

func writeBundledRegistry(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, os.WriteFile(path, configs.ActivityRegistry, 0o644))
	return path
}

func TestValidateRegistry_Bundled(t *testing.T) {
	count, err := validateRegistry(writeBundledRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestValidateRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", `{"activities":[]}`, "no activities"},
		{"bad naming", `{"activities":[{"id":"Upsell-Cart","displayName":"x","taskType":"x"}]}`, "domain.subdomain.action"},
		{"duplicate task type", `{"activities":[
			{"id":"upsell.cart.one","displayName":"a","taskType":"same"},
			{"id":"upsell.cart.two","displayName":"b","taskType":"same"}]}`, "duplicate task type"},
		{"broken schema", `{"activities":[{"id":"upsell.cart.one","displayName":"a","taskType":"t","inputSchema":{"type":"nope"}}]}`, "input schema"},
		{"bad timeout", `{"activities":[{"id":"upsell.cart.one","displayName":"a","taskType":"t","timeout":"soon"}]}`, "invalid timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "registry.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			_, err := validateRegistry(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAddActivity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.json")

	err := addActivity(path, &registry.Activity{ID: "upsell.cart.preview", DisplayName: "Preview", TaskType: "preview-cart-upsells"})
	require.NoError(t, err)

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Activities, 1)
	assert.NotEmpty(t, reg.LastUpdated)

	err = addActivity(path, &registry.Activity{ID: "upsell.cart.other", DisplayName: "Other", TaskType: "preview-cart-upsells"})
	assert.ErrorContains(t, err, "already registered")
}

func TestUpdateActivity(t *testing.T) {
	path := writeBundledRegistry(t)

	require.NoError(t, updateActivity(path, "upsell.cart.resolve", "status", "verified"))
	require.NoError(t, updateActivity(path, "upsell.cart.resolve", "retries", "5"))

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	activity, ok := reg.ByID("upsell.cart.resolve")
	require.True(t, ok)
	assert.Equal(t, "verified", activity.ImplementationStatus)
	assert.Equal(t, 5, activity.Retries)

	assert.Error(t, updateActivity(path, "upsell.cart.resolve", "timeout", "later"))
	assert.Error(t, updateActivity(path, "upsell.cart.resolve", "owner", "me"))
	assert.Error(t, updateActivity(path, "upsell.cart.missing", "status", "done"))
}
