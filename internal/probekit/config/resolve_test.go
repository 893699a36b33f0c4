package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOverlayWinsOnFlags(t *testing.T) {
	base := map[string]any{
		"features": map[string]any{
			FeatureAPITools:     true,
			FeatureBrowserTools: true,
		},
	}
	overlay := map[string]any{
		"features": map[string]any{
			FeatureBrowserTools: false,
		},
	}

	cfg, err := Resolve(base, overlay)
	require.NoError(t, err)
	assert.True(t, cfg.FeatureEnabled(FeatureAPITools))
	assert.False(t, cfg.FeatureEnabled(FeatureBrowserTools))
}

func TestResolveMissingFlagDefaultsDisabled(t *testing.T) {
	cfg, err := Resolve(map[string]any{}, map[string]any{})
	require.NoError(t, err)
	assert.False(t, cfg.FeatureEnabled(FeatureNetworkTools))
	// empty flag means the tool is ungated
	assert.True(t, cfg.FeatureEnabled(""))
}

func TestResolveNestedTablesMerge(t *testing.T) {
	base := map[string]any{
		"security": map[string]any{
			"max_sessions":        int64(5),
			"max_history_entries": int64(50),
		},
	}
	overlay := map[string]any{
		"security": map[string]any{
			"max_sessions": int64(2),
		},
	}

	cfg, err := Resolve(base, overlay)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Security.MaxSessions)
	assert.Equal(t, 50, cfg.Security.MaxHistoryEntries)
}

func TestResolveArraysReplaceWholesale(t *testing.T) {
	base := map[string]any{
		"security": map[string]any{
			"retryable_statuses": []any{int64(500), int64(502)},
		},
	}
	overlay := map[string]any{
		"security": map[string]any{
			"retryable_statuses": []any{int64(503)},
		},
	}

	cfg, err := Resolve(base, overlay)
	require.NoError(t, err)
	assert.Equal(t, []int{503}, cfg.Security.RetryableStatuses)
}

func TestResolveTypeConflictIsFatal(t *testing.T) {
	base := map[string]any{
		"features": map[string]any{FeatureAPITools: true},
	}
	overlay := map[string]any{
		"features": map[string]any{FeatureAPITools: "yes"},
	}

	_, err := Resolve(base, overlay)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeConflict)
	assert.Contains(t, err.Error(), FeatureAPITools)
}

func TestResolveTableScalarConflictIsFatal(t *testing.T) {
	base := map[string]any{
		"security": map[string]any{"max_sessions": int64(5)},
	}
	overlay := map[string]any{
		"security": "locked-down",
	}

	_, err := Resolve(base, overlay)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeConflict)
}

func TestResolveUnknownKeyRejected(t *testing.T) {
	base := map[string]any{"sessions": map[string]any{"max": int64(5)}}

	_, err := Resolve(base, map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestResolveEnvOverridesWinLast(t *testing.T) {
	t.Setenv(EnvEnableFlagPrefix+"BROWSER_TOOLS", "false")
	t.Setenv(EnvPort, "9999")

	base := map[string]any{
		"features": map[string]any{FeatureBrowserTools: true},
		"server":   map[string]any{"port": "8711"},
	}
	overlay := map[string]any{
		"features": map[string]any{FeatureBrowserTools: true},
	}

	cfg, err := Resolve(base, overlay)
	require.NoError(t, err)
	assert.False(t, cfg.FeatureEnabled(FeatureBrowserTools))
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestResolveAppliesDefaults(t *testing.T) {
	cfg, err := Resolve(map[string]any{}, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Security.MaxSessions)
	assert.Equal(t, 100, cfg.Security.MaxHistoryEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Contains(t, cfg.Security.RetryableStatuses, 503)
	assert.Contains(t, cfg.Security.RedactHeaders, "Authorization")
}

func TestToolSettingsClampedToCeiling(t *testing.T) {
	base := map[string]any{
		"security": map[string]any{"max_request_timeout_ms": int64(5000)},
		"tools": map[string]any{
			"api_request": map[string]any{"timeout_ms": int64(60000)},
		},
	}
	cfg, err := Resolve(base, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.ToolSettingsFor("api_request").TimeoutMs)
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "base.toml")
	doc := `
[features]
enableApiTools = true

[security]
max_sessions = 3
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	tree, err := LoadDocument(path)
	require.NoError(t, err)

	cfg, err := Resolve(tree, map[string]any{})
	require.NoError(t, err)
	assert.True(t, cfg.FeatureEnabled(FeatureAPITools))
	assert.Equal(t, 3, cfg.Security.MaxSessions)
}

func TestLoadDocumentMissingFile(t *testing.T) {
	_, err := LoadDocument(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadableConfig)
}
