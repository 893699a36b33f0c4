package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	assert.Equal(t, defaultViewportWidth, cfg.ViewportWidth)
	assert.Equal(t, defaultViewportHeight, cfg.ViewportHeight)
	assert.Equal(t, float64(defaultTimeoutMs), cfg.TimeoutMs)

	cfg = Config{ViewportWidth: 800, ViewportHeight: 600, TimeoutMs: 5000}
	cfg.applyDefaults()
	assert.Equal(t, 800, cfg.ViewportWidth)
	assert.Equal(t, 600, cfg.ViewportHeight)
	assert.Equal(t, float64(5000), cfg.TimeoutMs)
}

func TestUnlaunchedBackendRejectsPageOperations(t *testing.T) {
	b := NewPlaywrightBackend(Config{Headless: true})
	ctx := context.Background()

	_, err := b.Navigate(ctx, "https://example.com", NavigateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotLaunched)

	_, err = b.Screenshot(ctx, ScreenshotOptions{})
	assert.ErrorIs(t, err, ErrNotLaunched)

	_, err = b.DOM(ctx, "")
	assert.ErrorIs(t, err, ErrNotLaunched)

	// Terminating an unlaunched backend is a no-op.
	assert.NoError(t, b.Terminate())
}
