package mediaflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/gen"
)

var namespaceSeq atomic.Int64

// testConfig returns a config with a unique metrics namespace so each
// test's collector registers cleanly against the default Prometheus
// registry.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		OutputDir:        t.TempDir(),
		MetricsNamespace: fmt.Sprintf("mediaflow_app_test_%d", namespaceSeq.Add(1)),
	}
}

func fullCredentials(t *testing.T) *config.Config {
	cfg := testConfig(t)
	cfg.KieAPIKey = "kie-key"
	cfg.GoogleAPIKey = "google-key"
	cfg.WaveSpeedAPIKey = "ws-key"
	cfg.HiggsfieldKeyID = "hf-id"
	cfg.HiggsfieldKeySecret = "hf-secret"
	return cfg
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestNew_FullStack(t *testing.T) {
	app, err := New(fullCredentials(t), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	require.NotNil(t, app.Engine)
	require.NotNil(t, app.Registry)
	require.NotNil(t, app.Pricing)
	require.NotNil(t, app.Store)
	require.NotNil(t, app.Rehoster)
	require.NotNil(t, app.Remuxer)
	require.NotNil(t, app.Metrics)

	// Every capability has its default providers registered.
	_, provider, err := app.Registry.Resolve(gen.CapImage, "nano-banana", "")
	require.NoError(t, err)
	assert.Equal(t, "google", provider)

	_, provider, err = app.Registry.Resolve(gen.CapVideo, "kling-3.0", "")
	require.NoError(t, err)
	assert.Equal(t, "wavespeed", provider)

	_, provider, err = app.Registry.Resolve(gen.CapVideo, "seedance", "")
	require.NoError(t, err)
	assert.Equal(t, "higgsfield", provider)

	// TTS registers the Google adapter under the pricing name "gemini".
	_, provider, err = app.Registry.Resolve(gen.CapTTS, "gemini-tts", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", provider)

	_, provider, err = app.Registry.Resolve(gen.CapTalkingHead, "speak-v2", "")
	require.NoError(t, err)
	assert.Equal(t, "higgsfield", provider)

	// Overrides still work.
	_, provider, err = app.Registry.Resolve(gen.CapImage, "nano-banana", "kie")
	require.NoError(t, err)
	assert.Equal(t, "kie", provider)
}

func TestNew_MissingProvidersAreNotRegistered(t *testing.T) {
	cfg := testConfig(t)
	cfg.KieAPIKey = "kie-key"

	app, err := New(cfg)
	require.NoError(t, err)

	// With Google absent the default falls through to Kie.
	_, provider, err := app.Registry.Resolve(gen.CapImage, "nano-banana", "")
	require.NoError(t, err)
	assert.Equal(t, "kie", provider)

	// Models only served by absent providers do not resolve.
	_, _, err = app.Registry.Resolve(gen.CapVideo, "veo-3.1", "")
	require.Error(t, err)
	_, _, err = app.Registry.Resolve(gen.CapTTS, "gemini-tts", "")
	require.Error(t, err)
	_, _, err = app.Registry.Resolve(gen.CapImage, "gpt-image-1.5", "")
	require.Error(t, err)

	// Asking for Google explicitly fails too.
	_, _, err = app.Registry.Resolve(gen.CapImage, "nano-banana", "google")
	require.Error(t, err)
}

func TestNew_HiggsfieldOnlyModels(t *testing.T) {
	cfg := testConfig(t)
	cfg.GoogleAPIKey = "g"
	cfg.HiggsfieldKeyID = "id"
	cfg.HiggsfieldKeySecret = "sec"

	app, err := New(cfg)
	require.NoError(t, err)

	_, provider, err := app.Registry.Resolve(gen.CapTalkingHead, "talking-photo", "")
	require.NoError(t, err)
	assert.Equal(t, "higgsfield", provider)

	_, _, err = app.Registry.Resolve(gen.CapTalkingHead, "infinitetalk", "")
	require.Error(t, err)
}

func TestNew_PriceOverridesApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"retail:\n  - model: nano-banana\n    provider: google\n    cost: 0.99\n"), 0o644))

	cfg := fullCredentials(t)
	cfg.PriceOverridePath = path

	app, err := New(cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.99, app.Pricing.Cost("nano-banana", "google"), 1e-9)
	// Untouched entries keep their defaults.
	assert.InDelta(t, 0.09, app.Pricing.Cost("nano-banana", "kie"), 1e-9)
}

func TestNew_BadOverridePathFails(t *testing.T) {
	cfg := fullCredentials(t)
	cfg.PriceOverridePath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(cfg)
	require.Error(t, err)
}

func TestNew_EngineConfigOption(t *testing.T) {
	custom := gen.DefaultEngineConfig()
	custom.SubmitInterval = 5 * time.Millisecond
	custom.OutputDir = "" // should inherit from config

	cfg := fullCredentials(t)
	app, err := New(cfg, WithEngineConfig(custom))
	require.NoError(t, err)
	require.NotNil(t, app.Engine)
	assert.Equal(t, cfg.OutputDir, app.Store.Dir())
}
