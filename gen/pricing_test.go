package gen

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricing_Cost(t *testing.T) {
	p := NewPricing(nil)

	assert.InDelta(t, 0.04, p.Cost("nano-banana", "google"), 1e-9)
	assert.InDelta(t, 0.09, p.Cost("nano-banana", "kie"), 1e-9)
	assert.InDelta(t, 0.50, p.Cost("veo-3.1", "google"), 1e-9)
	assert.InDelta(t, 0.15, p.Cost("speak-v2", "higgsfield"), 1e-9)
}

func TestPricing_UnknownIsFree(t *testing.T) {
	p := NewPricing(nil)

	assert.Zero(t, p.Cost("unknown-model", "google"))
	assert.Zero(t, p.Cost("nano-banana", "unknown-provider"))
	assert.Zero(t, p.ActualCost("unknown-model", ""))
}

func TestPricing_ActualCost(t *testing.T) {
	p := NewPricing(nil)

	// Flat-plan vendors cost nothing per call.
	assert.Zero(t, p.ActualCost("nano-banana", "google"))
	assert.Zero(t, p.ActualCost("veo-3.1", "google"))
	// Metered vendors match their retail price.
	assert.InDelta(t, 0.30, p.ActualCost("kling-3.0", "wavespeed"), 1e-9)
	// Credit plans cost less than retail.
	assert.InDelta(t, 0.03, p.ActualCost("seedance", "higgsfield"), 1e-9)
	assert.Less(t, p.ActualCost("seedance", "higgsfield"), p.Cost("seedance", "higgsfield"))
}

func TestPricing_ActualFallsBackToRetail(t *testing.T) {
	p := NewPricing(nil)
	p.SetPrice("new-model", "kie", 0.42)

	assert.InDelta(t, 0.42, p.ActualCost("new-model", "kie"), 1e-9)

	p.SetActualPrice("new-model", "kie", 0.10)
	assert.InDelta(t, 0.10, p.ActualCost("new-model", "kie"), 1e-9)
	assert.InDelta(t, 0.42, p.Cost("new-model", "kie"), 1e-9)
}

func TestPricing_EmptyProviderResolvesRegistryDefault(t *testing.T) {
	r := NewRegistry().
		Register(CapImage, "nano-banana", "kie", map[string]Adapter{"kie": newFakeAdapter("kie")})
	p := NewPricing(r)

	// kie is the registered default, so the kie price wins over google's.
	assert.InDelta(t, 0.09, p.Cost("nano-banana", ""), 1e-9)
}

func TestPricing_EmptyProviderWithoutRegistry(t *testing.T) {
	p := NewPricing(nil)
	assert.Zero(t, p.Cost("nano-banana", ""))
}

func TestPricing_Overrides(t *testing.T) {
	p := NewPricing(nil)
	p.ApplyOverrides(&PriceOverrideFile{
		Retail: []PriceOverride{{Model: "nano-banana", Provider: "kie", Cost: 0.12}},
		Actual: []PriceOverride{{Model: "nano-banana", Provider: "kie", Cost: 0.05}},
	})

	assert.InDelta(t, 0.12, p.Cost("nano-banana", "kie"), 1e-9)
	assert.InDelta(t, 0.05, p.ActualCost("nano-banana", "kie"), 1e-9)
	// Untouched entries keep their defaults.
	assert.InDelta(t, 0.04, p.Cost("nano-banana", "google"), 1e-9)
}

func TestPricing_LoadOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.yaml")
	content := `retail:
  - model: gpt-image-1.5
    provider: wavespeed
    cost: 0.11
actual:
  - model: gpt-image-1.5
    provider: wavespeed
    cost: 0.06
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := NewPricing(nil)
	require.NoError(t, p.LoadOverridesFile(path))
	assert.InDelta(t, 0.11, p.Cost("gpt-image-1.5", "wavespeed"), 1e-9)
	assert.InDelta(t, 0.06, p.ActualCost("gpt-image-1.5", "wavespeed"), 1e-9)
}

func TestPricing_LoadOverridesFile_Missing(t *testing.T) {
	p := NewPricing(nil)
	assert.Error(t, p.LoadOverridesFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestCostTracker(t *testing.T) {
	p := NewPricing(nil)
	tracker := NewCostTracker(p)

	tracker.TrackRequest("nano-banana", "kie")
	tracker.TrackRequest("kling-3.0", "wavespeed")
	tracker.TrackArtifact("nano-banana", "kie")

	s := tracker.Summary()
	assert.Equal(t, 2, s.Requests)
	assert.Equal(t, 1, s.Artifacts)
	assert.InDelta(t, 0.39, s.RetailCost, 1e-9)
	assert.InDelta(t, 0.09, s.ActualCost, 1e-9)

	tracker.Reset()
	assert.Equal(t, CostSummary{}, tracker.Summary())
}

func TestCostTracker_Concurrent(t *testing.T) {
	tracker := NewCostTracker(NewPricing(nil))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.TrackRequest("nano-banana", "kie")
			tracker.TrackArtifact("nano-banana", "kie")
		}()
	}
	wg.Wait()

	s := tracker.Summary()
	assert.Equal(t, 100, s.Requests)
	assert.Equal(t, 100, s.Artifacts)
	assert.InDelta(t, 9.0, s.RetailCost, 1e-6)
}
