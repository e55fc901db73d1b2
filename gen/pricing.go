package gen

import (
	"sync"
)

// PriceKey identifies a priced (model, provider) combination.
type PriceKey struct {
	Model    string
	Provider string
}

// Pricing resolves per-generation retail and actual cost. Retail is what a
// platform user is shown; actual is what the operator pays the vendor,
// falling back to retail when no separate actual price is known. Unknown
// combinations cost 0.0 and never error, so cost lookups can sit on every
// reporting path without guarding.
type Pricing struct {
	registry *Registry
	retail   map[PriceKey]float64
	actual   map[PriceKey]float64
}

// NewPricing builds a pricing table over a registry. The registry resolves
// a model's default provider when the caller does not name one.
func NewPricing(registry *Registry) *Pricing {
	p := &Pricing{
		registry: registry,
		retail:   make(map[PriceKey]float64),
		actual:   make(map[PriceKey]float64),
	}
	p.loadDefaultPrices()
	return p
}

// loadDefaultPrices loads the built-in price tables. Override files merge
// on top of these.
func (p *Pricing) loadDefaultPrices() {
	retail := map[PriceKey]float64{
		// Image models
		{"nano-banana", "google"}:         0.04,
		{"nano-banana", "kie"}:            0.09,
		{"nano-banana", "higgsfield"}:     0.04,
		{"nano-banana-pro", "google"}:     0.13,
		{"nano-banana-pro", "kie"}:        0.09,
		{"nano-banana-pro", "higgsfield"}: 0.13,
		{"gpt-image-1.5", "wavespeed"}:    0.07,

		// Video models
		{"veo-3.1", "google"}:       0.50,
		{"kling-3.0", "kie"}:        0.30,
		{"sora-2-pro", "kie"}:       0.30,
		{"kling-3.0", "wavespeed"}:  0.30,
		{"sora-2", "wavespeed"}:     0.30,
		{"sora-2-pro", "wavespeed"}: 0.30,

		// Credit-based vendors priced at the mid plan tier
		{"seedance", "higgsfield"}: 0.08,
		{"minimax", "higgsfield"}:  0.08,

		// TTS
		{"gemini-tts", "gemini"}: 0.00,

		// Talking head
		{"speak-v2", "higgsfield"}:      0.15,
		{"talking-photo", "higgsfield"}: 0.10,
		{"infinitetalk", "wavespeed"}:   0.20,
	}
	actual := map[PriceKey]float64{
		// Free-tier and flat-plan providers
		{"nano-banana", "google"}:         0.00,
		{"nano-banana-pro", "google"}:     0.00,
		{"nano-banana", "higgsfield"}:     0.00,
		{"nano-banana-pro", "higgsfield"}: 0.00,
		{"veo-3.1", "google"}:             0.00,
		{"gemini-tts", "gemini"}:          0.00,

		// Metered providers
		{"nano-banana", "kie"}:          0.09,
		{"nano-banana-pro", "kie"}:      0.09,
		{"gpt-image-1.5", "wavespeed"}:  0.07,
		{"kling-3.0", "kie"}:            0.30,
		{"sora-2-pro", "kie"}:           0.30,
		{"kling-3.0", "wavespeed"}:      0.30,
		{"sora-2", "wavespeed"}:         0.30,
		{"sora-2-pro", "wavespeed"}:     0.30,
		{"seedance", "higgsfield"}:      0.03,
		{"minimax", "higgsfield"}:       0.03,
		{"speak-v2", "higgsfield"}:      0.05,
		{"talking-photo", "higgsfield"}: 0.03,
		{"infinitetalk", "wavespeed"}:   0.20,
	}
	for k, v := range retail {
		p.retail[k] = v
	}
	for k, v := range actual {
		p.actual[k] = v
	}
}

// SetPrice overrides a retail price.
func (p *Pricing) SetPrice(model, provider string, cost float64) {
	p.retail[PriceKey{model, provider}] = cost
}

// SetActualPrice overrides an actual price.
func (p *Pricing) SetActualPrice(model, provider string, cost float64) {
	p.actual[PriceKey{model, provider}] = cost
}

// Cost returns the retail cost per generation. An empty provider resolves
// the model's registry default; unknown combinations cost 0.0.
func (p *Pricing) Cost(model, provider string) float64 {
	provider = p.resolveProvider(model, provider)
	return p.retail[PriceKey{model, provider}]
}

// ActualCost returns what the operator pays per generation, falling back
// to the retail price when no actual entry exists.
func (p *Pricing) ActualCost(model, provider string) float64 {
	provider = p.resolveProvider(model, provider)
	key := PriceKey{model, provider}
	if cost, ok := p.actual[key]; ok {
		return cost
	}
	return p.retail[key]
}

func (p *Pricing) resolveProvider(model, provider string) string {
	if provider != "" || p.registry == nil {
		return provider
	}
	for _, cap := range []Capability{CapImage, CapVideo, CapTTS, CapTalkingHead} {
		if name := p.registry.DefaultProvider(cap, model); name != "" {
			return name
		}
	}
	return ""
}

// CostSummary aggregates spend over a batch or session.
type CostSummary struct {
	RetailCost float64 `json:"retail_cost"`
	ActualCost float64 `json:"actual_cost"`
	Artifacts  int     `json:"artifacts"`
	Requests   int     `json:"requests"`
}

// CostTracker accumulates batch-level spend. Retail is charged per
// request; actual cost accrues only for artifacts actually produced.
type CostTracker struct {
	pricing *Pricing
	mu      sync.Mutex
	summary CostSummary
}

// NewCostTracker creates a tracker over a pricing table.
func NewCostTracker(pricing *Pricing) *CostTracker {
	return &CostTracker{pricing: pricing}
}

// TrackRequest records one submitted generation at retail price.
func (t *CostTracker) TrackRequest(model, provider string) float64 {
	cost := t.pricing.Cost(model, provider)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Requests++
	t.summary.RetailCost += cost
	return cost
}

// TrackArtifact records one produced artifact at actual price.
func (t *CostTracker) TrackArtifact(model, provider string) float64 {
	cost := t.pricing.ActualCost(model, provider)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Artifacts++
	t.summary.ActualCost += cost
	return cost
}

// Summary returns the accumulated totals.
func (t *CostTracker) Summary() CostSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// Reset clears the accumulated totals.
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary = CostSummary{}
}
