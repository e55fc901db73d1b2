// Package mediaflow provides a top-level convenience entry point that wires
// credentials, providers, hosting, pricing, and metrics into a ready
// generation engine.
//
// Usage:
//
//	import "github.com/BaSui01/mediaflow"
//
//	cfg, err := config.Load()
//	app, err := mediaflow.New(cfg)
//	res, err := app.Engine.GenerateImage(ctx, &gen.ImageRequest{Prompt: "...", Model: "nano-banana"})
//
// Callers with unusual wiring needs can build the pieces from gen/ and
// gen/providers/ directly; New only composes the defaults.
package mediaflow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/gen"
	"github.com/BaSui01/mediaflow/gen/hosting"
	"github.com/BaSui01/mediaflow/gen/providers/google"
	"github.com/BaSui01/mediaflow/gen/providers/higgsfield"
	"github.com/BaSui01/mediaflow/gen/providers/kie"
	"github.com/BaSui01/mediaflow/gen/providers/wavespeed"
	"github.com/BaSui01/mediaflow/internal/metrics"
)

// Version is the library version.
const Version = "0.3.0"

// App is the assembled generation stack.
type App struct {
	Config   *config.Config
	Engine   *gen.Engine
	Registry *gen.Registry
	Pricing  *gen.Pricing
	Store    *hosting.LocalStore
	Rehoster *hosting.Rehoster
	Remuxer  *hosting.Remuxer
	Metrics  *metrics.Collector
	Logger   *zap.Logger
}

// Option configures the app created by [New].
type Option func(*options)

type options struct {
	logger    *zap.Logger
	engineCfg *gen.EngineConfig
	collector *metrics.Collector
}

// WithLogger sets a custom zap logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEngineConfig overrides the default engine timing configuration.
func WithEngineConfig(cfg gen.EngineConfig) Option {
	return func(o *options) { o.engineCfg = &cfg }
}

// WithCollector supplies a pre-built metrics collector, for callers that
// manage their own Prometheus registry.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// New wires the full stack from cfg. Providers whose credentials are
// absent are simply not registered; resolving a model that only those
// providers serve then fails with a configuration error.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	collector := o.collector
	if collector == nil {
		collector = metrics.NewCollector(cfg.MetricsNamespace, logger)
	}

	store, err := hosting.NewLocalStore(cfg.OutputDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}

	// Gemini returns raw bytes rather than hosted URLs, so its artifacts
	// are pushed to whichever vendor CDN we hold a key for, with the
	// local store as the last resort.
	var uploader hosting.Uploader
	switch {
	case cfg.HasKie():
		uploader = hosting.NewKieUploader(hosting.KieUploaderConfig{APIKey: cfg.KieAPIKey})
	case cfg.HasWaveSpeed():
		uploader = hosting.NewWaveSpeedUploader(hosting.WaveSpeedUploaderConfig{APIKey: cfg.WaveSpeedAPIKey})
	}
	rehoster := hosting.NewRehoster(uploader, store, collector, logger)
	remuxer := hosting.NewRemuxer(logger)

	var (
		googleProvider     *google.Provider
		kieProvider        *kie.Provider
		wavespeedProvider  *wavespeed.Provider
		higgsfieldProvider *higgsfield.Provider
	)
	if cfg.HasGoogle() {
		googleProvider = google.New(google.DefaultConfig(cfg.GoogleAPIKey), rehoster, remuxer, logger)
	}
	if cfg.HasKie() {
		kieProvider = kie.New(kie.DefaultConfig(cfg.KieAPIKey), logger)
	}
	if cfg.HasWaveSpeed() {
		wavespeedProvider = wavespeed.New(wavespeed.DefaultConfig(cfg.WaveSpeedAPIKey), logger)
	}
	if cfg.HasHiggsfield() {
		higgsfieldProvider = higgsfield.New(higgsfield.DefaultConfig(cfg.HiggsfieldKeyID, cfg.HiggsfieldKeySecret), logger)
	}

	registry := buildRegistry(googleProvider, kieProvider, wavespeedProvider, higgsfieldProvider)

	pricing := gen.NewPricing(registry)
	if cfg.PriceOverridePath != "" {
		if err := pricing.LoadOverridesFile(cfg.PriceOverridePath); err != nil {
			return nil, fmt.Errorf("load price overrides: %w", err)
		}
	}

	engineCfg := gen.DefaultEngineConfig()
	if o.engineCfg != nil {
		engineCfg = *o.engineCfg
	}
	if engineCfg.OutputDir == "" {
		engineCfg.OutputDir = cfg.OutputDir
	}
	engine := gen.NewEngine(engineCfg, registry, pricing, collector, logger)

	return &App{
		Config:   cfg,
		Engine:   engine,
		Registry: registry,
		Pricing:  pricing,
		Store:    store,
		Rehoster: rehoster,
		Remuxer:  remuxer,
		Metrics:  collector,
		Logger:   logger,
	}, nil
}

// buildRegistry registers each model under every provider that can serve
// it, skipping providers that were not constructed. The first registered
// provider that is present becomes the default for a model when its usual
// default is missing.
func buildRegistry(g *google.Provider, k *kie.Provider, w *wavespeed.Provider, h *higgsfield.Provider) *gen.Registry {
	r := gen.NewRegistry()

	register := func(cap gen.Capability, model, defaultProvider string, providers map[string]gen.Adapter) {
		available := make(map[string]gen.Adapter, len(providers))
		for name, a := range providers {
			if a != nil {
				available[name] = a
			}
		}
		if len(available) == 0 {
			return
		}
		if _, ok := available[defaultProvider]; !ok {
			for _, name := range []string{"google", "gemini", "wavespeed", "kie", "higgsfield"} {
				if _, ok := available[name]; ok {
					defaultProvider = name
					break
				}
			}
		}
		r.Register(cap, model, defaultProvider, available)
	}

	var ga, ka, wa, ha gen.Adapter
	if g != nil {
		ga = g
	}
	if k != nil {
		ka = k
	}
	if w != nil {
		wa = w
	}
	if h != nil {
		ha = h
	}

	register(gen.CapImage, "nano-banana", "google", map[string]gen.Adapter{"google": ga, "kie": ka, "higgsfield": ha})
	register(gen.CapImage, "nano-banana-pro", "google", map[string]gen.Adapter{"google": ga, "kie": ka, "higgsfield": ha})
	register(gen.CapImage, "gpt-image-1.5", "wavespeed", map[string]gen.Adapter{"wavespeed": wa})

	register(gen.CapVideo, "kling-3.0", "wavespeed", map[string]gen.Adapter{"wavespeed": wa, "kie": ka})
	register(gen.CapVideo, "sora-2", "wavespeed", map[string]gen.Adapter{"wavespeed": wa})
	register(gen.CapVideo, "sora-2-pro", "wavespeed", map[string]gen.Adapter{"wavespeed": wa, "kie": ka})
	register(gen.CapVideo, "veo-3.1", "google", map[string]gen.Adapter{"google": ga})
	register(gen.CapVideo, "seedance", "higgsfield", map[string]gen.Adapter{"higgsfield": ha})
	register(gen.CapVideo, "minimax", "higgsfield", map[string]gen.Adapter{"higgsfield": ha})

	// Speech pricing keys name the provider "gemini", so the Google
	// adapter is registered under that name for the TTS capability.
	register(gen.CapTTS, "gemini-tts", "gemini", map[string]gen.Adapter{"gemini": ga})

	register(gen.CapTalkingHead, "speak-v2", "higgsfield", map[string]gen.Adapter{"higgsfield": ha})
	register(gen.CapTalkingHead, "talking-photo", "higgsfield", map[string]gen.Adapter{"higgsfield": ha})
	register(gen.CapTalkingHead, "infinitetalk", "wavespeed", map[string]gen.Adapter{"wavespeed": wa})

	return r
}
