package gen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/mediaflow/internal/metrics"
)

// longWaitModels get a higher base wait budget before duration scaling.
var longWaitModels = map[string]bool{
	"sora-2":     true,
	"sora-2-pro": true,
	"veo-3.1":    true,
}

// EngineConfig controls facade behavior.
type EngineConfig struct {
	// OutputDir is where locally stored artifacts live. Served output
	// routes ("/api/outputs/...") passed as image URLs resolve back into
	// this directory.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Image is the poll budget for async image jobs.
	Image PollOptions `json:"image" yaml:"image"`

	// Video poll budget: VideoBaseWait (or VideoLongBaseWait for slow
	// models) plus VideoPerSecond for every requested second beyond ten.
	VideoBaseWait     time.Duration `json:"video_base_wait" yaml:"video_base_wait"`
	VideoLongBaseWait time.Duration `json:"video_long_base_wait" yaml:"video_long_base_wait"`
	VideoPerSecond    time.Duration `json:"video_per_second" yaml:"video_per_second"`
	VideoInterval     time.Duration `json:"video_interval" yaml:"video_interval"`

	// SubmitInterval paces batch submissions.
	SubmitInterval time.Duration `json:"submit_interval" yaml:"submit_interval"`
}

// DefaultEngineConfig returns the standard budgets.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		OutputDir:         "outputs",
		Image:             DefaultPollOptions(),
		VideoBaseWait:     10 * time.Minute,
		VideoLongBaseWait: 15 * time.Minute,
		VideoPerSecond:    12 * time.Second,
		VideoInterval:     10 * time.Second,
		SubmitInterval:    time.Second,
	}
}

func (c *EngineConfig) normalize() {
	if c.VideoBaseWait <= 0 {
		c.VideoBaseWait = 10 * time.Minute
	}
	if c.VideoLongBaseWait <= 0 {
		c.VideoLongBaseWait = 15 * time.Minute
	}
	if c.VideoPerSecond <= 0 {
		c.VideoPerSecond = 12 * time.Second
	}
	if c.VideoInterval <= 0 {
		c.VideoInterval = 10 * time.Second
	}
	if c.SubmitInterval <= 0 {
		c.SubmitInterval = time.Second
	}
	c.Image.normalize()
}

// Engine is the generation facade. It resolves providers through the
// registry, branches on sync versus async, applies wait budgets, and
// normalizes local artifact references before submission.
type Engine struct {
	cfg      EngineConfig
	registry *Registry
	pricing  *Pricing
	logger   *zap.Logger
	metrics  *metrics.Collector
	tracer   oteltrace.Tracer
	limiter  *rate.Limiter
}

// NewEngine creates an Engine. A nil logger falls back to a no-op logger;
// a nil collector disables metrics.
func NewEngine(cfg EngineConfig, registry *Registry, pricing *Pricing, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.normalize()
	return &Engine{
		cfg:      cfg,
		registry: registry,
		pricing:  pricing,
		logger:   logger,
		metrics:  collector,
		tracer:   otel.Tracer("mediaflow/gen"),
		limiter:  rate.NewLimiter(rate.Every(cfg.SubmitInterval), 1),
	}
}

// Registry returns the engine's provider registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Pricing returns the engine's price tables.
func (e *Engine) Pricing() *Pricing { return e.pricing }

// GenerateImage runs one image generation to completion. Synchronous
// providers finish within the submit call; asynchronous ones are submitted
// and then polled with the image wait budget.
func (e *Engine) GenerateImage(ctx context.Context, req *ImageRequest) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "gen.GenerateImage",
		oteltrace.WithAttributes(
			attribute.String("model", req.Model),
			attribute.String("provider", req.Provider)))
	defer span.End()

	adapter, name, err := e.registry.Resolve(CapImage, req.Model, req.Provider)
	if err != nil {
		return nil, e.finish(span, CapImage, req.Model, req.Provider, time.Now(), nil, err)
	}
	start := time.Now()

	sub, err := adapter.SubmitImage(ctx, req)
	e.recordSubmission(name, CapImage, err)
	if err != nil {
		return nil, e.finish(span, CapImage, req.Model, name, start, nil, err)
	}
	if err := validSubmission(sub, name); err != nil {
		return nil, e.finish(span, CapImage, req.Model, name, start, nil, err)
	}
	if adapter.IsSync(CapImage) || sub.Result != nil {
		return sub.Result, e.finish(span, CapImage, req.Model, name, start, sub.Result, nil)
	}

	e.logger.Info("image job submitted",
		zap.String("provider", name),
		zap.String("model", req.Model),
		zap.String("task_id", sub.Handle.ID))

	res, err := adapter.PollImage(ctx, *sub.Handle, e.imagePollOptions())
	return res, e.finish(span, CapImage, req.Model, name, start, res, err)
}

// GenerateVideo runs one video generation to completion with a
// duration-scaled wait budget.
func (e *Engine) GenerateVideo(ctx context.Context, req *VideoRequest) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "gen.GenerateVideo",
		oteltrace.WithAttributes(
			attribute.String("model", req.Model),
			attribute.String("provider", req.Provider),
			attribute.Int("duration", req.Duration)))
	defer span.End()

	adapter, name, err := e.registry.Resolve(CapVideo, req.Model, req.Provider)
	if err != nil {
		return nil, e.finish(span, CapVideo, req.Model, req.Provider, time.Now(), nil, err)
	}
	e.normalizeVideoInput(req)
	start := time.Now()

	sub, err := adapter.SubmitVideo(ctx, req)
	e.recordSubmission(name, CapVideo, err)
	if err != nil {
		return nil, e.finish(span, CapVideo, req.Model, name, start, nil, err)
	}
	if err := validSubmission(sub, name); err != nil {
		return nil, e.finish(span, CapVideo, req.Model, name, start, nil, err)
	}
	if adapter.IsSync(CapVideo) || sub.Result != nil {
		return sub.Result, e.finish(span, CapVideo, req.Model, name, start, sub.Result, nil)
	}

	opts := e.videoPollOptions(req.Model, req.Duration)
	e.logger.Info("video job submitted",
		zap.String("provider", name),
		zap.String("model", req.Model),
		zap.String("task_id", sub.Handle.ID),
		zap.Duration("max_wait", opts.MaxWait))

	res, err := adapter.PollVideo(ctx, *sub.Handle, opts)
	return res, e.finish(span, CapVideo, req.Model, name, start, res, err)
}

// GenerateSpeech synthesizes audio for providers implementing
// SpeechSynthesizer.
func (e *Engine) GenerateSpeech(ctx context.Context, req *SpeechRequest) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "gen.GenerateSpeech",
		oteltrace.WithAttributes(attribute.String("model", req.Model)))
	defer span.End()

	adapter, name, err := e.registry.Resolve(CapTTS, req.Model, req.Provider)
	if err != nil {
		return nil, e.finish(span, CapTTS, req.Model, req.Provider, time.Now(), nil, err)
	}
	synth, ok := adapter.(SpeechSynthesizer)
	if !ok {
		err := Errorf(ErrConfiguration, "provider %q does not support speech synthesis", name)
		return nil, e.finish(span, CapTTS, req.Model, name, time.Now(), nil, err)
	}
	start := time.Now()
	res, err := synth.SynthesizeSpeech(ctx, req)
	return res, e.finish(span, CapTTS, req.Model, name, start, res, err)
}

// GenerateTalkingHead animates an avatar for providers implementing
// TalkingHeadAdapter.
func (e *Engine) GenerateTalkingHead(ctx context.Context, req *TalkingHeadRequest) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "gen.GenerateTalkingHead",
		oteltrace.WithAttributes(attribute.String("model", req.Model)))
	defer span.End()

	adapter, name, err := e.registry.Resolve(CapTalkingHead, req.Model, req.Provider)
	if err != nil {
		return nil, e.finish(span, CapTalkingHead, req.Model, req.Provider, time.Now(), nil, err)
	}
	th, ok := adapter.(TalkingHeadAdapter)
	if !ok {
		err := Errorf(ErrConfiguration, "provider %q does not support talking head generation", name)
		return nil, e.finish(span, CapTalkingHead, req.Model, name, time.Now(), nil, err)
	}
	start := time.Now()

	sub, err := th.SubmitTalkingHead(ctx, req)
	e.recordSubmission(name, CapTalkingHead, err)
	if err != nil {
		return nil, e.finish(span, CapTalkingHead, req.Model, name, start, nil, err)
	}
	if err := validSubmission(sub, name); err != nil {
		return nil, e.finish(span, CapTalkingHead, req.Model, name, start, nil, err)
	}
	if sub.Result != nil {
		return sub.Result, e.finish(span, CapTalkingHead, req.Model, name, start, sub.Result, nil)
	}
	opts := e.videoPollOptions(req.Model, req.Duration)
	res, err := th.PollTalkingHead(ctx, *sub.Handle, opts)
	return res, e.finish(span, CapTalkingHead, req.Model, name, start, res, err)
}

// PollAll polls handles from any mix of providers: handles are grouped by
// provider, each group goes through that adapter's bounded batch poller,
// and the maps merge. Like PollBatch it never fails as a whole.
func (e *Engine) PollAll(ctx context.Context, handles []Handle, opts PollOptions) map[string]*Result {
	out := make(map[string]*Result, len(handles))
	if len(handles) == 0 {
		return out
	}

	groups := make(map[string][]Handle)
	for _, h := range handles {
		groups[h.Provider] = append(groups[h.Provider], h)
	}
	for name, group := range groups {
		adapter, ok := e.registry.Adapter(name)
		if !ok {
			for _, h := range group {
				out[h.ID] = Failure(h.ID, Errorf(ErrConfiguration, "no adapter registered for provider %q", name))
			}
			continue
		}
		for id, res := range adapter.PollBatch(ctx, group, opts) {
			out[id] = res
		}
	}
	return out
}

// videoPollOptions computes the duration-scaled wait budget. Slow models
// start from a higher base; every requested second beyond ten adds
// VideoPerSecond to the budget.
func (e *Engine) videoPollOptions(model string, duration int) PollOptions {
	base := e.cfg.VideoBaseWait
	if longWaitModels[model] {
		base = e.cfg.VideoLongBaseWait
	}
	if duration > 10 {
		base += time.Duration(duration-10) * e.cfg.VideoPerSecond
	}
	return PollOptions{
		MaxWait:          base,
		Interval:         e.cfg.VideoInterval,
		TransportRetries: e.cfg.Image.TransportRetries,
		Metrics:          e.metrics,
	}
}

// imagePollOptions returns the image wait budget with the engine's
// collector threaded in.
func (e *Engine) imagePollOptions() PollOptions {
	opts := e.cfg.Image
	opts.Metrics = e.metrics
	return opts
}

// recordSubmission counts one submit call against the collector.
func (e *Engine) recordSubmission(provider string, cap Capability, err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordSubmission(provider, string(cap), status)
}

// validSubmission rejects adapter responses that violate the Submission
// contract: exactly one of Result or Handle must be set.
func validSubmission(sub *Submission, provider string) error {
	if sub == nil || (sub.Result == nil && sub.Handle == nil) {
		return Errorf(ErrConfiguration, "provider %q returned a submission with neither result nor handle", provider)
	}
	return nil
}

// normalizeVideoInput rewrites an ImageURL that is really a local
// reference into ImagePath: served output routes map back into the output
// directory, and bare filesystem paths are used directly when the file
// exists. Real URLs pass through untouched.
func (e *Engine) normalizeVideoInput(req *VideoRequest) {
	u := req.ImageURL
	if u == "" || req.ImagePath != "" {
		return
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "data:") {
		return
	}
	if idx := strings.Index(u, "/api/outputs/"); idx >= 0 {
		local := filepath.Join(e.cfg.OutputDir, filepath.Base(u[idx:]))
		if _, err := os.Stat(local); err == nil {
			req.ImagePath = local
			req.ImageURL = ""
			e.logger.Debug("resolved served output route to local file", zap.String("path", local))
		}
		return
	}
	if info, err := os.Stat(u); err == nil && !info.IsDir() {
		req.ImagePath = u
		req.ImageURL = ""
	}
}

// finish records metrics and span status for one generation.
func (e *Engine) finish(span oteltrace.Span, cap Capability, model, provider string, start time.Time, res *Result, err error) error {
	status := "success"
	switch {
	case err != nil:
		status = string(GetErrorCode(err))
		if status == "" {
			status = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res != nil && !res.OK():
		status = "job_failed"
	}
	if e.metrics != nil {
		cost := 0.0
		if e.pricing != nil && err == nil && res != nil && res.OK() {
			cost = e.pricing.ActualCost(model, provider)
		}
		e.metrics.RecordGeneration(provider, model, string(cap), status, time.Since(start), cost)
	}
	span.SetAttributes(attribute.String("status", status))
	return err
}
