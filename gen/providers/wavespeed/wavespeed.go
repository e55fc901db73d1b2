// Package wavespeed integrates WaveSpeed AI for image generation
// (GPT Image 1.5 edit), video generation (Kling 3.0, Sora 2), and
// InfiniteTalk talking head videos. All generation is asynchronous; the
// submit response names a per-job polling URL which travels inside the
// returned Handle.
package wavespeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gen"
)

var imageModels = map[string]string{
	"gpt-image-1.5": "openai/gpt-image-1.5/edit",
}

var videoModels = map[string]string{
	"kling-3.0":     "kwaivgi/kling-v3.0-pro/image-to-video",
	"kling-3.0-std": "kwaivgi/kling-v3.0-std/image-to-video",
	"sora-2":        "openai/sora-2/image-to-video",
	"sora-2-pro":    "openai/sora-2/image-to-video-pro",
}

// Provider implements gen.Adapter and gen.TalkingHeadAdapter for
// WaveSpeed AI.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a WaveSpeed provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.wavespeed.ai/api/v3"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("provider", "wavespeed")),
	}
}

func (p *Provider) Name() string { return "wavespeed" }

// IsSync reports false for every capability; WaveSpeed is submit-and-poll
// only.
func (p *Provider) IsSync(gen.Capability) bool { return false }

// imageSize maps an aspect ratio to the GPT Image size parameter.
func imageSize(aspectRatio string) string {
	switch aspectRatio {
	case "9:16", "2:3":
		return "1024*1536"
	case "16:9", "3:2":
		return "1536*1024"
	case "1:1":
		return "1024*1024"
	default:
		return "auto"
	}
}

// imageQuality maps a resolution tier to the GPT Image quality parameter.
func imageQuality(resolution string) string {
	if resolution == "2K" || resolution == "4K" {
		return "high"
	}
	return "medium"
}

// SubmitImage creates a GPT Image edit task.
func (p *Provider) SubmitImage(ctx context.Context, req *gen.ImageRequest) (*gen.Submission, error) {
	modelID, ok := imageModels[req.Model]
	if !ok {
		return nil, gen.Errorf(gen.ErrConfiguration, "wavespeed does not support image model %q", req.Model).
			WithProvider("wavespeed")
	}
	payload := map[string]any{
		"prompt":         req.Prompt,
		"size":           imageSize(req.AspectRatio),
		"quality":        imageQuality(req.Resolution),
		"input_fidelity": "high",
		"output_format":  "jpeg",
	}
	if len(req.ImageURLs) > 0 {
		payload["images"] = req.ImageURLs
	}
	return p.submit(ctx, gen.CapImage, modelID, payload)
}

// SubmitVideo creates a video task. Kling honors the std/pro mode through
// separate model variants; Sora durations snap to the accepted grid.
func (p *Provider) SubmitVideo(ctx context.Context, req *gen.VideoRequest) (*gen.Submission, error) {
	model := req.Model
	if model == "kling-3.0" && req.Mode == "std" {
		model = "kling-3.0-std"
	}
	modelID, ok := videoModels[model]
	if !ok {
		return nil, gen.Errorf(gen.ErrConfiguration, "wavespeed does not support video model %q", req.Model).
			WithProvider("wavespeed")
	}
	duration := req.Duration
	if duration <= 0 {
		duration = 5
	}

	var payload map[string]any
	switch {
	case strings.HasPrefix(model, "kling"):
		payload = map[string]any{
			"prompt":    req.Prompt,
			"duration":  duration,
			"cfg_scale": 0.5,
			"sound":     true,
		}
	case strings.HasPrefix(model, "sora"):
		payload = map[string]any{
			"prompt":   req.Prompt,
			"duration": soraDuration(duration),
		}
		if model == "sora-2-pro" {
			payload["resolution"] = "1080p"
		}
	}
	if req.ImageURL != "" {
		payload["image"] = req.ImageURL
	}
	return p.submit(ctx, gen.CapVideo, modelID, payload)
}

// soraDuration snaps a requested duration onto the grid Sora accepts.
func soraDuration(seconds int) int {
	switch {
	case seconds <= 5:
		return 4
	case seconds <= 10:
		return 8
	case seconds <= 14:
		return 12
	case seconds <= 18:
		return 16
	default:
		return 20
	}
}

// SubmitTalkingHead creates an InfiniteTalk job from hosted audio and
// image URLs.
func (p *Provider) SubmitTalkingHead(ctx context.Context, req *gen.TalkingHeadRequest) (*gen.Submission, error) {
	if req.AudioURL == "" || req.ImageURL == "" {
		return nil, gen.NewError(gen.ErrSubmission, "infinitetalk needs hosted audio and image URLs").
			WithProvider("wavespeed")
	}
	payload := map[string]any{
		"audio":      req.AudioURL,
		"image":      req.ImageURL,
		"resolution": "480p",
	}
	if req.Prompt != "" {
		payload["prompt"] = req.Prompt
	}
	return p.submit(ctx, gen.CapTalkingHead, "wavespeed-ai/infinitetalk", payload)
}

type submitResponse struct {
	ID   string `json:"id"`
	URLs struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// submit posts a task to the model's endpoint. The response may arrive
// wrapped in a data key or flat; both carry the job id and the polling
// URL for this job.
func (p *Provider) submit(ctx context.Context, cap gen.Capability, modelID string, payload map[string]any) (*gen.Submission, error) {
	body, _ := json.Marshal(payload)
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/" + modelID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "build submit request").WithProvider("wavespeed").WithCause(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "submit request failed").WithProvider("wavespeed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, gen.Errorf(gen.ErrSubmission, "submit error: status=%d body=%s", resp.StatusCode, string(errBody)).
			WithProvider("wavespeed")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "read submit response").WithProvider("wavespeed").WithCause(err)
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	var parsed submitResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Data) > 0 {
		_ = json.Unmarshal(wrapped.Data, &parsed)
	}
	if parsed.ID == "" {
		_ = json.Unmarshal(raw, &parsed)
	}
	if parsed.ID == "" || parsed.URLs.Get == "" {
		return nil, gen.Errorf(gen.ErrSubmission, "missing id or poll URL in submit response: %s", string(raw)).
			WithProvider("wavespeed")
	}

	p.logger.Info("task submitted", zap.String("model", modelID), zap.String("task_id", parsed.ID))
	return &gen.Submission{Handle: &gen.Handle{
		Provider: "wavespeed",
		Cap:      cap,
		ID:       parsed.ID,
		PollURL:  parsed.URLs.Get,
	}}, nil
}

// PollImage polls an image task to a terminal state.
func (p *Provider) PollImage(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	return p.poll(ctx, h, opts)
}

// PollVideo polls a video task to a terminal state.
func (p *Provider) PollVideo(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	return p.poll(ctx, h, opts)
}

// PollTalkingHead polls an InfiniteTalk job to a terminal state.
func (p *Provider) PollTalkingHead(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	return p.poll(ctx, h, opts)
}

func (p *Provider) poll(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	if h.Provider != "wavespeed" {
		return nil, gen.Errorf(gen.ErrConfiguration, "handle belongs to provider %q, not wavespeed", h.Provider)
	}
	if h.PollURL == "" {
		return nil, gen.Errorf(gen.ErrConfiguration, "handle for task %s carries no poll URL", h.ID)
	}
	return gen.PollUntilTerminal(ctx, h, opts, func(ctx context.Context) (*gen.Result, error) {
		return p.checkTask(ctx, h)
	}, p.logger)
}

// checkTask queries the job's polling URL once. InfiniteTalk jobs report
// their video either in outputs or under output.url, and use a wider
// family of failure statuses than the plain generation endpoints.
func (p *Provider) checkTask(ctx context.Context, h gen.Handle) (*gen.Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, h.PollURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status check returned %d: %s", resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	data := raw
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Data) > 0 {
		data = wrapped.Data
	}

	var status struct {
		Status  string            `json:"status"`
		Outputs []json.RawMessage `json:"outputs"`
		Output  struct {
			URL string `json:"url"`
		} `json:"output"`
		Error        string `json:"error"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	lower := strings.ToLower(status.Status)
	switch {
	case status.Status == "completed":
		if url := firstOutputURL(status.Outputs); url != "" {
			return gen.Success(url, h.ID), nil
		}
		if status.Output.URL != "" {
			return gen.Success(status.Output.URL, h.ID), nil
		}
		return gen.Failure(h.ID, fmt.Errorf("no outputs in completed task")), nil
	case strings.Contains(lower, "fail") || strings.Contains(lower, "error"):
		msg := status.Error
		if msg == "" {
			msg = status.ErrorMessage
		}
		if msg == "" {
			msg = "unknown error"
		}
		return gen.Failure(h.ID, fmt.Errorf("task failed: %s", msg)), nil
	default:
		return nil, nil
	}
}

// firstOutputURL handles both output shapes: plain URL strings and
// objects carrying a url field.
func firstOutputURL(outputs []json.RawMessage) string {
	if len(outputs) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(outputs[0], &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(outputs[0], &obj); err == nil {
		return obj.URL
	}
	return ""
}

// PollBatch polls up to 20 tasks at a time.
func (p *Provider) PollBatch(ctx context.Context, handles []gen.Handle, opts gen.PollOptions) map[string]*gen.Result {
	return gen.RunPollBatch(ctx, handles, 20, opts, p.poll, p.logger)
}
