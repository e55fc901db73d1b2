// Package kie integrates Kie AI's createTask/recordInfo job API for image
// (Nano Banana Pro) and video (Kling 3.0, Sora 2 Pro) generation. All
// generation is asynchronous.
package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gen"
)

// Model name mappings from catalog names to Kie model IDs.
var imageModels = map[string]string{
	"nano-banana":     "nano-banana-pro", // Kie only offers the Pro variant
	"nano-banana-pro": "nano-banana-pro",
}

var videoModels = map[string]string{
	"kling-3.0":  "kling-3.0/video",
	"sora-2-pro": "sora-2-pro-image-to-video",
}

// Provider implements gen.Adapter for Kie AI.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a Kie provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CreateURL == "" {
		cfg.CreateURL = "https://api.kie.ai/api/v1/jobs/createTask"
	}
	if cfg.StatusURL == "" {
		cfg.StatusURL = "https://api.kie.ai/api/v1/jobs/recordInfo"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("provider", "kie")),
	}
}

func (p *Provider) Name() string { return "kie" }

// IsSync reports false for every capability; Kie is submit-and-poll only.
func (p *Provider) IsSync(gen.Capability) bool { return false }

type taskRequest struct {
	Model string         `json:"model"`
	Input map[string]any `json:"input"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// SubmitImage creates an image task. Reference images must already be
// hosted URLs; Kie does not take inline bytes.
func (p *Provider) SubmitImage(ctx context.Context, req *gen.ImageRequest) (*gen.Submission, error) {
	modelID, ok := imageModels[req.Model]
	if !ok {
		return nil, gen.Errorf(gen.ErrConfiguration, "kie does not support image model %q", req.Model).WithProvider("kie")
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = "9:16"
	}
	resolution := req.Resolution
	if resolution == "" {
		resolution = "1K"
	}
	refs := req.ImageURLs
	if refs == nil {
		refs = []string{}
	}
	payload := taskRequest{
		Model: modelID,
		Input: map[string]any{
			"prompt":        req.Prompt,
			"aspect_ratio":  aspect,
			"resolution":    resolution,
			"output_format": "png",
			"image_input":   refs,
		},
	}
	return p.submit(ctx, gen.CapImage, payload)
}

// SubmitVideo creates a video task from a prompt and optional start frame.
func (p *Provider) SubmitVideo(ctx context.Context, req *gen.VideoRequest) (*gen.Submission, error) {
	modelID, ok := videoModels[req.Model]
	if !ok {
		return nil, gen.Errorf(gen.ErrConfiguration, "kie does not support video model %q", req.Model).WithProvider("kie")
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = "9:16"
	}
	duration := req.Duration
	if duration <= 0 {
		duration = 5
	}

	var payload taskRequest
	switch req.Model {
	case "kling-3.0":
		mode := req.Mode
		if mode == "" {
			mode = "pro"
		}
		input := map[string]any{
			"mode":        mode,
			"prompt":      req.Prompt,
			"duration":    strconv.Itoa(duration),
			"multi_shots": false,
			"sound":       true,
		}
		if req.ImageURL != "" {
			input["image_urls"] = []string{req.ImageURL}
		} else {
			input["aspect_ratio"] = aspect
		}
		payload = taskRequest{Model: modelID, Input: input}

	case "sora-2-pro":
		soraRatio := "portrait"
		switch aspect {
		case "16:9", "1:1", "landscape":
			soraRatio = "landscape"
		}
		nFrames := "10"
		switch {
		case duration > 15:
			nFrames = "20"
		case duration > 10:
			nFrames = "15"
		}
		input := map[string]any{
			"prompt":           req.Prompt,
			"aspect_ratio":     soraRatio,
			"n_frames":         nFrames,
			"size":             "high",
			"remove_watermark": true,
			"upload_method":    "s3",
		}
		if req.ImageURL != "" {
			input["image_urls"] = []string{req.ImageURL}
		}
		payload = taskRequest{Model: modelID, Input: input}
	}
	return p.submit(ctx, gen.CapVideo, payload)
}

// submit posts a task and wraps the returned taskId in a Handle.
func (p *Provider) submit(ctx context.Context, cap gen.Capability, payload taskRequest) (*gen.Submission, error) {
	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.CreateURL, bytes.NewReader(body))
	if err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "build submit request").WithProvider("kie").WithCause(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "submit request failed").WithProvider("kie").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, gen.Errorf(gen.ErrSubmission, "submit error: status=%d body=%s", resp.StatusCode, string(errBody)).
			WithProvider("kie")
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "decode submit response").WithProvider("kie").WithCause(err)
	}
	if env.Code != 200 {
		return nil, gen.Errorf(gen.ErrSubmission, "submit rejected: %s (code: %d)", env.Msg, env.Code).WithProvider("kie")
	}

	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.TaskID == "" {
		return nil, gen.Errorf(gen.ErrSubmission, "no taskId in submit response").WithProvider("kie").WithCause(err)
	}

	p.logger.Info("task submitted", zap.String("model", payload.Model), zap.String("task_id", data.TaskID))
	return &gen.Submission{Handle: &gen.Handle{Provider: "kie", Cap: cap, ID: data.TaskID}}, nil
}

// PollImage polls an image task to a terminal state.
func (p *Provider) PollImage(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	return p.poll(ctx, h, opts)
}

// PollVideo polls a video task to a terminal state.
func (p *Provider) PollVideo(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	return p.poll(ctx, h, opts)
}

func (p *Provider) poll(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	if h.Provider != "kie" {
		return nil, gen.Errorf(gen.ErrConfiguration, "handle belongs to provider %q, not kie", h.Provider)
	}
	return gen.PollUntilTerminal(ctx, h, opts, func(ctx context.Context) (*gen.Result, error) {
		return p.checkTask(ctx, h.ID)
	}, p.logger)
}

// checkTask queries recordInfo once. The envelope uses two layers of
// status: HTTP and envelope codes signal transport problems, while
// data.state describes the job itself. Transport problems are returned as
// errors so the shared loop counts them against the retry budget.
func (p *Provider) checkTask(ctx context.Context, taskID string) (*gen.Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.StatusURL+"?taskId="+taskID, nil)
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

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	if env.Code != 200 {
		return nil, fmt.Errorf("status API error: %s (code: %d)", env.Msg, env.Code)
	}

	var data struct {
		State      string `json:"state"`
		ResultJSON string `json:"resultJson"`
		FailMsg    string `json:"failMsg"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode status data: %w", err)
	}

	switch data.State {
	case "success":
		// resultJson is a JSON document embedded as a string.
		var parsed struct {
			ResultURLs []string `json:"resultUrls"`
		}
		if err := json.Unmarshal([]byte(data.ResultJSON), &parsed); err != nil {
			return gen.Failure(taskID, fmt.Errorf("malformed resultJson in completed task: %w", err)), nil
		}
		if len(parsed.ResultURLs) == 0 {
			return gen.Failure(taskID, fmt.Errorf("no result URLs in completed task")), nil
		}
		return gen.Success(parsed.ResultURLs[0], taskID), nil
	case "fail":
		msg := data.FailMsg
		if msg == "" {
			msg = "unknown error"
		}
		return gen.Failure(taskID, fmt.Errorf("task failed: %s", msg)), nil
	default:
		return nil, nil
	}
}

// PollBatch polls up to 20 tasks at a time.
func (p *Provider) PollBatch(ctx context.Context, handles []gen.Handle, opts gen.PollOptions) map[string]*gen.Result {
	return gen.RunPollBatch(ctx, handles, 20, opts, p.poll, p.logger)
}
