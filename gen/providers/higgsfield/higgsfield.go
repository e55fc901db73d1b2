// Package higgsfield integrates Higgsfield AI: Nano Banana image models,
// Seedance and Minimax video, and two talking head APIs (Speak v2 on the
// Platform API, talking_photo on the legacy Diffusion API). All generation
// is asynchronous.
package higgsfield

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gen"
)

var imageModels = map[string]string{
	"nano-banana":     "nano-banana",
	"nano-banana-pro": "nano-banana-pro",
}

var videoModels = map[string]string{
	"seedance":     "bytedance/seedance/2-0",
	"seedance-i2v": "bytedance/seedance/v1/pro/image-to-video",
	"minimax":      "minimax-ai/video-01-director/general",
}

// Provider implements gen.Adapter and gen.TalkingHeadAdapter for
// Higgsfield AI.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a Higgsfield provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.higgsfield.ai/v1"
	}
	if cfg.PlatformURL == "" {
		cfg.PlatformURL = "https://platform.higgsfield.ai"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("provider", "higgsfield")),
	}
}

func (p *Provider) Name() string { return "higgsfield" }

// IsSync reports false for every capability.
func (p *Provider) IsSync(gen.Capability) bool { return false }

func (p *Provider) authHeader() string {
	return fmt.Sprintf("Key %s:%s", p.cfg.APIKeyID, p.cfg.APIKeySecret)
}

// dimensions maps an aspect ratio to pixel width and height.
func dimensions(aspectRatio string) (int, int) {
	switch aspectRatio {
	case "16:9":
		return 1024, 576
	case "1:1":
		return 1024, 1024
	case "4:5":
		return 896, 1120
	case "5:4":
		return 1120, 896
	case "2:3":
		return 768, 1152
	case "3:2":
		return 1152, 768
	case "3:4":
		return 768, 1024
	case "4:3":
		return 1024, 768
	case "21:9":
		return 1344, 576
	default: // 9:16 and everything unmapped
		return 576, 1024
	}
}

// SubmitImage creates a text-to-image generation. At most three hosted
// reference URLs are forwarded.
func (p *Provider) SubmitImage(ctx context.Context, req *gen.ImageRequest) (*gen.Submission, error) {
	hfModel, ok := imageModels[req.Model]
	if !ok {
		hfModel = "nano-banana-pro"
	}
	width, height := dimensions(req.AspectRatio)
	payload := map[string]any{
		"task":   "text-to-image",
		"model":  hfModel,
		"prompt": req.Prompt,
		"width":  width,
		"height": height,
	}
	if len(req.ImageURLs) > 0 {
		refs := req.ImageURLs
		if len(refs) > 3 {
			refs = refs[:3]
		}
		payload["image_urls"] = refs
	}
	return p.submitGeneration(ctx, gen.CapImage, payload)
}

// SubmitVideo creates a Seedance or Minimax generation. Seedance has
// separate text-to-video and image-to-video model paths; a local start
// frame is inlined as a data URI.
func (p *Provider) SubmitVideo(ctx context.Context, req *gen.VideoRequest) (*gen.Submission, error) {
	hasImage := req.ImageURL != "" || req.ImagePath != ""
	task := "text-to-video"
	if hasImage {
		task = "image-to-video"
	}

	var hfModel string
	switch req.Model {
	case "seedance":
		if hasImage {
			hfModel = videoModels["seedance-i2v"]
		} else {
			hfModel = videoModels["seedance"]
		}
	case "minimax":
		hfModel = videoModels["minimax"]
	default:
		if m, ok := videoModels[req.Model]; ok {
			hfModel = m
		} else {
			hfModel = req.Model
		}
	}

	width, height := dimensions(req.AspectRatio)
	duration := req.Duration
	if duration <= 0 {
		duration = 5
	}
	payload := map[string]any{
		"task":     task,
		"model":    hfModel,
		"prompt":   req.Prompt,
		"width":    width,
		"height":   height,
		"duration": duration,
	}

	switch {
	case req.ImageURL != "":
		payload["image_urls"] = []string{req.ImageURL}
	case req.ImagePath != "":
		data, err := os.ReadFile(req.ImagePath)
		if err != nil {
			p.logger.Warn("could not read start frame, falling back to text-to-video",
				zap.String("path", req.ImagePath), zap.Error(err))
			payload["task"] = "text-to-video"
			break
		}
		mime := "image/png"
		if ext := strings.ToLower(filepath.Ext(req.ImagePath)); ext == ".jpg" || ext == ".jpeg" {
			mime = "image/jpeg"
		}
		payload["image_urls"] = []string{
			fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
		}
	}
	return p.submitGeneration(ctx, gen.CapVideo, payload)
}

// SubmitTalkingHead routes to Speak v2 (Platform API) or the legacy
// talking_photo generation depending on the requested model.
func (p *Provider) SubmitTalkingHead(ctx context.Context, req *gen.TalkingHeadRequest) (*gen.Submission, error) {
	if req.ImageURL == "" || req.AudioURL == "" {
		return nil, gen.NewError(gen.ErrSubmission, "talking head needs hosted image and audio URLs").
			WithProvider("higgsfield")
	}
	if req.Model == "speak-v2" {
		return p.submitSpeak(ctx, req)
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "natural head movement"
	}
	payload := map[string]any{
		"type": "talking_photo",
		"inputs": map[string]any{
			"image_url": req.ImageURL,
			"audio_url": req.AudioURL,
			"prompt":    prompt,
		},
	}
	return p.submitGeneration(ctx, gen.CapTalkingHead, payload)
}

// submitSpeak posts a Speak v2 job. The Platform API polls by request id
// on a different host, so the handle carries the full status URL.
func (p *Provider) submitSpeak(ctx context.Context, req *gen.TalkingHeadRequest) (*gen.Submission, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = "natural conversational gestures"
	}
	duration := req.Duration
	if duration <= 0 {
		duration = 15
	}
	payload := map[string]any{
		"params": map[string]any{
			"input_image": map[string]any{"type": "image_url", "image_url": req.ImageURL},
			"input_audio": map[string]any{"type": "audio_url", "audio_url": req.AudioURL},
			"prompt":      prompt,
			"quality":     "high",
			"duration":    duration,
		},
	}
	endpoint := strings.TrimRight(p.cfg.PlatformURL, "/") + "/v1/speak/higgsfield"

	var parsed struct {
		RequestID string `json:"request_id"`
	}
	if err := p.postJSON(ctx, endpoint, payload, &parsed); err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "speak v2 submission failed").WithProvider("higgsfield").WithCause(err)
	}
	if parsed.RequestID == "" {
		return nil, gen.NewError(gen.ErrSubmission, "no request ID in speak v2 response").WithProvider("higgsfield")
	}

	p.logger.Info("speak v2 submitted", zap.String("request_id", parsed.RequestID))
	return &gen.Submission{Handle: &gen.Handle{
		Provider: "higgsfield",
		Cap:      gen.CapTalkingHead,
		ID:       parsed.RequestID,
		PollURL:  strings.TrimRight(p.cfg.PlatformURL, "/") + "/requests/" + parsed.RequestID + "/status",
	}}, nil
}

// submitGeneration posts to the shared generations endpoint and wraps the
// returned id.
func (p *Provider) submitGeneration(ctx context.Context, cap gen.Capability, payload map[string]any) (*gen.Submission, error) {
	var parsed struct {
		ID           string `json:"id"`
		GenerationID string `json:"generation_id"`
	}
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/generations"
	if err := p.postJSON(ctx, endpoint, payload, &parsed); err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "submission failed").WithProvider("higgsfield").WithCause(err)
	}
	id := parsed.ID
	if id == "" {
		id = parsed.GenerationID
	}
	if id == "" {
		return nil, gen.NewError(gen.ErrSubmission, "no generation ID in response").WithProvider("higgsfield")
	}

	p.logger.Info("generation submitted", zap.String("generation_id", id))
	return &gen.Submission{Handle: &gen.Handle{Provider: "higgsfield", Cap: cap, ID: id}}, nil
}

// PollImage polls a generation to a terminal state.
func (p *Provider) PollImage(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	return p.poll(ctx, h, opts)
}

// PollVideo polls a generation to a terminal state.
func (p *Provider) PollVideo(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	return p.poll(ctx, h, opts)
}

// PollTalkingHead polls either API depending on where the job was
// submitted.
func (p *Provider) PollTalkingHead(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	if h.Provider != "higgsfield" {
		return nil, gen.Errorf(gen.ErrConfiguration, "handle belongs to provider %q, not higgsfield", h.Provider)
	}
	if h.PollURL != "" {
		return gen.PollUntilTerminal(ctx, h, opts, func(ctx context.Context) (*gen.Result, error) {
			return p.checkSpeak(ctx, h)
		}, p.logger)
	}
	return p.poll(ctx, h, opts)
}

func (p *Provider) poll(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	if h.Provider != "higgsfield" {
		return nil, gen.Errorf(gen.ErrConfiguration, "handle belongs to provider %q, not higgsfield", h.Provider)
	}
	return gen.PollUntilTerminal(ctx, h, opts, func(ctx context.Context) (*gen.Result, error) {
		return p.checkGeneration(ctx, h)
	}, p.logger)
}

// checkGeneration queries one generation. Completed responses carry the
// artifact under images or videos depending on modality, with result_url
// and url as fallbacks across response revisions.
func (p *Provider) checkGeneration(ctx context.Context, h gen.Handle) (*gen.Result, error) {
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/generations/" + h.ID
	var parsed struct {
		Status string `json:"status"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
		Videos []struct {
			URL string `json:"url"`
		} `json:"videos"`
		ResultURL string `json:"result_url"`
		URL       string `json:"url"`
		Error     string `json:"error"`
		Message   string `json:"message"`
	}
	if err := p.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}

	switch strings.ToLower(parsed.Status) {
	case "completed":
		url := ""
		if len(parsed.Images) > 0 {
			url = parsed.Images[0].URL
		}
		if url == "" && len(parsed.Videos) > 0 {
			url = parsed.Videos[0].URL
		}
		if url == "" {
			url = parsed.ResultURL
		}
		if url == "" {
			url = parsed.URL
		}
		if url == "" {
			return gen.Failure(h.ID, fmt.Errorf("no artifact URL in completed generation")), nil
		}
		return gen.Success(url, h.ID), nil
	case "failed", "error", "nsfw":
		msg := parsed.Error
		if msg == "" {
			msg = parsed.Message
		}
		if msg == "" {
			msg = "generation " + strings.ToLower(parsed.Status)
		}
		return gen.Failure(h.ID, fmt.Errorf("generation %s: %s", strings.ToLower(parsed.Status), msg)), nil
	default: // queued, in_progress
		return nil, nil
	}
}

// checkSpeak queries a Platform API request. Statuses are upper-case on
// this API.
func (p *Provider) checkSpeak(ctx context.Context, h gen.Handle) (*gen.Result, error) {
	var parsed struct {
		Status string `json:"status"`
		Output struct {
			Video struct {
				URL string `json:"url"`
			} `json:"video"`
			URL string `json:"url"`
		} `json:"output"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := p.getJSON(ctx, h.PollURL, &parsed); err != nil {
		return nil, err
	}

	switch strings.ToUpper(parsed.Status) {
	case "COMPLETED":
		url := parsed.Output.Video.URL
		if url == "" {
			url = parsed.Output.URL
		}
		if url == "" {
			return gen.Failure(h.ID, fmt.Errorf("no video URL in completed speak v2 response")), nil
		}
		return gen.Success(url, h.ID), nil
	case "FAILED", "CANCELED", "NSFW":
		msg := parsed.Error
		if msg == "" {
			msg = parsed.Message
		}
		if msg == "" {
			msg = "speak v2 " + parsed.Status
		}
		return gen.Failure(h.ID, fmt.Errorf("speak v2 %s: %s", parsed.Status, msg)), nil
	default:
		return nil, nil
	}
}

// PollBatch polls up to 10 generations at a time; Higgsfield rate-limits
// harder than the other vendors.
func (p *Provider) PollBatch(ctx context.Context, handles []gen.Handle, opts gen.PollOptions) map[string]*gen.Result {
	return gen.RunPollBatch(ctx, handles, 10, opts, func(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
		if h.Cap == gen.CapTalkingHead {
			return p.PollTalkingHead(ctx, h, opts)
		}
		return p.poll(ctx, h, opts)
	}, p.logger)
}

func (p *Provider) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", p.authHeader())
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(errBody))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", p.authHeader())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status check returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
