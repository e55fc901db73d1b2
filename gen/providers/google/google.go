// Package google integrates Google AI Studio: Gemini image models
// (Nano Banana, Nano Banana Pro), Veo 3.1 video, and Gemini TTS.
//
// Image generation and TTS are synchronous: the response already carries
// the artifact bytes, which are re-hosted before the result is returned.
// Video generation is a long-running operation polled by name.
package google

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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gen"
	"github.com/BaSui01/mediaflow/gen/hosting"
)

var imageModels = map[string]string{
	"nano-banana":     "gemini-2.5-flash-image",
	"nano-banana-pro": "gemini-3-pro-image-preview",
}

var videoModels = map[string]string{
	"veo-3.1": "veo-3.1-generate-preview",
}

// Provider implements gen.Adapter and gen.SpeechSynthesizer for Google AI
// Studio.
type Provider struct {
	cfg      Config
	client   *http.Client
	rehoster *hosting.Rehoster
	remuxer  *hosting.Remuxer
	logger   *zap.Logger
}

// New creates a Google provider. The rehoster is required because image
// and TTS responses carry raw bytes rather than URLs; the remuxer may be
// nil to skip faststart rewriting.
func New(cfg Config, rehoster *hosting.Rehoster, remuxer *hosting.Remuxer, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Provider{
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		rehoster: rehoster,
		remuxer:  remuxer,
		logger:   logger.With(zap.String("provider", "google")),
	}
}

func (p *Provider) Name() string { return "google" }

// IsSync: images and speech come back inline; video is a long-running
// operation.
func (p *Provider) IsSync(cap gen.Capability) bool {
	return cap == gen.CapImage || cap == gen.CapTTS
}

var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// encodeImageFile reads a local image and returns its base64 data and MIME
// type.
func encodeImageFile(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read reference image: %w", err)
	}
	mime, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		mime = "image/png"
	}
	return base64.StdEncoding.EncodeToString(data), mime, nil
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// SubmitImage generates an image synchronously: the Submission carries the
// finished Result with the re-hosted URL.
func (p *Provider) SubmitImage(ctx context.Context, req *gen.ImageRequest) (*gen.Submission, error) {
	modelID, ok := imageModels[req.Model]
	if !ok {
		return nil, gen.Errorf(gen.ErrConfiguration, "google does not support image model %q", req.Model).
			WithProvider("google")
	}

	parts := []contentPart{{Text: req.Prompt}}
	for _, ref := range req.ImagePaths {
		b64, mime, err := encodeImageFile(ref)
		if err != nil {
			return nil, gen.NewError(gen.ErrSubmission, "encode reference image").WithProvider("google").WithCause(err)
		}
		parts = append(parts, contentPart{InlineData: &inlineData{MimeType: mime, Data: b64}})
	}

	payload := map[string]any{
		"contents": []map[string]any{{"parts": parts}},
		"generationConfig": map[string]any{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	}
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					InlineData *struct {
						MimeType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), modelID)
	if err := p.postJSON(ctx, endpoint, payload, &parsed); err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "image generation failed").WithProvider("google").WithCause(err)
	}

	if len(parsed.Candidates) == 0 {
		return nil, gen.NewError(gen.ErrSubmission, "no candidates in response").WithProvider("google")
	}
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.InlineData == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, gen.NewError(gen.ErrSubmission, "decode image data").WithProvider("google").WithCause(err)
		}
		mime := part.InlineData.MimeType
		if mime == "" {
			mime = "image/png"
		}
		url, err := p.rehoster.Rehost(ctx, "google_gen", mime, data)
		if err != nil {
			return nil, gen.NewError(gen.ErrSubmission, "re-host generated image").WithProvider("google").WithCause(err)
		}
		return &gen.Submission{Result: gen.Success(url, "")}, nil
	}
	return nil, gen.NewError(gen.ErrSubmission, "no image data in response parts").WithProvider("google")
}

// PollImage always fails: image generation is synchronous and leaves
// nothing to poll.
func (p *Provider) PollImage(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	return nil, gen.NewError(gen.ErrConfiguration, "google image generation is synchronous, no polling needed").
		WithProvider("google")
}

// veoDurations are the only lengths Veo accepts; requests snap to the
// nearest one.
var veoDurations = []int{4, 6, 8}

func snapDuration(seconds int) int {
	if seconds <= 0 {
		seconds = 8
	}
	best := veoDurations[0]
	for _, d := range veoDurations[1:] {
		if abs(seconds-d) < abs(seconds-best) {
			best = d
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SubmitVideo starts a Veo long-running operation. A start frame may come
// from a local path (encoded inline) or from a URL (downloaded first).
func (p *Provider) SubmitVideo(ctx context.Context, req *gen.VideoRequest) (*gen.Submission, error) {
	modelID, ok := videoModels[req.Model]
	if !ok {
		return nil, gen.Errorf(gen.ErrConfiguration, "google does not support video model %q", req.Model).
			WithProvider("google")
	}

	instance := map[string]any{"prompt": req.Prompt}
	switch {
	case req.ImagePath != "":
		b64, mime, err := encodeImageFile(req.ImagePath)
		if err != nil {
			return nil, gen.NewError(gen.ErrSubmission, "encode start frame").WithProvider("google").WithCause(err)
		}
		instance["image"] = map[string]any{"bytesBase64Encoded": b64, "mimeType": mime}
	case req.ImageURL != "":
		data, err := hosting.Fetch(ctx, p.client, req.ImageURL, nil)
		if err != nil {
			return nil, gen.NewError(gen.ErrSubmission, "download start frame").WithProvider("google").WithCause(err)
		}
		instance["image"] = map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(data),
			"mimeType":           "image/png",
		}
	}

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = "9:16"
	}
	payload := map[string]any{
		"instances": []map[string]any{instance},
		"parameters": map[string]any{
			"aspectRatio":      aspect,
			"durationSeconds":  snapDuration(req.Duration),
			"sampleCount":      1,
			"personGeneration": "allow_adult",
		},
	}

	var parsed struct {
		Name string `json:"name"`
	}
	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", strings.TrimRight(p.cfg.BaseURL, "/"), modelID)
	if err := p.postJSON(ctx, endpoint, payload, &parsed); err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "video submission failed").WithProvider("google").WithCause(err)
	}
	if parsed.Name == "" {
		return nil, gen.NewError(gen.ErrSubmission, "no operation name in response").WithProvider("google")
	}

	p.logger.Info("operation started", zap.String("model", modelID), zap.String("operation", parsed.Name))
	return &gen.Submission{Handle: &gen.Handle{Provider: "google", Cap: gen.CapVideo, ID: parsed.Name}}, nil
}

// PollVideo drives the operation to done, then downloads the video,
// remuxes it for streaming, and re-hosts it.
func (p *Provider) PollVideo(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
	if h.Provider != "google" {
		return nil, gen.Errorf(gen.ErrConfiguration, "handle belongs to provider %q, not google", h.Provider)
	}
	return gen.PollUntilTerminal(ctx, h, opts, func(ctx context.Context) (*gen.Result, error) {
		return p.checkOperation(ctx, h.ID)
	}, p.logger)
}

// veoOperation mirrors the long-running operation response. The video
// location moved between API revisions, so extraction tries every known
// shape.
type veoOperation struct {
	Done  bool `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Response veoResponseBody `json:"response"`
	Result   veoResponseBody `json:"result"`

	// Shape without a response wrapper.
	GenerateVideoResponse *veoVideoResponse `json:"generateVideoResponse"`
}

type veoResponseBody struct {
	RaiMediaFilteredReasons []string          `json:"raiMediaFilteredReasons"`
	GenerateVideoResponse   *veoVideoResponse `json:"generateVideoResponse"`
	GeneratedVideos         []veoSample       `json:"generatedVideos"`
	GeneratedVideosSnake    []veoSample       `json:"generated_videos"`
	GeneratedSamples        []veoSample       `json:"generatedSamples"`
}

type veoVideoResponse struct {
	GeneratedSamples []veoSample `json:"generatedSamples"`
}

type veoSample struct {
	Video *veoVideo `json:"video"`
	// Older shapes put the location directly on the sample.
	URI  string `json:"uri"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

type veoVideo struct {
	URI  string `json:"uri"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (s veoSample) location() string {
	if s.Video != nil {
		for _, loc := range []string{s.Video.URI, s.Video.URL, s.Video.Name} {
			if loc != "" {
				return loc
			}
		}
	}
	for _, loc := range []string{s.URI, s.URL, s.Name} {
		if loc != "" {
			return loc
		}
	}
	return ""
}

func (op *veoOperation) samples() []veoSample {
	body := op.Response
	if len(body.RaiMediaFilteredReasons) == 0 && body.GenerateVideoResponse == nil &&
		len(body.GeneratedVideos) == 0 && len(body.GeneratedVideosSnake) == 0 &&
		len(body.GeneratedSamples) == 0 {
		body = op.Result
	}
	if body.GenerateVideoResponse != nil && len(body.GenerateVideoResponse.GeneratedSamples) > 0 {
		return body.GenerateVideoResponse.GeneratedSamples
	}
	if len(body.GeneratedVideos) > 0 {
		return body.GeneratedVideos
	}
	if len(body.GeneratedVideosSnake) > 0 {
		return body.GeneratedVideosSnake
	}
	if len(body.GeneratedSamples) > 0 {
		return body.GeneratedSamples
	}
	if op.GenerateVideoResponse != nil {
		return op.GenerateVideoResponse.GeneratedSamples
	}
	return nil
}

func (p *Provider) checkOperation(ctx context.Context, operation string) (*gen.Result, error) {
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/" + strings.TrimLeft(operation, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("operation check returned %d: %s", resp.StatusCode, string(body))
	}

	var op veoOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	if !op.Done {
		return nil, nil
	}

	if op.Error != nil {
		return gen.Failure(operation, fmt.Errorf("task failed: %s", op.Error.Message)), nil
	}
	if reasons := op.Response.RaiMediaFilteredReasons; len(reasons) > 0 {
		return gen.Failure(operation, fmt.Errorf(
			"video blocked by content policy filter: %s", strings.Join(reasons, "; "))), nil
	}

	samples := op.samples()
	if len(samples) == 0 {
		// A done operation without samples or an explicit error is the
		// filter acting silently.
		return gen.Failure(operation, fmt.Errorf(
			"no generated video in response, likely blocked by content policy filter")), nil
	}
	uri := samples[0].location()
	if uri == "" {
		return gen.Failure(operation, fmt.Errorf("no video URI in generated sample")), nil
	}

	url, err := p.downloadAndHost(ctx, uri)
	if err != nil {
		return gen.Failure(operation, fmt.Errorf("retrieve generated video: %w", err)), nil
	}
	return gen.Success(url, operation), nil
}

// downloadAndHost pulls the video (key-authenticated), applies the
// faststart remux, and re-hosts the bytes.
func (p *Provider) downloadAndHost(ctx context.Context, uri string) (string, error) {
	data, err := hosting.Fetch(ctx, p.client, uri, map[string]string{"x-goog-api-key": p.cfg.APIKey})
	if err != nil {
		return "", err
	}

	if p.remuxer != nil && p.remuxer.Available() {
		tmp := filepath.Join(os.TempDir(), fmt.Sprintf("veo_video_%s.mp4", uuid.NewString()[:8]))
		if err := os.WriteFile(tmp, data, 0o644); err == nil {
			defer os.Remove(tmp)
			p.remuxer.Faststart(ctx, tmp)
			if remuxed, err := os.ReadFile(tmp); err == nil {
				data = remuxed
			}
		}
	}

	return p.rehoster.Rehost(ctx, "veo_video", "video/mp4", data)
}

// PollBatch polls up to 20 operations at a time.
func (p *Provider) PollBatch(ctx context.Context, handles []gen.Handle, opts gen.PollOptions) map[string]*gen.Result {
	return gen.RunPollBatch(ctx, handles, 20, opts, func(ctx context.Context, h gen.Handle, opts gen.PollOptions) (*gen.Result, error) {
		if h.Cap == gen.CapImage {
			return p.PollImage(ctx, h, opts)
		}
		return p.PollVideo(ctx, h, opts)
	}, p.logger)
}

// postJSON posts a payload with key auth and decodes the response into out.
func (p *Provider) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(errBody))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
