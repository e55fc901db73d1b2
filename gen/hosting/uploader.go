package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Uploader pushes artifact bytes to a hosting service and returns a
// public URL.
type Uploader interface {
	Name() string
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// extByContentType picks a filename extension for upload endpoints that
// infer media type from the name.
var extByContentType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"audio/wav":  ".wav",
	"audio/mpeg": ".mp3",
}

// EnsureExt appends the extension matching contentType when the filename
// has none.
func EnsureExt(filename, contentType string) string {
	if strings.Contains(filename, ".") {
		return filename
	}
	if ext, ok := extByContentType[contentType]; ok {
		return filename + ext
	}
	return filename
}

// KieUploaderConfig configures the Kie file upload service.
type KieUploaderConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	UploadPath string        `json:"upload_path" yaml:"upload_path"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// KieUploader uploads through Kie's file-stream-upload endpoint.
type KieUploader struct {
	cfg    KieUploaderConfig
	client *http.Client
}

// NewKieUploader creates a Kie uploader.
func NewKieUploader(cfg KieUploaderConfig) *KieUploader {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://kieai.redpandaai.co"
	}
	if cfg.UploadPath == "" {
		// Bucket prefix required by the upload endpoint.
		cfg.UploadPath = "creative-cloner"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &KieUploader{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (u *KieUploader) Name() string { return "kie" }

// Upload sends the bytes as a multipart stream. The uploadPath form field
// is mandatory; the endpoint rejects the request without it.
func (u *KieUploader) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	filename = EnsureExt(filename, contentType)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := createFilePart(w, "file", filename, contentType)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.WriteField("uploadPath", u.cfg.UploadPath); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(u.cfg.BaseURL, "/") + "/api/file-stream-upload"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+u.cfg.APIKey)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("kie upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("kie upload error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var parsed struct {
		Success bool `json:"success"`
		Data    struct {
			DownloadURL string `json:"downloadUrl"`
		} `json:"data"`
		Msg string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("kie upload response: %w", err)
	}
	if parsed.Data.DownloadURL == "" {
		return "", fmt.Errorf("kie upload returned no download url (msg=%q)", parsed.Msg)
	}
	return parsed.Data.DownloadURL, nil
}

// WaveSpeedUploaderConfig configures the WaveSpeed media upload endpoint.
type WaveSpeedUploaderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// WaveSpeedUploader uploads through WaveSpeed's binary media endpoint.
type WaveSpeedUploader struct {
	cfg    WaveSpeedUploaderConfig
	client *http.Client
}

// NewWaveSpeedUploader creates a WaveSpeed uploader.
func NewWaveSpeedUploader(cfg WaveSpeedUploaderConfig) *WaveSpeedUploader {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.wavespeed.ai/api/v3"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &WaveSpeedUploader{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (u *WaveSpeedUploader) Name() string { return "wavespeed" }

// Upload sends the bytes as a multipart file. The response names the
// hosted URL under one of several keys depending on media type.
func (u *WaveSpeedUploader) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	filename = EnsureExt(filename, contentType)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := createFilePart(w, "file", filename, contentType)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(u.cfg.BaseURL, "/") + "/media/upload/binary"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+u.cfg.APIKey)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("wavespeed upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("wavespeed upload error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var parsed struct {
		Data struct {
			DownloadURL string `json:"download_url"`
			FileURL     string `json:"file_url"`
			URL         string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("wavespeed upload response: %w", err)
	}
	for _, url := range []string{parsed.Data.DownloadURL, parsed.Data.FileURL, parsed.Data.URL} {
		if url != "" {
			return url, nil
		}
	}
	return "", fmt.Errorf("wavespeed upload returned no url")
}

// createFilePart adds a file part with an explicit content type; the
// default multipart helper hardcodes application/octet-stream.
func createFilePart(w *multipart.Writer, field, filename, contentType string) (io.Writer, error) {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return w.CreatePart(h)
}
