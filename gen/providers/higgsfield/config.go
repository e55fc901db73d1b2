package higgsfield

import "time"

// Config holds Higgsfield AI settings. Auth uses a key id/secret pair on
// both the Diffusion API and the Platform API.
type Config struct {
	APIKeyID     string        `json:"api_key_id" yaml:"api_key_id"`
	APIKeySecret string        `json:"api_key_secret" yaml:"api_key_secret"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	PlatformURL  string        `json:"platform_url" yaml:"platform_url"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns the production endpoints.
func DefaultConfig(keyID, keySecret string) Config {
	return Config{
		APIKeyID:     keyID,
		APIKeySecret: keySecret,
		BaseURL:      "https://api.higgsfield.ai/v1",
		PlatformURL:  "https://platform.higgsfield.ai",
		Timeout:      90 * time.Second,
	}
}
