package google

import "time"

// Config holds Google AI Studio settings. One API key covers image, video,
// and TTS.
type Config struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns the production endpoint.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Timeout: 120 * time.Second,
	}
}
